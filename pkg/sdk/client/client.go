// Package client is a small Go SDK for the gateway's envelope endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/logimax/ifood-gateway/pkg/types"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	nextID     atomic.Int64
}

// New builds a client for the gateway at baseURL. token may be empty for
// discovery-only use against open deployments.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context) (*types.InitializeResult, error) {
	params := map[string]any{
		"protocolVersion": types.ProtocolVersion,
		"clientInfo":      map[string]string{"name": "ifood-gateway-sdk", "version": types.ServerVersion},
	}
	var out types.InitializeResult
	if err := c.call(ctx, "initialize", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTools fetches the tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]types.ToolDescriptor, error) {
	var out types.ListToolsResult
	if err := c.call(ctx, "tools/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// CallTool invokes one tool and returns its text content joined together.
func (c *Client) CallTool(ctx context.Context, name string, args any) (string, error) {
	params := types.CallParams{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return "", err
		}
		params.Arguments = raw
	}
	var out types.ToolResult
	if err := c.call(ctx, "tools/call", params, &out); err != nil {
		return "", err
	}
	var text string
	for _, block := range out.Content {
		if block.Type == "text" {
			if text != "" {
				text += "\n"
			}
			text += block.Text
		}
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	req := types.RPCRequest{JSONRPC: "2.0", Method: method}
	id, err := json.Marshal(c.nextID.Add(1))
	if err != nil {
		return err
	}
	req.ID = id
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = raw
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		var apiErr types.APIError
		if decodeErr := json.NewDecoder(httpResp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Detail != "" {
			return fmt.Errorf("gateway error %d: %s", httpResp.StatusCode, apiErr.Detail)
		}
		return fmt.Errorf("http status %d", httpResp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *types.RPCError `json:"error"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}
