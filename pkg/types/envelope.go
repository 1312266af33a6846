// Package types defines the protocol envelope and tool schema shared across
// the gateway.
package types

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP protocol revision the gateway advertises.
const ProtocolVersion = "2024-11-05"

const (
	ServerName    = "api-ifood-gateway"
	ServerVersion = "1.0.0"
)

// ──────────────────────────────────────────────────────────────────────────────
// JSON-RPC envelope
// ──────────────────────────────────────────────────────────────────────────────

// RPCRequest is the inbound JSON-RPC 2.0 envelope on POST /mcp. The ID is
// kept raw so it can be echoed back byte-for-byte regardless of its type.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is the outbound envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes used by the gateway.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// OK builds a success envelope echoing the request ID.
func OK(id json.RawMessage, result any) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// Err builds an error envelope echoing the request ID.
func Err(id json.RawMessage, code int, msg string) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: msg}}
}

// ──────────────────────────────────────────────────────────────────────────────
// Method kinds: the envelope methods the transport resolves.
// ──────────────────────────────────────────────────────────────────────────────

// MethodKind discriminates the recognized envelope methods.
type MethodKind int

const (
	MethodUnknown MethodKind = iota
	MethodInitialize
	MethodToolsList
	MethodToolsCall
	MethodEmpty // missing method; answered with a no-op result
)

// KindOf classifies an envelope method name.
func KindOf(method string) MethodKind {
	switch method {
	case "initialize":
		return MethodInitialize
	case "tools/list":
		return MethodToolsList
	case "tools/call":
		return MethodToolsCall
	case "":
		return MethodEmpty
	default:
		return MethodUnknown
	}
}

// InitializeParams carries the client handshake parameters. The gateway only
// logs the client info; it does not negotiate protocol versions downward.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// CallParams carries a tools/call invocation.
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// InitializeResult is the handshake response payload.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      ServerInfoBody `json:"serverInfo"`
}

type Capabilities struct {
	Tools struct{} `json:"tools"`
}

type ServerInfoBody struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewInitializeResult builds the handshake payload the gateway always returns.
func NewInitializeResult() InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfoBody{Name: ServerName, Version: ServerVersion},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tool schema
// ──────────────────────────────────────────────────────────────────────────────

// ToolDescriptor describes one registered tool. Immutable once registered.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the tools/list response payload.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ContentBlock is one element of a tool result. The gateway only emits text.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the tools/call response payload.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
}

// TextResult builds a single-text-block tool result.
func TextResult(format string, args ...any) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf(format, args...)}}}
}
