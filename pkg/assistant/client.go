// Package assistant provides the chat-completion collaborator used for
// operational supervision queries.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// systemPrompt keeps the model inside the delivery-supervision funnel.
const systemPrompt = `Você é LOGIMAX IA — assistente especializado em supervisão de estratégia operacional para delivery e logística (iFood).

Responda APENAS sobre: pedidos, KPIs, métricas, alertas, relatórios e estratégia operacional.
Use dados reais do contexto quando disponíveis. Seja assertivo, direto e baseado em dados.`

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates an assistant client for the given endpoint and model.
func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Ask sends the question, enriched with operational context, and returns the
// model's answer text.
func (c *Client) Ask(ctx context.Context, question, contextJSON string) (string, error) {
	messages := []chatMessage{{Role: "system", Content: systemPrompt}}
	if contextJSON != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: "Dados operacionais atuais:\n" + contextJSON,
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: question})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("assistant.Ask marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant.Ask: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant.Ask: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("assistant.Ask: status %d: %s", resp.StatusCode, string(b))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("assistant.Ask decode: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("assistant.Ask: empty completion")
	}
	return chat.Choices[0].Message.Content, nil
}
