package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAsk_SendsContextAndReturnsAnswer(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Conversão em 70.0%, abaixo da meta."}}]}`))
	}))
	defer upstream.Close()

	c := New(upstream.URL, "sk-test", "gpt-4o")
	answer, err := c.Ask(context.Background(), "Como está a conversão hoje?", `{"total_pedidos":10}`)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" {
		t.Errorf("unexpected model %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 3 {
		t.Fatalf("expected system+context+user messages, got %d", len(gotReq.Messages))
	}
	if !strings.Contains(gotReq.Messages[1].Content, `"total_pedidos":10`) {
		t.Errorf("context not forwarded: %q", gotReq.Messages[1].Content)
	}
	if !strings.Contains(answer, "70.0%") {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestAsk_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	c := New(upstream.URL, "sk-test", "gpt-4o")
	if _, err := c.Ask(context.Background(), "oi", ""); err == nil {
		t.Fatal("expected error on non-200 upstream")
	}
}
