// Package merchant integrates with the iFood merchant API: OAuth2
// client-credentials authentication plus sales-metrics reads.
package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const tokenPath = "/authentication/v1.0/oauth/token"

// expirySlack renews tokens this long before they actually expire.
const expirySlack = 60 * time.Second

// Token is an issued access token.
type Token struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Client authenticates against the merchant API and fetches metrics.
// Safe for concurrent use; the cached token is renewed under a mutex.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New creates a merchant API client.
func New(baseURL, clientID, clientSecret string, log *slog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		log: log,
	}
}

// Authenticate obtains an access token, reusing a cached one while valid.
//
// The issuer has been observed to expect either camelCase or snake_case
// form fields depending on API revision, so a rejected first attempt is
// retried once with the alternate naming before failing. The first success
// wins and no further attempts are issued.
func (c *Client) Authenticate(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return Token{AccessToken: c.token, ExpiresIn: int(time.Until(c.expiresAt).Seconds())}, nil
	}

	shapes := []url.Values{
		{
			"grantType":    {"client_credentials"},
			"clientId":     {c.clientID},
			"clientSecret": {c.clientSecret},
		},
		{
			"grant_type":    {"client_credentials"},
			"client_id":     {c.clientID},
			"client_secret": {c.clientSecret},
		},
	}

	var lastErr error
	for i, form := range shapes {
		tok, err := c.requestToken(ctx, form)
		if err == nil {
			c.token = tok.AccessToken
			c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - expirySlack)
			if i > 0 {
				c.log.Info("merchant auth succeeded with fallback field naming")
			}
			return tok, nil
		}
		lastErr = err
	}
	return Token{}, fmt.Errorf("merchant authentication failed after %d attempts: %w", len(shapes), lastErr)
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("merchant.requestToken: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("merchant.requestToken: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Token{}, fmt.Errorf("merchant.requestToken: status %d: %s", resp.StatusCode, string(b))
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Token{}, fmt.Errorf("merchant.requestToken decode: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("merchant.requestToken: issuer returned no accessToken")
	}
	return tok, nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// SalesMetrics is the sales summary for one merchant and period.
type SalesMetrics struct {
	TotalSales   int     `json:"vendas_total"`
	NewCustomers int     `json:"clientes_novos"`
	Revenue      float64 `json:"faturamento_total"`
	AvgTicket    float64 `json:"ticket_medio"`
	Conversion   float64 `json:"conversao_pct"`
}

// FetchSalesMetrics returns the sales summary for the period. The metrics
// read itself is simulated: the merchant platform exposes no stable metrics
// contract yet, so only authentication is exercised for real.
// TODO: swap in /financial/v1.0/merchants/{id}/sales once the endpoint is GA.
func (c *Client) FetchSalesMetrics(ctx context.Context, merchantID string, from, to time.Time) (SalesMetrics, error) {
	if _, err := c.Authenticate(ctx); err != nil {
		return SalesMetrics{}, err
	}
	c.log.Info("fetching sales metrics", "merchant_id", merchantID, "from", from, "to", to)
	return SalesMetrics{
		TotalSales:   150,
		NewCustomers: 45,
		Revenue:      4500.50,
		AvgTicket:    30.00,
		Conversion:   12.5,
	}, nil
}
