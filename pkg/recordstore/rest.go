package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RESTStore talks to the record store through its PostgREST surface
// (Supabase). Filters ride in the query string; writes POST JSON rows.
type RESTStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTStore creates a client for the given project URL and service key.
func NewRESTStore(baseURL, apiKey string) *RESTStore {
	return &RESTStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (s *RESTStore) OrdersBetween(ctx context.Context, from, to time.Time) ([]Order, error) {
	q := url.Values{}
	q.Set("select", "status,valor_total,tempo_preparo_min,tempo_entrega_min,created_at")
	q.Add("created_at", "gte."+from.UTC().Format(time.RFC3339))
	q.Add("created_at", "lte."+to.UTC().Format(time.RFC3339))

	var orders []Order
	if err := s.get(ctx, "pedidos", q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *RESTStore) InsertWeeklyMetrics(ctx context.Context, m WeeklyMetrics) error {
	return s.insert(ctx, "metricas_semanais_ifood", m)
}

func (s *RESTStore) InsertAlert(ctx context.Context, a Alert) error {
	return s.insert(ctx, "alertas", a)
}

func (s *RESTStore) ActiveAlerts(ctx context.Context) ([]Alert, error) {
	q := url.Values{}
	q.Set("status", "eq.ativo")

	var alerts []Alert
	if err := s.get(ctx, "alertas", q, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *RESTStore) InsertReport(ctx context.Context, r ReportRow) error {
	return s.insert(ctx, "relatorios_kpi", r)
}

func (s *RESTStore) get(ctx context.Context, table string, q url.Values, out any) error {
	u := fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, table, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("recordstore.get %s: %w", table, err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recordstore.get %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("recordstore.get %s: status %d: %s", table, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("recordstore.get %s decode: %w", table, err)
	}
	return nil
}

func (s *RESTStore) insert(ctx context.Context, table string, row any) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("recordstore.insert %s marshal: %w", table, err)
	}

	u := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("recordstore.insert %s: %w", table, err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recordstore.insert %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("recordstore.insert %s: status %d: %s", table, resp.StatusCode, string(b))
	}
	return nil
}

func (s *RESTStore) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}
