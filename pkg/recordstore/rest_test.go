package recordstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestRESTStore_OrdersBetween(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	var gotKey string

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"status":"entregue","valor_total":42.5,"tempo_preparo_min":12,"tempo_entrega_min":20,"created_at":"2026-08-28T10:00:00Z"},
			{"status":"cancelado","valor_total":18,"tempo_preparo_min":0,"tempo_entrega_min":0,"created_at":"2026-08-28T11:00:00Z"}
		]`))
	}))
	defer upstream.Close()

	store := NewRESTStore(upstream.URL, "service-key")
	from := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 28, 23, 59, 59, 0, time.UTC)

	orders, err := store.OrdersBetween(context.Background(), from, to)
	if err != nil {
		t.Fatalf("OrdersBetween: %v", err)
	}

	if gotPath != "/rest/v1/pedidos" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "service-key" {
		t.Errorf("apikey header not set, got %q", gotKey)
	}
	filters := gotQuery["created_at"]
	if len(filters) != 2 || filters[0] != "gte.2026-08-28T00:00:00Z" || filters[1] != "lte.2026-08-28T23:59:59Z" {
		t.Errorf("unexpected created_at filters %v", filters)
	}

	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].Status != "entregue" || orders[0].TotalValue != 42.5 {
		t.Errorf("unexpected first order %+v", orders[0])
	}
}

func TestRESTStore_OrdersBetween_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	store := NewRESTStore(upstream.URL, "bad-key")
	_, err := store.OrdersBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for non-200 upstream")
	}
}

func TestRESTStore_InsertAlert(t *testing.T) {
	var gotPath, gotPrefer string
	var gotBody map[string]any

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefer = r.Header.Get("Prefer")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	store := NewRESTStore(upstream.URL, "service-key")
	err := store.InsertAlert(context.Background(), Alert{
		Kind:    "TAXA_CONVERSAO_BAIXA",
		Level:   "ALTO",
		Current: "65.0%",
		Target:  "80.0%",
		Status:  "ativo",
	})
	if err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	if gotPath != "/rest/v1/alertas" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotPrefer != "return=minimal" {
		t.Errorf("unexpected Prefer header %q", gotPrefer)
	}
	if gotBody["tipo"] != "TAXA_CONVERSAO_BAIXA" || gotBody["nivel"] != "ALTO" {
		t.Errorf("unexpected body %v", gotBody)
	}
}

func TestRESTStore_InsertReport(t *testing.T) {
	var gotPath, gotPrefer string
	var gotBody map[string]any

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefer = r.Header.Get("Prefer")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	store := NewRESTStore(upstream.URL, "service-key")
	err := store.InsertReport(context.Background(), ReportRow{
		Date:        "2026-08-28",
		Payload:     json.RawMessage(`{"taxa_conversao":70}`),
		Kind:        "diario",
		GeneratedBy: "gateway",
	})
	if err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	if gotPath != "/rest/v1/relatorios_kpi" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotPrefer != "return=minimal" {
		t.Errorf("unexpected Prefer header %q", gotPrefer)
	}
	if gotBody["data_referencia"] != "2026-08-28" || gotBody["tipo"] != "diario" {
		t.Errorf("unexpected body %v", gotBody)
	}
	// created_at is stamped by the database, never by the client.
	if _, ok := gotBody["created_at"]; ok {
		t.Errorf("created_at should be left to the database default, body %v", gotBody)
	}
}

func TestRESTStore_ActiveAlerts(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "eq.ativo" {
			t.Errorf("unexpected status filter %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"tipo":"TAXA_CONVERSAO_BAIXA","nivel":"CRÍTICO","status":"ativo"}]`))
	}))
	defer upstream.Close()

	store := NewRESTStore(upstream.URL, "service-key")
	alerts, err := store.ActiveAlerts(context.Background())
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Level != "CRÍTICO" {
		t.Errorf("unexpected alerts %+v", alerts)
	}
}
