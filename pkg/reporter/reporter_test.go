package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/logimax/ifood-gateway/pkg/connectors"
	"github.com/logimax/ifood-gateway/pkg/recordstore"
)

type fakeStore struct {
	orders    []recordstore.Order
	ordersErr error

	reports []recordstore.ReportRow
	alerts  []recordstore.Alert
}

func (f *fakeStore) OrdersBetween(context.Context, time.Time, time.Time) ([]recordstore.Order, error) {
	return f.orders, f.ordersErr
}

func (f *fakeStore) InsertWeeklyMetrics(context.Context, recordstore.WeeklyMetrics) error {
	return nil
}

func (f *fakeStore) InsertAlert(_ context.Context, a recordstore.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeStore) ActiveAlerts(context.Context) ([]recordstore.Alert, error) {
	return f.alerts, nil
}

func (f *fakeStore) InsertReport(_ context.Context, r recordstore.ReportRow) error {
	f.reports = append(f.reports, r)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(store *fakeStore) *Service {
	cache := connectors.NewCache(map[connectors.Kind]connectors.Constructor{
		connectors.KindRecordStore: func() (any, error) { return store, nil },
	}, testLogger())
	s := New(cache, testLogger())
	s.now = func() time.Time { return time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC) }
	return s
}

func TestRunOncePersistsReport(t *testing.T) {
	store := &fakeStore{orders: []recordstore.Order{
		{Status: "entregue", TotalValue: 50, PrepMinutes: 10, DeliveryMinutes: 25},
		{Status: "concluido", TotalValue: 30},
	}}
	s := newService(store)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(store.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(store.reports))
	}
	row := store.reports[0]
	if row.Date != "2026-08-28" || row.GeneratedBy != "reporter" {
		t.Errorf("unexpected row %+v", row)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if _, ok := payload["ticket_medio"]; !ok {
		t.Error("payload missing ticket section")
	}
	if len(store.alerts) != 0 {
		t.Errorf("alerts recorded for healthy day: %+v", store.alerts)
	}
}

func TestRunOnceRecordsAlerts(t *testing.T) {
	store := &fakeStore{orders: []recordstore.Order{
		{Status: "entregue"}, {Status: "cancelado"}, {Status: "cancelado"}, {Status: "cancelado"},
	}}
	s := newService(store)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(store.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(store.alerts))
	}
	if store.alerts[0].Level != "CRÍTICO" {
		t.Errorf("level = %q", store.alerts[0].Level)
	}
}

func TestRunOnceFailsWhenStoreDown(t *testing.T) {
	cache := connectors.NewCache(map[connectors.Kind]connectors.Constructor{
		connectors.KindRecordStore: func() (any, error) { return nil, errors.New("connect refused") },
	}, testLogger())
	s := New(cache, testLogger())

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error when record store is unavailable")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newService(&fakeStore{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
