// Package reporter runs the scheduled KPI jobs: the daily report and the
// alert sweep. It is the headless counterpart of the generate_daily_report
// and check_alerts tools.
package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/logimax/ifood-gateway/pkg/analytics"
	"github.com/logimax/ifood-gateway/pkg/connectors"
	"github.com/logimax/ifood-gateway/pkg/recordstore"
)

// Service owns the scheduled jobs. The record store is resolved through the
// connector cache on every run, so a backend that comes up late is picked up
// without a restart.
type Service struct {
	cache *connectors.Cache
	log   *slog.Logger
	now   func() time.Time
}

func New(cache *connectors.Cache, log *slog.Logger) *Service {
	return &Service{cache: cache, log: log, now: time.Now}
}

// Run executes one sweep immediately and then once per interval until the
// context is cancelled. Failures are logged and retried on the next tick.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if err := s.RunOnce(ctx); err != nil {
		s.log.Error("report sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("report sweep failed", "error", err)
			}
		}
	}
}

// RunOnce builds and persists the daily report, then records any triggered
// alerts.
func (s *Service) RunOnce(ctx context.Context) error {
	store, err := s.store()
	if err != nil {
		return err
	}

	now := s.now()
	from, to := analytics.DayRange(now)
	orders, err := store.OrdersBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}

	report := analytics.BuildDailyReport(now, orders)
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	row := recordstore.ReportRow{
		Date:        report.Date,
		Payload:     payload,
		Kind:        "diario",
		GeneratedBy: "reporter",
	}
	if err := store.InsertReport(ctx, row); err != nil {
		return fmt.Errorf("persist report: %w", err)
	}
	s.log.Info("daily report recorded", "date", report.Date, "orders", report.Conversion.Total)

	alerts := analytics.EvaluateAlerts(report.Conversion, now)
	for _, a := range alerts {
		if err := store.InsertAlert(ctx, a); err != nil {
			return fmt.Errorf("persist alert: %w", err)
		}
		s.log.Warn("kpi alert recorded", "kind", a.Kind, "level", a.Level, "current", a.Current)
	}
	return nil
}

func (s *Service) store() (recordstore.Store, error) {
	v, ok := s.cache.Get(connectors.KindRecordStore)
	if !ok {
		return nil, errors.New("record store unavailable")
	}
	store, ok := v.(recordstore.Store)
	if !ok {
		return nil, fmt.Errorf("record store connector has unexpected type %T", v)
	}
	return store, nil
}
