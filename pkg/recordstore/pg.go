package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore runs the same queries directly against Postgres. Used when a
// database DSN is configured, bypassing the REST surface.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) OrdersBetween(ctx context.Context, from, to time.Time) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status,
		       COALESCE(valor_total, 0),
		       COALESCE(tempo_preparo_min, 0),
		       COALESCE(tempo_entrega_min, 0),
		       created_at
		FROM pedidos
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("recordstore.OrdersBetween: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.Status, &o.TotalValue, &o.PrepMinutes, &o.DeliveryMinutes, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("recordstore.OrdersBetween scan: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recordstore.OrdersBetween iteration: %w", err)
	}
	return orders, nil
}

func (s *PGStore) InsertWeeklyMetrics(ctx context.Context, m WeeklyMetrics) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metricas_semanais_ifood (
			merchant_id, mes, ano, data_inicio, data_fim,
			vendas_total, clientes_novos, faturamento_total, ticket_medio, conversao_pct
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.MerchantID, m.Month, m.Year, m.PeriodStart, m.PeriodEnd,
		m.TotalSales, m.NewCustomers, m.Revenue, m.AvgTicket, m.Conversion,
	)
	if err != nil {
		return fmt.Errorf("recordstore.InsertWeeklyMetrics: %w", err)
	}
	return nil
}

func (s *PGStore) InsertAlert(ctx context.Context, a Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alertas (tipo, nivel, valor_atual, meta, desvio, status, sistema, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.Kind, a.Level, a.Current, a.Target, a.Deviation, a.Status, a.System, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recordstore.InsertAlert: %w", err)
	}
	return nil
}

func (s *PGStore) ActiveAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tipo, nivel, valor_atual, meta, desvio, status, COALESCE(sistema, ''), created_at
		FROM alertas
		WHERE status = 'ativo'
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("recordstore.ActiveAlerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.Kind, &a.Level, &a.Current, &a.Target, &a.Deviation, &a.Status, &a.System, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("recordstore.ActiveAlerts scan: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recordstore.ActiveAlerts iteration: %w", err)
	}
	return alerts, nil
}

func (s *PGStore) InsertReport(ctx context.Context, r ReportRow) error {
	payload := r.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO relatorios_kpi (data_referencia, dados, tipo, gerado_por)
		VALUES ($1,$2,$3,$4)`,
		r.Date, payload, r.Kind, r.GeneratedBy,
	)
	if err != nil {
		return fmt.Errorf("recordstore.InsertReport: %w", err)
	}
	return nil
}
