// Package recordstore provides access to the operational tables behind the
// gateway (orders, metrics, alerts, reports). Two implementations exist: a
// PostgREST client for the hosted REST surface and a direct Postgres pool.
package recordstore

import (
	"context"
	"encoding/json"
	"time"
)

// Order is one row of the pedidos table, narrowed to the KPI columns.
type Order struct {
	Status          string    `json:"status"`
	TotalValue      float64   `json:"valor_total"`
	PrepMinutes     float64   `json:"tempo_preparo_min"`
	DeliveryMinutes float64   `json:"tempo_entrega_min"`
	CreatedAt       time.Time `json:"created_at"`
}

// WeeklyMetrics is one row of metricas_semanais_ifood, the merchant-API
// sync target table.
type WeeklyMetrics struct {
	MerchantID   string  `json:"merchant_id"`
	Month        int     `json:"mes"`
	Year         int     `json:"ano"`
	PeriodStart  string  `json:"data_inicio"`
	PeriodEnd    string  `json:"data_fim"`
	TotalSales   int     `json:"vendas_total"`
	NewCustomers int     `json:"clientes_novos"`
	Revenue      float64 `json:"faturamento_total"`
	AvgTicket    float64 `json:"ticket_medio"`
	Conversion   float64 `json:"conversao_pct"`
}

// Alert is one row of the alertas table.
type Alert struct {
	Kind      string    `json:"tipo"`
	Level     string    `json:"nivel"`
	Current   string    `json:"valor_atual"`
	Target    string    `json:"meta"`
	Deviation string    `json:"desvio"`
	Status    string    `json:"status"`
	System    string    `json:"sistema,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// ReportRow is one row of the relatorios_kpi table. Payload carries the
// full report document as JSON.
type ReportRow struct {
	Date        string          `json:"data_referencia"`
	Payload     json.RawMessage `json:"dados"`
	Kind        string          `json:"tipo"`
	GeneratedBy string          `json:"gerado_por"`
}

// Store is the record-store contract the tool handlers depend on.
type Store interface {
	// OrdersBetween returns orders whose created_at falls in [from, to].
	OrdersBetween(ctx context.Context, from, to time.Time) ([]Order, error)
	InsertWeeklyMetrics(ctx context.Context, m WeeklyMetrics) error
	InsertAlert(ctx context.Context, a Alert) error
	ActiveAlerts(ctx context.Context) ([]Alert, error)
	InsertReport(ctx context.Context, r ReportRow) error
}
