// Package analytics computes the operational KPIs the tools report.
// Every function is pure: callers fetch orders, analytics does arithmetic.
package analytics

import (
	"math"
	"strconv"
	"time"

	"github.com/logimax/ifood-gateway/pkg/recordstore"
)

// DeliveryTargetMinutes is the operational target for total delivery time.
const DeliveryTargetMinutes = 45.0

// ConversionTargetPct is the floor under which conversion alerts fire.
const ConversionTargetPct = 80.0

// Conversion summarizes order outcomes for a period.
type Conversion struct {
	Total         int    `json:"total_pedidos"`
	Completed     int    `json:"aprovados"`
	Cancelled     int    `json:"cancelados"`
	ConversionPct string `json:"taxa_conversao"`
	CancelledPct  string `json:"taxa_cancelamento"`
}

// ComputeConversion counts completed ("entregue"/"concluido") and cancelled
// orders and derives percentage rates rounded to 2 decimals. An empty period
// yields 0, not an error.
func ComputeConversion(orders []recordstore.Order) Conversion {
	total := len(orders)
	var completed, cancelled int
	for _, o := range orders {
		switch o.Status {
		case "entregue", "concluido":
			completed++
		case "cancelado":
			cancelled++
		}
	}

	var convPct, cancPct float64
	if total > 0 {
		convPct = round2(float64(completed) / float64(total) * 100)
		cancPct = round2(float64(cancelled) / float64(total) * 100)
	}
	return Conversion{
		Total:         total,
		Completed:     completed,
		Cancelled:     cancelled,
		ConversionPct: FormatPercent(convPct),
		CancelledPct:  FormatPercent(cancPct),
	}
}

// DeliveryTime summarizes prep+delivery duration for delivered orders.
type DeliveryTime struct {
	Delivered    int     `json:"pedidos_entregues"`
	AverageMin   float64 `json:"tempo_medio_min"`
	TargetMin    float64 `json:"meta_min"`
	WithinTarget bool    `json:"dentro_da_meta"`
}

// ComputeDeliveryTime averages preparation plus delivery minutes over
// delivered orders, rounded to 1 decimal.
func ComputeDeliveryTime(orders []recordstore.Order) DeliveryTime {
	var sum float64
	var delivered int
	for _, o := range orders {
		if o.Status != "entregue" {
			continue
		}
		delivered++
		sum += o.PrepMinutes + o.DeliveryMinutes
	}

	var avg float64
	if delivered > 0 {
		avg = math.Round(sum/float64(delivered)*10) / 10
	}
	return DeliveryTime{
		Delivered:    delivered,
		AverageMin:   avg,
		TargetMin:    DeliveryTargetMinutes,
		WithinTarget: avg <= DeliveryTargetMinutes,
	}
}

// Ticket summarizes revenue for a period.
type Ticket struct {
	Total         int     `json:"total_pedidos"`
	Revenue       float64 `json:"faturamento_total"`
	AverageTicket float64 `json:"ticket_medio"`
}

// ComputeTicket sums order values and derives the mean ticket, both rounded
// to 2 decimals.
func ComputeTicket(orders []recordstore.Order) Ticket {
	var sum float64
	for _, o := range orders {
		sum += o.TotalValue
	}
	total := len(orders)
	var avg float64
	if total > 0 {
		avg = round2(sum / float64(total))
	}
	return Ticket{Total: total, Revenue: round2(sum), AverageTicket: avg}
}

// Alert levels, ordered by severity.
const (
	LevelMedium   = "MÉDIO"
	LevelHigh     = "ALTO"
	LevelCritical = "CRÍTICO"
)

// EvaluateAlerts checks KPIs against operational floors and returns any
// triggered alerts. Currently the only rule is conversion below target;
// severity grows as the rate drops.
func EvaluateAlerts(conv Conversion, now time.Time) []recordstore.Alert {
	if conv.Total == 0 {
		return nil
	}
	rate := float64(conv.Completed) / float64(conv.Total) * 100
	if rate >= ConversionTargetPct {
		return nil
	}

	level := LevelMedium
	switch {
	case rate < 60:
		level = LevelCritical
	case rate < 70:
		level = LevelHigh
	}
	return []recordstore.Alert{{
		Kind:      "TAXA_CONVERSAO_BAIXA",
		Level:     level,
		Current:   FormatPercent(round2(rate)),
		Target:    FormatPercent(ConversionTargetPct),
		Deviation: FormatPercent(math.Round((ConversionTargetPct-rate)*10) / 10),
		Status:    "ativo",
		CreatedAt: now,
	}}
}

// Report is the composite daily KPI document persisted to relatorios_kpi.
type Report struct {
	Date         string       `json:"data"`
	GeneratedAt  time.Time    `json:"gerado_em"`
	System       string       `json:"sistema"`
	Conversion   Conversion   `json:"taxa_conversao"`
	DeliveryTime DeliveryTime `json:"tempo_medio_entrega"`
	Ticket       Ticket       `json:"ticket_medio"`
}

// BuildDailyReport assembles the daily report for the given reference time.
func BuildDailyReport(now time.Time, orders []recordstore.Order) Report {
	return Report{
		Date:         now.UTC().Format("2006-01-02"),
		GeneratedAt:  now.UTC(),
		System:       "API_IFOOD",
		Conversion:   ComputeConversion(orders),
		DeliveryTime: ComputeDeliveryTime(orders),
		Ticket:       ComputeTicket(orders),
	}
}

// DayRange returns the UTC day window [00:00:00, now] for the given time.
func DayRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, now
}

// FormatPercent renders a rate the way the legacy reports did: minimal
// decimals, but whole numbers keep one trailing zero ("70.0%", "66.67%").
func FormatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	for _, c := range s {
		if c == '.' {
			return s + "%"
		}
	}
	return s + ".0%"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
