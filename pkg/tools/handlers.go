package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/logimax/ifood-gateway/pkg/analytics"
	"github.com/logimax/ifood-gateway/pkg/connectors"
	"github.com/logimax/ifood-gateway/pkg/merchant"
	"github.com/logimax/ifood-gateway/pkg/recordstore"
	"github.com/logimax/ifood-gateway/pkg/types"
)

// MerchantAPI is the slice of the merchant client the handlers use.
type MerchantAPI interface {
	Authenticate(ctx context.Context) (merchant.Token, error)
	FetchSalesMetrics(ctx context.Context, merchantID string, from, to time.Time) (merchant.SalesMetrics, error)
}

// Assistant is the slice of the assistant client the handlers use.
type Assistant interface {
	Ask(ctx context.Context, question, contextJSON string) (string, error)
}

type handlers struct {
	deps Deps
}

func (h *handlers) store() (recordstore.Store, error) {
	v, ok := h.deps.Cache.Get(connectors.KindRecordStore)
	if !ok {
		return nil, errors.New("banco de dados indisponível")
	}
	s, ok := v.(recordstore.Store)
	if !ok {
		return nil, fmt.Errorf("conector de banco com tipo inesperado %T", v)
	}
	return s, nil
}

func (h *handlers) merchantAPI() (MerchantAPI, error) {
	v, ok := h.deps.Cache.Get(connectors.KindMerchantAPI)
	if !ok {
		return nil, errors.New("API do iFood indisponível")
	}
	m, ok := v.(MerchantAPI)
	if !ok {
		return nil, fmt.Errorf("conector do iFood com tipo inesperado %T", v)
	}
	return m, nil
}

func (h *handlers) assistant() (Assistant, error) {
	v, ok := h.deps.Cache.Get(connectors.KindAssistant)
	if !ok {
		return nil, errors.New("assistente de IA indisponível")
	}
	a, ok := v.(Assistant)
	if !ok {
		return nil, fmt.Errorf("conector do assistente com tipo inesperado %T", v)
	}
	return a, nil
}

func (h *handlers) ordersToday(ctx context.Context) ([]recordstore.Order, time.Time, error) {
	s, err := h.store()
	if err != nil {
		return nil, time.Time{}, err
	}
	now := h.deps.Now()
	from, to := analytics.DayRange(now)
	orders, err := s.OrdersBetween(ctx, from, to)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("consulta de pedidos: %w", err)
	}
	return orders, now, nil
}

func jsonResult(header string, v any) (types.ToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return types.ToolResult{}, err
	}
	return types.TextResult("%s\n%s", header, body), nil
}

func (h *handlers) dailyKPIs(ctx context.Context, _ json.RawMessage) (types.ToolResult, error) {
	orders, now, err := h.ordersToday(ctx)
	if err != nil {
		return types.ToolResult{}, err
	}
	conv := analytics.ComputeConversion(orders)
	return jsonResult(fmt.Sprintf("📊 KPIs de pedidos em %s:", now.UTC().Format("2006-01-02")), conv)
}

func (h *handlers) deliveryStats(ctx context.Context, _ json.RawMessage) (types.ToolResult, error) {
	orders, _, err := h.ordersToday(ctx)
	if err != nil {
		return types.ToolResult{}, err
	}
	dt := analytics.ComputeDeliveryTime(orders)
	header := "🚚 Estatísticas de entrega de hoje:"
	if !dt.WithinTarget {
		header = "⚠️ Tempo de entrega acima da meta:"
	}
	return jsonResult(header, dt)
}

func (h *handlers) averageTicket(ctx context.Context, _ json.RawMessage) (types.ToolResult, error) {
	orders, _, err := h.ordersToday(ctx)
	if err != nil {
		return types.ToolResult{}, err
	}
	return jsonResult("💰 Faturamento de hoje:", analytics.ComputeTicket(orders))
}

// systemStatus backs both check_system_status and system_diagnostic. It only
// inspects connector states, never initializes them, so it always answers
// fast even when every backend is down.
func (h *handlers) systemStatus(_ context.Context, _ json.RawMessage) (types.ToolResult, error) {
	type diag struct {
		Server     string            `json:"servidor"`
		Version    string            `json:"versao"`
		Time       time.Time         `json:"horario"`
		Connectors map[string]string `json:"conectores"`
	}
	d := diag{
		Server:     types.ServerName,
		Version:    types.ServerVersion,
		Time:       h.deps.Now().UTC(),
		Connectors: make(map[string]string),
	}
	healthy := true
	for _, kind := range h.deps.Cache.Kinds() {
		state := h.deps.Cache.StateOf(kind)
		d.Connectors[string(kind)] = string(state)
		if state == connectors.StateFailed {
			healthy = false
		}
	}
	header := "✅ Sistema operacional."
	if !healthy {
		header = "⚠️ Sistema degradado: há conectores com falha."
	}
	return jsonResult(header, d)
}

func (h *handlers) syncIFood(ctx context.Context, _ json.RawMessage) (types.ToolResult, error) {
	api, err := h.merchantAPI()
	if err != nil {
		return types.ToolResult{}, err
	}
	s, err := h.store()
	if err != nil {
		return types.ToolResult{}, err
	}

	now := h.deps.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	metrics, err := api.FetchSalesMetrics(ctx, h.deps.MerchantID, from, now)
	if err != nil {
		return types.ToolResult{}, fmt.Errorf("busca de métricas no iFood: %w", err)
	}

	row := recordstore.WeeklyMetrics{
		MerchantID:   h.deps.MerchantID,
		Month:        int(now.Month()),
		Year:         now.Year(),
		PeriodStart:  from.Format("2006-01-02"),
		PeriodEnd:    now.Format("2006-01-02"),
		TotalSales:   metrics.TotalSales,
		NewCustomers: metrics.NewCustomers,
		Revenue:      metrics.Revenue,
		AvgTicket:    metrics.AvgTicket,
		Conversion:   metrics.Conversion,
	}
	if err := s.InsertWeeklyMetrics(ctx, row); err != nil {
		return types.ToolResult{}, fmt.Errorf("gravação das métricas: %w", err)
	}
	return jsonResult("✅ Dados do iFood sincronizados com sucesso:", row)
}

func (h *handlers) ifoodLogin(ctx context.Context, _ json.RawMessage) (types.ToolResult, error) {
	api, err := h.merchantAPI()
	if err != nil {
		return types.ToolResult{}, err
	}
	token, err := api.Authenticate(ctx)
	if err != nil {
		return types.ToolResult{}, fmt.Errorf("autenticação no iFood: %w", err)
	}
	// The token value itself never reaches the caller or the logs.
	return types.TextResult("✅ Conexão com iFood estabelecida com sucesso! Token válido por %d segundos.", token.ExpiresIn), nil
}

func (h *handlers) checkAlerts(ctx context.Context, _ json.RawMessage) (types.ToolResult, error) {
	orders, now, err := h.ordersToday(ctx)
	if err != nil {
		return types.ToolResult{}, err
	}
	alerts := analytics.EvaluateAlerts(analytics.ComputeConversion(orders), now)
	if len(alerts) == 0 {
		return types.TextResult("✅ Todos os KPIs dentro das metas. Nenhum alerta gerado."), nil
	}

	s, err := h.store()
	if err != nil {
		return types.ToolResult{}, err
	}
	var lines []string
	for _, a := range alerts {
		if err := s.InsertAlert(ctx, a); err != nil {
			return types.ToolResult{}, fmt.Errorf("gravação de alerta: %w", err)
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: atual %s, meta %s", a.Level, a.Kind, a.Current, a.Target))
	}
	return types.TextResult("⚠️ %d alerta(s) registrado(s):\n%s", len(alerts), strings.Join(lines, "\n")), nil
}

func (h *handlers) dailyReport(ctx context.Context, _ json.RawMessage) (types.ToolResult, error) {
	orders, now, err := h.ordersToday(ctx)
	if err != nil {
		return types.ToolResult{}, err
	}
	report := analytics.BuildDailyReport(now, orders)
	payload, err := json.Marshal(report)
	if err != nil {
		return types.ToolResult{}, err
	}

	s, err := h.store()
	if err != nil {
		return types.ToolResult{}, err
	}
	row := recordstore.ReportRow{
		Date:        report.Date,
		Payload:     payload,
		Kind:        "diario",
		GeneratedBy: "gateway",
	}
	if err := s.InsertReport(ctx, row); err != nil {
		return types.ToolResult{}, fmt.Errorf("gravação do relatório: %w", err)
	}
	return jsonResult(fmt.Sprintf("📋 Relatório diário de %s gerado e gravado:", report.Date), report)
}

func (h *handlers) askAssistant(ctx context.Context, args json.RawMessage) (types.ToolResult, error) {
	var params struct {
		Question string `json:"question"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return types.ToolResult{}, fmt.Errorf("argumentos inválidos: %w", err)
		}
	}
	if strings.TrimSpace(params.Question) == "" {
		return types.ToolResult{}, errors.New("o campo question é obrigatório")
	}

	a, err := h.assistant()
	if err != nil {
		return types.ToolResult{}, err
	}

	answer, err := a.Ask(ctx, params.Question, h.operationalContext(ctx))
	if err != nil {
		return types.ToolResult{}, fmt.Errorf("consulta ao assistente: %w", err)
	}
	return types.TextResult("🤖 %s", answer), nil
}

// operationalContext snapshots today's report and the open alerts for the
// assistant. Best effort: the assistant still answers with an empty context
// when the record store is down.
func (h *handlers) operationalContext(ctx context.Context) string {
	s, err := h.store()
	if err != nil {
		return "{}"
	}
	now := h.deps.Now()
	from, to := analytics.DayRange(now)
	orders, err := s.OrdersBetween(ctx, from, to)
	if err != nil {
		return "{}"
	}

	alerts, err := s.ActiveAlerts(ctx)
	if err != nil {
		h.deps.Log.WarnContext(ctx, "active alerts unavailable for assistant context", "error", err)
	}
	if alerts == nil {
		alerts = []recordstore.Alert{}
	}

	blob, err := json.Marshal(map[string]any{
		"relatorio_diario": analytics.BuildDailyReport(now, orders),
		"alertas_ativos":   alerts,
	})
	if err != nil {
		return "{}"
	}
	return string(blob)
}
