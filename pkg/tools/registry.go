// Package tools defines the gateway's tool registry and dispatcher.
// The registry is built once at startup and never mutated; dispatch turns
// every handler failure into a textual result so the transport never sees
// an error from a tool call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/logimax/ifood-gateway/pkg/connectors"
	"github.com/logimax/ifood-gateway/pkg/types"
)

// Handler executes one tool. Errors and panics are absorbed by Dispatch.
type Handler func(ctx context.Context, args json.RawMessage) (types.ToolResult, error)

// Deps is everything the built-in handlers need.
type Deps struct {
	Cache      *connectors.Cache
	MerchantID string
	Log        *slog.Logger
	Now        func() time.Time
}

// Registry maps tool names to handlers and keeps the ordered descriptor
// list served by tools/list.
type Registry struct {
	descriptors []types.ToolDescriptor
	handlers    map[string]Handler
	timeout     time.Duration
	log         *slog.Logger
}

var emptySchema = json.RawMessage(`{"type":"object"}`)

var askSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"question": {"type": "string", "description": "Pergunta sobre a operação"}
	},
	"required": ["question"]
}`)

// NewRegistry builds the static tool set. callTimeout bounds each dispatch;
// zero means no bound.
func NewRegistry(deps Deps, callTimeout time.Duration) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	h := &handlers{deps: deps}

	r := &Registry{
		handlers: make(map[string]Handler),
		timeout:  callTimeout,
		log:      deps.Log,
	}
	r.register("get_daily_kpis", "Calcula os KPIs de pedidos do dia atual (conversão, cancelamento, ticket)", emptySchema, h.dailyKPIs)
	r.register("get_delivery_stats", "Estatísticas de entrega do dia: pedidos entregues e tempo médio", emptySchema, h.deliveryStats)
	r.register("get_average_ticket", "Faturamento e ticket médio do dia atual", emptySchema, h.averageTicket)
	r.register("check_system_status", "Verifica a integridade do servidor e das conexões externas", emptySchema, h.systemStatus)
	r.register("system_diagnostic", "Diagnóstico detalhado dos conectores do gateway", emptySchema, h.systemStatus)
	r.register("sync_ifood_data", "Força a busca de dados no iFood e grava as métricas no banco", emptySchema, h.syncIFood)
	r.register("ifood_login", "Testa a autenticação OAuth2 com a API do iFood", emptySchema, h.ifoodLogin)
	r.register("check_alerts", "Verifica se algum KPI está fora dos limites e registra alertas", emptySchema, h.checkAlerts)
	r.register("generate_daily_report", "Gera e grava o relatório diário de KPIs", emptySchema, h.dailyReport)
	r.register("ask_assistant", "Consulta a IA de supervisão com o contexto operacional atual", askSchema, h.askAssistant)
	return r
}

func (r *Registry) register(name, description string, schema json.RawMessage, handler Handler) {
	r.descriptors = append(r.descriptors, types.ToolDescriptor{
		Name:        name,
		Description: description,
		InputSchema: schema,
	})
	r.handlers[name] = handler
}

// List returns the registered descriptors in registration order. The slice
// is shared: callers must not mutate it.
func (r *Registry) List() []types.ToolDescriptor {
	return r.descriptors
}

// Dispatch runs the named tool. Unknown names, handler errors, panics and
// timeouts all come back as normal text results; the invoking channel is
// never torn down by a tool failure.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) types.ToolResult {
	handler, ok := r.handlers[name]
	if !ok {
		return types.TextResult("Ferramenta %q não encontrada.", name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := r.invoke(ctx, handler, args)
	if err != nil {
		if ctx.Err() != nil {
			r.log.WarnContext(ctx, "tool call timed out", "tool", name)
			return types.TextResult("❌ A ferramenta %s excedeu o tempo limite.", name)
		}
		r.log.ErrorContext(ctx, "tool call failed", "tool", name, "error", err)
		return types.TextResult("❌ Erro ao executar %s: %v", name, err)
	}
	return result
}

// invoke is the defense-in-depth boundary: well-behaved handlers return
// errors, but a panicking one must not escape to the transport either.
func (r *Registry) invoke(ctx context.Context, handler Handler, args json.RawMessage) (result types.ToolResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, args)
}
