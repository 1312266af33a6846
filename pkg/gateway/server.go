// Package gateway is the HTTP transport: the JSON-RPC envelope on POST /mcp,
// the SSE streaming session on GET /mcp, and the public health surface.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/logimax/ifood-gateway/pkg/auth"
	"github.com/logimax/ifood-gateway/pkg/connectors"
	"github.com/logimax/ifood-gateway/pkg/types"
)

const (
	maxBodyBytes    = 1 << 20 // 1 MB
	maxRateLimiters = 10_000
)

// ToolRegistry is the tool surface the transport dispatches into.
type ToolRegistry interface {
	List() []types.ToolDescriptor
	Dispatch(ctx context.Context, name string, args json.RawMessage) types.ToolResult
}

// Options configures the transport.
type Options struct {
	Log   *slog.Logger
	Tools ToolRegistry
	Cache *connectors.Cache

	// HeartbeatInterval paces SSE keep-alive comments.
	HeartbeatInterval time.Duration

	// RateLimitPerMin caps tools/call per caller. Zero disables limiting.
	RateLimitPerMin int
}

// Server handles the MCP transport routes.
type Server struct {
	log       *slog.Logger
	tools     ToolRegistry
	cache     *connectors.Cache
	heartbeat time.Duration
	toolCalls metric.Int64Counter

	rateLimiters map[string]*rate.Limiter
	rlOrder      []string
	rlMu         sync.Mutex
	perCallerLim int
}

// New builds the transport server.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	counter, err := otel.Meter("github.com/logimax/ifood-gateway/pkg/gateway").
		Int64Counter("gateway_tool_calls_total",
			metric.WithDescription("tools/call invocations by tool name"))
	if err != nil {
		opts.Log.Warn("tool call counter unavailable", "error", err)
	}
	return &Server{
		log:          opts.Log,
		tools:        opts.Tools,
		cache:        opts.Cache,
		heartbeat:    opts.HeartbeatInterval,
		toolCalls:    counter,
		rateLimiters: make(map[string]*rate.Limiter),
		perCallerLim: opts.RateLimitPerMin,
	}
}

// Router assembles the chi router with the full middleware chain.
func (s *Server) Router(authMW func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(corsHeaders)
	if authMW != nil {
		r.Use(authMW)
	}

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)
	r.Get("/mcp", s.handleStream)
	r.Post("/mcp", s.handleEnvelope)
	return r
}

// corsHeaders answers pre-flight and stamps the permissive CORS policy the
// browser-based dashboard clients rely on.
func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// connectorStates snapshots the cache without initializing anything, so the
// health surface answers fast even when every backend is down.
func (s *Server) connectorStates() map[string]string {
	states := make(map[string]string)
	if s.cache == nil {
		return states
	}
	for _, kind := range s.cache.Kinds() {
		states[string(kind)] = string(s.cache.StateOf(kind))
	}
	return states
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       types.ServerName,
		"version":    types.ServerVersion,
		"protocol":   types.ProtocolVersion,
		"conectores": s.connectorStates(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"conectores": s.connectorStates(),
	})
}

// handleEnvelope is POST /mcp: one JSON-RPC request per HTTP request.
func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeRPC(ctx, w, types.Err(nil, types.CodeParseError, "invalid JSON body"))
		return
	}

	switch types.KindOf(req.Method) {
	case types.MethodInitialize:
		var params types.InitializeParams
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params, &params) // client info is advisory
		}
		s.log.InfoContext(ctx, "client initialized",
			"client", params.ClientInfo.Name,
			"client_version", params.ClientInfo.Version,
		)
		s.writeRPC(ctx, w, types.OK(req.ID, types.NewInitializeResult()))

	case types.MethodToolsList:
		s.writeRPC(ctx, w, types.OK(req.ID, types.ListToolsResult{Tools: s.tools.List()}))

	case types.MethodToolsCall:
		if !auth.Authenticated(ctx) {
			s.log.WarnContext(ctx, "unauthenticated tools/call blocked", "remote", r.RemoteAddr)
			types.ErrUnauthorized().WriteJSON(w)
			return
		}
		if !s.allowRate(callerKey(r)) {
			types.ErrRateLimited().WriteJSON(w)
			return
		}

		var call types.CallParams
		if err := json.Unmarshal(req.Params, &call); err != nil || call.Name == "" {
			s.writeRPC(ctx, w, types.Err(req.ID, types.CodeInvalidParams, "params must carry a tool name"))
			return
		}

		if s.toolCalls != nil {
			s.toolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", call.Name)))
		}
		result := s.tools.Dispatch(ctx, call.Name, call.Arguments)
		s.writeRPC(ctx, w, types.OK(req.ID, result))

	case types.MethodEmpty:
		// Some clients ping the endpoint with an empty envelope; answer
		// politely instead of erroring.
		s.writeRPC(ctx, w, types.OK(req.ID, struct{}{}))

	default:
		s.writeRPC(ctx, w, types.Err(req.ID, types.CodeMethodNotFound, "method not found: "+req.Method))
	}
}

func (s *Server) writeRPC(ctx context.Context, w http.ResponseWriter, resp types.RPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.ErrorContext(ctx, "response encode failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// callerKey identifies the caller for rate limiting. RealIP rewrites
// RemoteAddr from proxy headers when present; without a proxy the ephemeral
// port must be stripped or every connection would get its own limiter.
func callerKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// allowRate keeps one limiter per caller in a bounded map with LRU eviction.
func (s *Server) allowRate(caller string) bool {
	if s.perCallerLim <= 0 {
		return true
	}
	s.rlMu.Lock()
	defer s.rlMu.Unlock()

	lim, ok := s.rateLimiters[caller]
	if ok {
		for i, k := range s.rlOrder {
			if k == caller {
				s.rlOrder = append(s.rlOrder[:i], s.rlOrder[i+1:]...)
				break
			}
		}
		s.rlOrder = append(s.rlOrder, caller)
		return lim.Allow()
	}

	if len(s.rateLimiters) >= maxRateLimiters {
		oldest := s.rlOrder[0]
		s.rlOrder = s.rlOrder[1:]
		delete(s.rateLimiters, oldest)
	}

	perSec := rate.Limit(float64(s.perCallerLim) / 60.0)
	lim = rate.NewLimiter(perSec, s.perCallerLim)
	s.rateLimiters[caller] = lim
	s.rlOrder = append(s.rlOrder, caller)
	return lim.Allow()
}
