// Gateway is the MCP entrypoint for the API_IFOOD operation: it serves the
// tool catalog over JSON-RPC, streams SSE sessions, and lazily connects to
// the record store, the iFood merchant API and the AI assistant.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logimax/ifood-gateway/pkg/assistant"
	"github.com/logimax/ifood-gateway/pkg/auth"
	"github.com/logimax/ifood-gateway/pkg/config"
	"github.com/logimax/ifood-gateway/pkg/connectors"
	"github.com/logimax/ifood-gateway/pkg/gateway"
	"github.com/logimax/ifood-gateway/pkg/merchant"
	igOtel "github.com/logimax/ifood-gateway/pkg/otel"
	"github.com/logimax/ifood-gateway/pkg/recordstore"
	"github.com/logimax/ifood-gateway/pkg/reporter"
	"github.com/logimax/ifood-gateway/pkg/tools"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()

	// ── OpenTelemetry ────────────────────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelShutdown, err := igOtel.Setup(ctx, igOtel.Config{
		ServiceName:    config.EnvOr("OTEL_SERVICE_NAME", "ifood-gateway"),
		OTLPEndpoint:   otelEndpoint,
		MetricsEnabled: true,
		TracingEnabled: otelEndpoint != "",
	})
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	// ── Connectors (lazy) ────────────────────────────────────────────────
	// Nothing dials out at startup: each backend connects on first use and a
	// missing credential only disables its own connector.
	cache := connectors.NewCache(map[connectors.Kind]connectors.Constructor{
		connectors.KindRecordStore: func() (any, error) {
			return buildRecordStore(ctx, cfg)
		},
		connectors.KindMerchantAPI: func() (any, error) {
			if cfg.IFoodClientID == "" || cfg.IFoodClientSecret == "" {
				return nil, errors.New("IFOOD_CLIENT_ID / IFOOD_CLIENT_SECRET not configured")
			}
			return merchant.New(cfg.IFoodBaseURL, cfg.IFoodClientID, cfg.IFoodClientSecret, log), nil
		},
		connectors.KindAssistant: func() (any, error) {
			if cfg.AssistantKey == "" {
				return nil, errors.New("OPENAI_API_KEY not configured")
			}
			return assistant.New(cfg.AssistantBaseURL, cfg.AssistantKey, cfg.AssistantModel), nil
		},
	}, log)

	registry := tools.NewRegistry(tools.Deps{
		Cache:      cache,
		MerchantID: cfg.MerchantID,
		Log:        log,
	}, cfg.CallTimeout)

	srv := gateway.New(gateway.Options{
		Log:               log,
		Tools:             registry,
		Cache:             cache,
		HeartbeatInterval: cfg.HeartbeatInterval,
		RateLimitPerMin:   cfg.RateLimitPerMin,
	})
	gate := auth.BearerAuth(auth.NewTokenStore(cfg.AcceptedTokens), log, auth.Options{
		OpenDiscovery: cfg.OpenDiscovery,
	})
	router := srv.Router(gate)

	// ── Scheduled KPI jobs ───────────────────────────────────────────────
	go reporter.New(cache, log).Run(ctx, cfg.ReportInterval)

	// ── Metrics (internal) ───────────────────────────────────────────────
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	// ── Server ───────────────────────────────────────────────────────────
	// No WriteTimeout: SSE sessions on GET /mcp stay open indefinitely.
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("gateway starting", "addr", cfg.Addr, "open_discovery", cfg.OpenDiscovery)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down gateway")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Error("metrics server shutdown error", "error", err)
	}
}

// buildRecordStore prefers a direct Postgres pool when SUPABASE_DB_URL is
// set and falls back to the hosted PostgREST surface otherwise.
func buildRecordStore(ctx context.Context, cfg config.Config) (any, error) {
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return recordstore.NewPGStore(pool), nil
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		return recordstore.NewRESTStore(cfg.SupabaseURL, cfg.SupabaseKey), nil
	}
	return nil, errors.New("no record store configured: set SUPABASE_DB_URL or SUPABASE_URL/SUPABASE_KEY")
}
