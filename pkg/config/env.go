// Package config provides shared environment variable helpers and the
// gateway configuration loader.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvOr returns the environment variable value or a fallback default.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvOrInt returns an integer environment variable or a fallback default.
// Logs a warning if the value is set but not parseable.
func EnvOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return n
}

// EnvOrBool returns a boolean environment variable or a fallback default.
func EnvOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return b
}

// legacyToken is the shared secret several deployed variants still present.
// It stays accepted alongside GATEWAY_TOKEN until every client migrates.
const legacyToken = "ifood2026"

// Config holds everything the gateway reads from the environment. A missing
// backend credential never prevents startup; the affected connector simply
// reports itself unavailable.
type Config struct {
	Addr        string
	MetricsAddr string

	SupabaseURL string
	SupabaseKey string
	PostgresDSN string

	IFoodBaseURL      string
	IFoodClientID     string
	IFoodClientSecret string
	MerchantID        string

	AssistantBaseURL string
	AssistantKey     string
	AssistantModel   string

	AcceptedTokens []string
	OpenDiscovery  bool

	CallTimeout       time.Duration
	HeartbeatInterval time.Duration
	RateLimitPerMin   int
	ReportInterval    time.Duration
}

// Load reads the full gateway configuration from the environment.
func Load() Config {
	return Config{
		Addr:        EnvOr("GATEWAY_ADDR", ":"+EnvOr("PORT", "8080")),
		MetricsAddr: EnvOr("METRICS_ADDR", "127.0.0.1:9090"),

		SupabaseURL: os.Getenv("SUPABASE_URL"),
		SupabaseKey: os.Getenv("SUPABASE_KEY"),
		PostgresDSN: os.Getenv("SUPABASE_DB_URL"),

		IFoodBaseURL:      EnvOr("IFOOD_API_BASE_URL", "https://merchant-api.ifood.com.br"),
		IFoodClientID:     os.Getenv("IFOOD_CLIENT_ID"),
		IFoodClientSecret: os.Getenv("IFOOD_CLIENT_SECRET"),
		MerchantID:        os.Getenv("IFOOD_MERCHANT_ID"),

		AssistantBaseURL: EnvOr("ASSISTANT_BASE_URL", "https://api.openai.com/v1"),
		AssistantKey:     os.Getenv("OPENAI_API_KEY"),
		AssistantModel:   EnvOr("OPENAI_MODEL", "gpt-4o"),

		AcceptedTokens: acceptedTokens(),
		OpenDiscovery:  EnvOrBool("GATEWAY_OPEN_DISCOVERY", true),

		CallTimeout:       time.Duration(EnvOrInt("TOOL_CALL_TIMEOUT_SEC", 30)) * time.Second,
		HeartbeatInterval: time.Duration(EnvOrInt("SSE_HEARTBEAT_SEC", 15)) * time.Second,
		RateLimitPerMin:   EnvOrInt("RATE_LIMIT_PER_CALLER", 60),
		ReportInterval:    time.Duration(EnvOrInt("REPORT_INTERVAL_MIN", 24*60)) * time.Minute,
	}
}

// acceptedTokens resolves the bearer secrets the auth gate accepts.
// An explicit GATEWAY_TOKEN takes precedence; GATEWAY_EXTRA_TOKENS
// (comma-separated) and the built-in legacy secret remain accepted.
func acceptedTokens() []string {
	var tokens []string
	if t := os.Getenv("GATEWAY_TOKEN"); t != "" {
		tokens = append(tokens, t)
	}
	for _, t := range strings.Split(os.Getenv("GATEWAY_EXTRA_TOKENS"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	tokens = append(tokens, legacyToken)
	return tokens
}
