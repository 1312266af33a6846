// Package auth provides the bearer-token gate in front of the transport.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/logimax/ifood-gateway/pkg/types"
)

type contextKey string

const authedKey contextKey = "authenticated"

// Authenticated reports whether the request carried an accepted bearer token.
func Authenticated(ctx context.Context) bool {
	v, _ := ctx.Value(authedKey).(bool)
	return v
}

// Options tunes the gate's policy.
type Options struct {
	// OpenDiscovery lets unauthenticated POST /mcp envelopes through so the
	// transport can serve initialize and tools/list publicly. tools/call is
	// still rejected there via Authenticated.
	OpenDiscovery bool
}

// BearerAuth returns middleware enforcing the gateway's access policy:
// health and discovery reads pass through, CORS pre-flight passes through,
// everything else requires an accepted "Authorization: Bearer <token>".
// Rejections log the path and caller, never the credential value.
func BearerAuth(store *TokenStore, log *slog.Logger, opts Options) func(http.Handler) http.Handler {
	publicGET := map[string]bool{
		"/":       true,
		"/health": true,
		"/mcp":    true, // streaming open is public, same as health
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodGet && publicGET[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if ok && store.Accepts(token) {
				ctx := context.WithValue(r.Context(), authedKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// In open-discovery deployments the envelope handler still gets
			// to answer initialize/tools/list; it consults Authenticated for
			// tools/call.
			if opts.OpenDiscovery && r.Method == http.MethodPost && r.URL.Path == "/mcp" {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("blocked unauthorized request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
			)
			types.ErrUnauthorized().WriteJSON(w)
		})
	}
}
