package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/apiaccounts/pkg/observability"
	"github.com/rhuss/apiaccounts/pkg/transport"
)

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// It checks the bypass list, runs authentication, enforces the read-only
// level, optionally enforces rate limits, and injects the identity into the
// request context.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="apiaccounts"`)
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthenticated.Error())
				return
			}

			id := result.Identity
			if id.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteError(w, http.StatusInternalServerError, "server_error", "internal authentication error")
				return
			}

			if id.ReadOnly() && !SafeMethod(r.Method) {
				slog.Warn("read-only account attempted mutation",
					"subject", id.Subject,
					"method", r.Method,
					"path", r.URL.Path,
				)
				transport.WriteError(w, http.StatusForbidden, "forbidden", ErrForbidden.Error())
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					slog.Warn("rate limit exceeded", "subject", id.Subject, "level", id.Level)
					observability.RateLimitRejectedTotal.WithLabelValues(string(id.Level)).Inc()
					transport.WriteError(w, http.StatusTooManyRequests, "too_many_requests", ErrTooManyRequests.Error())
					return
				}
			}

			slog.Debug("authentication succeeded",
				"subject", id.Subject,
				"method", id.Method,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), id)))
		})
	}
}

// SafeMethod reports whether an HTTP method is non-mutating.
func SafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
