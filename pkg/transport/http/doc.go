// Package http serves the apiaccounts admin API over net/http.
//
// Admin registers the routes (/healthz, /readyz, /metrics, and the /api/
// endpoints); Server wraps a handler with the default middleware stack and
// runs it with graceful shutdown.
package http
