// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the apiaccounts admin interface.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Reload outcomes used as the status label of ReloadsTotal.
const (
	ReloadSuccess = "success"
	ReloadInvalid = "invalid"
	ReloadFailed  = "failed"
)

var (
	// RequestsTotal counts admin HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiaccounts_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records admin HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apiaccounts_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AuthAttemptsTotal counts authentication decisions per authenticator.
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiaccounts_auth_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"authenticator", "result"},
	)

	// ReloadsTotal counts account database rebuilds by outcome.
	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiaccounts_reloads_total",
			Help: "Account database reloads",
		},
		[]string{"status"},
	)

	// AccountsLoaded reports the number of accounts in the served generation.
	AccountsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apiaccounts_accounts_loaded",
			Help: "Accounts in the active database",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiaccounts_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"level"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthAttemptsTotal,
		ReloadsTotal,
		AccountsLoaded,
		RateLimitRejectedTotal,
	)
}
