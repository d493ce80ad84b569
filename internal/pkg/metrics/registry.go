package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vora_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "vora_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsAffected tracks rows affected by write operations
	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "vora_db_rows_affected",
			Help:                            "Number of rows affected by database write operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vora_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// HTTP Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vora_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "vora_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "path"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vora_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	// RateLimited tracks requests rejected by the per-IP limiters
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vora_http_rate_limited_total",
			Help: "Total requests rejected by rate limiting, by limiter",
		},
		[]string{"limiter"},
	)
)

// Authentication Metrics
var (
	// Logins tracks completed login attempts by provider and outcome
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vora_logins_total",
			Help: "Total login attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// LoginDuration tracks callback handling latency, dominated by the
	// provider round trips
	LoginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "vora_login_duration_ms",
			Help:                            "Login callback duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"provider"},
	)

	// ProviderCalls tracks outbound provider API calls
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vora_provider_calls_total",
			Help: "Total outbound provider API calls by provider, call, and status",
		},
		[]string{"provider", "call", "status"},
	)

	// SessionsRevoked tracks explicit session revocations
	SessionsRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vora_sessions_revoked_total",
			Help: "Total sessions revoked by reason",
		},
		[]string{"reason"},
	)
)

// TrackPendingLogins registers a gauge that reads the PKCE store size on
// every scrape, so swept or expired entries never leave it stale. Call once
// at startup after the store is built.
func TrackPendingLogins(size func() float64) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vora_pending_logins",
			Help: "Number of in-flight login attempts awaiting their callback",
		},
		size,
	)
}
