package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOk       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultCached   = "cached"
	ResultDisabled = "disabled"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txguard_rate_limit_exceeded_total",
			Help: "Total number of requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txguard_analyses_total",
			Help: "Total number of transaction analyses",
		},
		[]string{"result"},
	)

	DecodeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txguard_decode_errors_total",
			Help: "Total number of instructions that could not be decoded",
		},
	)

	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txguard_findings_total",
			Help: "Total number of warning findings",
		},
		[]string{"kind"},
	)

	ExplanationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txguard_explanations_total",
			Help: "Total number of explanation requests",
		},
		[]string{"result"},
	)

	ExplanationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txguard_explanation_duration_seconds",
			Help:    "Explanation request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	CircuitBreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txguard_circuit_breaker_open",
			Help: "Circuit breaker state (1 = open, 0 = closed)",
		},
		[]string{"name"},
	)

	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txguard_relay_messages_total",
			Help: "Total number of relayed wallet messages",
		},
		[]string{"type"},
	)

	SessionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txguard_sessions_expired_total",
			Help: "Total number of relay sessions removed by expiry",
		},
	)
)
