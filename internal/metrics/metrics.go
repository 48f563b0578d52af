// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "analysis_keeper"

var (
	EngineRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_request_duration_seconds",
			Help:      "Latency of analysis engine calls by operation and status.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"op", "status"},
	)
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "uploads_total", Help: "Upload attempts by outcome."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

// Upload outcomes.
const (
	OutcomeStored     = "stored"
	OutcomeDegraded   = "degraded" // stored, but the engine body was not a JSON object
	OutcomeRejected   = "rejected"
	OutcomeTransport  = "transport_error"
	OutcomeStoreError = "store_error"
)

// RegisterCollectors registers every collector of this package.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(EngineRequests, Uploads, RateLimitAllowed, RateLimitRejected)
}

// ObserveEngine records one engine call.
func ObserveEngine(op, status string, d time.Duration) {
	EngineRequests.WithLabelValues(op, status).Observe(d.Seconds())
}

// CountUpload records one upload outcome.
func CountUpload(outcome string) {
	Uploads.WithLabelValues(outcome).Inc()
}
