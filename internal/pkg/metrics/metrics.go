// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestDuration observes handler latency by method, path and status.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copyfolio_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// LookupsTotal counts lookups by kind (personality, wallet).
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copyfolio_lookups_total",
			Help: "Lookup requests by kind.",
		},
		[]string{"kind"},
	)

	// UpstreamErrorsTotal counts upstream failures by source.
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copyfolio_upstream_errors_total",
			Help: "Upstream API failures by source.",
		},
		[]string{"source"},
	)

	// SwapsTotal counts deployment swap outcomes.
	SwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copyfolio_swaps_total",
			Help: "Deployment swap outcomes.",
		},
		[]string{"result"},
	)
)

// MustRegisterMetrics registers all collectors with the default registry.
// Call once at startup.
func MustRegisterMetrics() {
	prometheus.MustRegister(
		HTTPRequestDuration,
		LookupsTotal,
		UpstreamErrorsTotal,
		SwapsTotal,
	)
}
