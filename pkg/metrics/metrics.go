// Package metrics defines the Prometheus collectors of the endpoint and
// serves them for scraping on a separate port.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     prometheus.Counter

	SRURequestsTotal *prometheus.CounterVec
	DiagnosticsTotal *prometheus.CounterVec
	BackendLatency   *prometheus.HistogramVec
	RecordsReturned  prometheus.Histogram
	TotalHits        prometheus.Histogram

	CMDICacheTotal      *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
	AnalyticsDropped    prometheus.Counter
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limit.",
			},
		),
		SRURequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sru_requests_total",
				Help: "SRU requests by operation, version and outcome (ok, diagnostic, error).",
			},
			[]string{"operation", "version", "outcome"},
		),
		DiagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sru_diagnostics_total",
				Help: "Diagnostics returned to clients by URI.",
			},
			[]string{"uri"},
		),
		BackendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fcs_backend_query_seconds",
				Help:    "Full-text backend query latency in seconds, including reading every row.",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		RecordsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sru_records_returned",
				Help:    "Records on a searchRetrieve page.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
			},
		),
		TotalHits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sru_total_hits",
				Help:    "numberOfRecords reported by searchRetrieve.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		CMDICacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcs_cmdi_cache_total",
				Help: "CMDI lookups by result (request_hit, shared_hit, fetch, error).",
			},
			[]string{"result"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fcs_analytics_events_dropped_total",
				Help: "Analytics events dropped because the buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RateLimitedTotal,
		m.SRURequestsTotal,
		m.DiagnosticsTotal,
		m.BackendLatency,
		m.RecordsReturned,
		m.TotalHits,
		m.CMDICacheTotal,
		m.CircuitBreakerState,
		m.AnalyticsDropped,
	)

	return m
}
