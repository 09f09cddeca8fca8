// Package metrics defines the Prometheus collectors for the search API, the
// rebuild coordinator and counter sync, plus the scrape server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	BulkFailuresTotal    prometheus.Counter
	RebuildsTotal        *prometheus.CounterVec
	RebuildStepDuration  *prometheus.HistogramVec
	LastRebuildDocs      prometheus.Gauge
	CounterSyncTotal     *prometheus.CounterVec
	CounterSyncDropped   prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing nil uses
// the global Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_search_queries_total",
				Help: "Total recipe searches by outcome (ok, zero_result, degraded, fallback, invalid).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_search_latency_seconds",
				Help:    "Recipe search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recipe_search_results_count",
				Help:    "Number of recipes returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recipe_search_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recipe_search_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recipe_docs_indexed_total",
				Help: "Total recipe documents accepted by the search engine.",
			},
		),
		BulkFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recipe_bulk_item_failures_total",
				Help: "Total recipe documents rejected inside bulk requests.",
			},
		),
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_index_rebuilds_total",
				Help: "Index rebuilds by status and the step that ended them.",
			},
			[]string{"status", "step"},
		),
		RebuildStepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_index_rebuild_step_seconds",
				Help:    "Duration of each rebuild step.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"step"},
		),
		LastRebuildDocs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "recipe_index_last_rebuild_documents",
				Help: "Documents written by the last successful rebuild.",
			},
		),
		CounterSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_counter_sync_total",
				Help: "Counter updates propagated to the index by field and status.",
			},
			[]string{"field", "status"},
		),
		CounterSyncDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recipe_counter_sync_dropped_total",
				Help: "Counter updates dropped because the sync queue was full.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.BulkFailuresTotal,
		m.RebuildsTotal,
		m.RebuildStepDuration,
		m.LastRebuildDocs,
		m.CounterSyncTotal,
		m.CounterSyncDropped,
		m.CircuitBreakerState,
	)

	return m
}

// NewUnregistered creates collectors on a private registry. Tests and
// components constructed without a metrics sink use it.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
