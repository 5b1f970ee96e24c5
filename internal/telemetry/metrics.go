// Package telemetry records search and index-build metrics. Prometheus
// collectors are exposed for scraping; the query log keeps local aggregates
// of query terms, outcomes and latency, optionally persisted to SQLite.
// Nothing is reported externally.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	FilterFallbackTotal prometheus.Counter
	VectorDegraded      prometheus.Counter
	DocsIndexedTotal    prometheus.Counter
	RemoteErrorsTotal   prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smre_search_queries_total",
				Help: "Total search queries by backend and outcome (ok, fallback, degraded, error).",
			},
			[]string{"backend", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smre_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"backend"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "smre_search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		FilterFallbackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smre_filter_fallback_total",
				Help: "Searches whose filters matched nothing and fell back to unfiltered results.",
			},
		),
		VectorDegraded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smre_vector_degraded_total",
				Help: "Searches that ran without the vector signal.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smre_documents_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		RemoteErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smre_remote_errors_total",
				Help: "Failed remote backend requests.",
			},
		),
	}

	m.registry.MustRegister(
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.FilterFallbackTotal,
		m.VectorDegraded,
		m.DocsIndexedTotal,
		m.RemoteErrorsTotal,
	)
	return m
}

// Search outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeDegraded = "degraded"
	OutcomeError    = "error"
)

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(backend, outcome string, latency time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(backend, outcome).Inc()
	m.SearchLatency.WithLabelValues(backend).Observe(latency.Seconds())
	if outcome != OutcomeError {
		m.SearchResultsCount.Observe(float64(results))
	}
}

// FilterFallback counts a search that discarded its filters.
func (m *Metrics) FilterFallback() {
	if m == nil {
		return
	}
	m.FilterFallbackTotal.Inc()
}

// VectorPathDegraded counts a search that ran without embeddings.
func (m *Metrics) VectorPathDegraded() {
	if m == nil {
		return
	}
	m.VectorDegraded.Inc()
}

// DocumentsIndexed adds n to the indexed document count.
func (m *Metrics) DocumentsIndexed(n int) {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Add(float64(n))
}

// RemoteError counts a failed remote request.
func (m *Metrics) RemoteError() {
	if m == nil {
		return
	}
	m.RemoteErrorsTotal.Inc()
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
