// Package metrics defines the Prometheus collectors used by the research
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ResearchRunsTotal    *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	ProviderFetchesTotal *prometheus.CounterVec
	ProviderItemsTotal   *prometheus.CounterVec
	GenerationCalls      *prometheus.CounterVec
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	IndexChunks          prometheus.Gauge
	IndexDocuments       prometheus.Gauge
	ReinitializeTotal    *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg leaves
// the collectors unregistered, which tests use to avoid duplicate
// registration panics on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ResearchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_runs_total",
				Help: "Research runs by terminal status and error kind.",
			},
			[]string{"status", "error_kind"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "research_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage.",
				Buckets: []float64{0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		ProviderFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_fetches_total",
				Help: "External provider requests by provider and outcome (ok, error, circuit_open).",
			},
			[]string{"provider", "outcome"},
		),
		ProviderItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_items_total",
				Help: "Provider items considered, by provider and verdict (accepted, rejected).",
			},
			[]string{"provider", "verdict"},
		),
		GenerationCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_calls_total",
				Help: "Language model calls by role and status.",
			},
			[]string{"role", "status"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_cache_hits_total",
				Help: "Fetch cache hits by provider.",
			},
			[]string{"provider"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_cache_misses_total",
				Help: "Fetch cache misses by provider.",
			},
			[]string{"provider"},
		),
		IndexChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_index_chunks",
				Help: "Chunks in the live lexical index.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_index_documents",
				Help: "Source documents behind the live lexical index.",
			},
		),
		ReinitializeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_reinitialize_total",
				Help: "Index rebuilds by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.HTTPRequestsInFlight,
			m.ResearchRunsTotal,
			m.StageDuration,
			m.ProviderFetchesTotal,
			m.ProviderItemsTotal,
			m.GenerationCalls,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.IndexChunks,
			m.IndexDocuments,
			m.ReinitializeTotal,
			m.CircuitBreakerState,
		)
	}
	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
