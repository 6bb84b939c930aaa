// Package metrics defines the Prometheus collectors used by the indexer,
// searcher and analytics binaries and serves them for scraping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RankQueriesTotal     *prometheus.CounterVec
	RankLatency          *prometheus.HistogramVec
	RankResultsCount     prometheus.Histogram
	ExpertLatency        *prometheus.HistogramVec
	ExpertErrorsTotal    *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	VocabularySize       prometheus.Gauge
	IndexedDocuments     *prometheus.GaugeVec
	BuildDuration        *prometheus.HistogramVec
	IndexEventsTotal     *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg, or with the
// default registry when reg is nil.
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
		RankQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rank_queries_total",
				Help: "Total rank queries by outcome (ok, empty, invalid, timeout, error).",
			},
			[]string{"result_type"},
		),
		RankLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rank_latency_seconds",
				Help:    "Ensemble rank latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		RankResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rank_results_count",
				Help:    "Number of document ids returned per rank query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		ExpertLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expert_top_n_latency_seconds",
				Help:    "Per-expert top-N lookup latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"expert"},
		),
		ExpertErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expert_errors_total",
				Help: "Failed top-N lookups by expert.",
			},
			[]string{"expert"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rank_cache_hits_total",
				Help: "Total number of rank cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rank_cache_misses_total",
				Help: "Total number of rank cache misses.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocabulary_tokens",
				Help: "Number of distinct tokens in the loaded vocabulary.",
			},
		),
		IndexedDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "expert_indexed_documents",
				Help: "Number of answers held in each expert's similarity index.",
			},
			[]string{"expert"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "build_duration_seconds",
				Help:    "Duration of vocabulary, encoding and expert build stages.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"stage"},
		),
		IndexEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_events_total",
				Help: "Index-built events by direction and status.",
			},
			[]string{"direction", "status"},
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
		m.RankQueriesTotal,
		m.RankLatency,
		m.RankResultsCount,
		m.ExpertLatency,
		m.ExpertErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.VocabularySize,
		m.IndexedDocuments,
		m.BuildDuration,
		m.IndexEventsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveExpert records one top-N lookup. A nil receiver is a no-op so
// callers can run without metrics.
func (m *Metrics) ObserveExpert(name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ExpertLatency.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.ExpertErrorsTotal.WithLabelValues(name).Inc()
	}
}

// ObserveBuild records the duration of one build stage.
func (m *Metrics) ObserveBuild(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.BuildDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRank records one rank query outcome.
func (m *Metrics) ObserveRank(resultType, cacheStatus string, results int, d time.Duration) {
	if m == nil {
		return
	}
	m.RankQueriesTotal.WithLabelValues(resultType).Inc()
	m.RankLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
	m.RankResultsCount.Observe(float64(results))
}
