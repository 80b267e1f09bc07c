// Package metrics provides Prometheus metrics for the match pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors used by the service.
type Metrics struct {
	// Request metrics
	MatchRequests *prometheus.CounterVec
	MatchDuration prometheus.Histogram

	// Source metrics
	SourceResults  *prometheus.CounterVec
	SourceErrors   *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
	BreakerOpen    *prometheus.GaugeVec

	// Candidate metrics
	CandidatesScored   prometheus.Counter
	CandidatesUnscored *prometheus.CounterVec

	// Embedding metrics
	EmbeddingDuration prometheus.Histogram
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter

	// Workspace metrics
	WorkspacesActive prometheus.Gauge
	WorkspacesSwept  prometheus.Counter
}

// New creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MatchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stylematch_requests_total",
			Help: "Total number of match requests by outcome",
		}, []string{"status"}),
		MatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stylematch_request_duration_seconds",
			Help:    "End-to-end duration of match requests",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2min
		}),

		SourceResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stylematch_source_results_total",
			Help: "Candidates returned per source",
		}, []string{"source"}),
		SourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stylematch_source_errors_total",
			Help: "Failed searches per source",
		}, []string{"source"}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stylematch_source_duration_seconds",
			Help:    "Search duration per source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"source"}),
		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stylematch_source_breaker_open",
			Help: "1 while the source circuit breaker is open",
		}, []string{"source"}),

		CandidatesScored: f.NewCounter(prometheus.CounterOpts{
			Name: "stylematch_candidates_scored_total",
			Help: "Candidates that received a similarity score",
		}),
		CandidatesUnscored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stylematch_candidates_unscored_total",
			Help: "Candidates left unscored, by reason",
		}, []string{"reason"}),

		EmbeddingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stylematch_embedding_duration_seconds",
			Help:    "Duration of single image embeddings",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "stylematch_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "stylematch_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		}),

		WorkspacesActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "stylematch_workspaces_active",
			Help: "Request workspaces currently in use",
		}),
		WorkspacesSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "stylematch_workspaces_swept_total",
			Help: "Request workspaces removed by the sweeper",
		}),
	}
}

// NewNop returns metrics registered on a private registry, for tests and
// tools that do not expose /metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
