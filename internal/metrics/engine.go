package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine metrics. Nil until RegisterEngineMetrics runs; recorders skip
// recording while nil so services work without a registry.
var (
	embeddingRequestsTotal  *prometheus.CounterVec
	embeddingRequestSeconds *prometheus.HistogramVec
	checkRunsTotal          *prometheus.CounterVec
	checkMatchesTotal       *prometheus.CounterVec
)

// Check run outcomes.
const (
	CheckStatusMatched    = "matched"
	CheckStatusNoMatch    = "no_match"
	CheckStatusNoTemplate = "no_templates"
	CheckStatusDisabled   = "disabled"
	CheckStatusFailed     = "failed"
)

// RegisterEngineMetrics registers the embedding and check metrics on reg.
// A nil reg is a no-op.
func RegisterEngineMetrics(reg *prometheus.Registry) {
	if reg == nil {
		return
	}

	embeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcheck_embedding_requests_total",
			Help: "Total number of embedding oracle requests.",
		},
		[]string{"provider", "status"},
	)

	embeddingRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vcheck_embedding_request_duration_seconds",
			Help:    "Embedding oracle request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	checkRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcheck_check_runs_total",
			Help: "Total number of video check runs by outcome.",
		},
		[]string{"status"},
	)

	checkMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcheck_check_matches_total",
			Help: "Total number of recorded matches by similarity rank.",
		},
		[]string{"rank"},
	)

	reg.MustRegister(
		embeddingRequestsTotal,
		embeddingRequestSeconds,
		checkRunsTotal,
		checkMatchesTotal,
	)
}

// RecordEmbeddingRequest records one oracle call. status is "ok" or the
// upstream HTTP status, "error" when no response arrived.
func RecordEmbeddingRequest(provider, status string, elapsed time.Duration) {
	if embeddingRequestsTotal != nil {
		embeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	}
	if embeddingRequestSeconds != nil {
		embeddingRequestSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// IncCheckRun counts a finished check run.
func IncCheckRun(status string) {
	if checkRunsTotal != nil {
		checkRunsTotal.WithLabelValues(status).Inc()
	}
}

// IncCheckMatch counts a recorded match.
func IncCheckMatch(rank string) {
	if checkMatchesTotal != nil {
		checkMatchesTotal.WithLabelValues(rank).Inc()
	}
}
