// Package metrics registers the Prometheus collectors for the ingestion
// pipeline and the retrieval endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector owned by the service. A single instance is
// created at startup against an injected registry so tests can use a fresh
// one without polluting the default.
type Metrics struct {
	// JobStagesTotal counts completed stage executions, partitioned by stage
	// and outcome: "ok", "retry", or "failed".
	JobStagesTotal *prometheus.CounterVec

	// StageDurationSeconds records the wall-clock duration of each stage
	// execution.
	StageDurationSeconds *prometheus.HistogramVec

	// JobsClaimedTotal counts successful job claims by the worker pool.
	JobsClaimedTotal prometheus.Counter

	// EmbeddingRequestsTotal counts embedding API calls by outcome.
	EmbeddingRequestsTotal *prometheus.CounterVec

	// UploadsTotal counts upload submissions by outcome: "created",
	// "duplicate", or "rejected".
	UploadsTotal *prometheus.CounterVec

	// RetrievalRequestsTotal counts retrieval calls by outcome: "ok" (some
	// chunks), "empty", or "error" (swallowed into an empty result).
	RetrievalRequestsTotal *prometheus.CounterVec

	// RetrievalDurationSeconds records retrieval latency.
	RetrievalDurationSeconds prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobStagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navigator",
			Subsystem: "pipeline",
			Name:      "job_stages_total",
			Help:      "Completed stage executions, partitioned by stage and outcome.",
		}, []string{"stage", "outcome"}),

		StageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navigator",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage execution.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),

		JobsClaimedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "navigator",
			Subsystem: "pipeline",
			Name:      "jobs_claimed_total",
			Help:      "Jobs successfully claimed by the worker pool.",
		}),

		EmbeddingRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navigator",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding API batch calls, partitioned by outcome.",
		}, []string{"outcome"}),

		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navigator",
			Subsystem: "upload",
			Name:      "requests_total",
			Help:      "Upload submissions, partitioned by outcome.",
		}, []string{"outcome"}),

		RetrievalRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navigator",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Retrieval requests, partitioned by outcome.",
		}, []string{"outcome"}),

		RetrievalDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "navigator",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Latency of retrieval requests.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}
