// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// EnrichmentRecords counts merged records by outcome (none, legal_only, places_only, merged).
	EnrichmentRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_records_total",
			Help: "Enriched records by merge outcome",
		},
		[]string{"outcome"},
	)

	EnrichmentSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_source_failures_total",
			Help: "Failed lookups per enrichment source",
		},
		[]string{"source"},
	)

	EnrichmentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enrichment_cache_hits_total",
			Help: "Legal registry lookups served from cache",
		},
	)
)
