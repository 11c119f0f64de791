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

	EmbeddingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_lookups_total",
			Help: "Embedding cache lookups by outcome (hit/miss)",
		},
		[]string{"outcome"},
	)

	EmbeddingBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "embedding_batch_duration_seconds",
			Help: "Duration of embedding provider batch calls in seconds",
		},
	)

	ClusteringRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clustering_runs_total",
			Help: "Clustering passes by selected strategy",
		},
		[]string{"strategy"},
	)

	ProfileClusterCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "profile_cluster_count",
			Help:    "Number of clusters in freshly built taste profiles",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	CandidatesFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidates_filtered_total",
			Help: "Candidates removed during filtering by reason",
		},
		[]string{"reason"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of recommendation pipeline stages in seconds",
		},
		[]string{"stage"},
	)
)
