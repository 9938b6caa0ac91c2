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

	AppraisalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appraisal_decisions_total",
			Help: "Final credit decisions by state",
		},
		[]string{"decision", "rule_mode"},
	)

	AppraisalBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appraisal_batch_size",
			Help:    "Number of applications per appraisal batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"rule_mode"},
	)

	CollateralStageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collateral_stage_outcomes_total",
			Help: "Verification stage outcomes by stage and decision",
		},
		[]string{"stage", "decision"},
	)
)
