package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Stage metrics
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowpilot_stage_runs_total",
			Help: "Total number of stage invocations",
		},
		[]string{"stage", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snowpilot_stage_duration_seconds",
			Help:    "Stage run durations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowpilot_stage_skipped_total",
			Help: "Ticks skipped because the previous invocation was still running",
		},
		[]string{"stage"},
	)

	// Observation store metrics
	ObservationsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowpilot_observations_ingested_total",
			Help: "Observations upserted into the store",
		},
		[]string{"source"},
	)

	ObservationStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snowpilot_observation_store_size",
			Help: "Number of observation rows currently stored",
		},
	)

	// Snapshot metrics
	SnapshotVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snowpilot_snapshot_version",
			Help: "Version of the current published snapshot",
		},
		[]string{"dataset"},
	)

	SnapshotAge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snowpilot_snapshot_age_seconds",
			Help: "Seconds since the current snapshot was produced",
		},
		[]string{"dataset"},
	)

	// Candidate metrics
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowpilot_candidates_total",
			Help: "Candidates produced per evaluation",
		},
		[]string{"category", "disposition"},
	)

	CandidatesWithheldTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snowpilot_candidates_withheld_total",
			Help: "Candidates withheld because a template parameter was unresolvable",
		},
	)

	// Executor metrics
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowpilot_actions_total",
			Help: "Executed actions by category and result",
		},
		[]string{"category", "status"},
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snowpilot_action_duration_seconds",
			Help:    "Per-action execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// Pipeline factory metrics
	PipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowpilot_pipeline_requests_total",
			Help: "Pipeline requests by status transition",
		},
		[]string{"status"},
	)

	// Audit metrics
	AuditEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowpilot_audit_entries_total",
			Help: "Audit log entries appended",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr. It blocks, so callers run it in a
// goroutine; errors are returned when the listener stops.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
