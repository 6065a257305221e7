// Package metrics defines the Prometheus instrumentation for the statement
// engine. Counters are registered on the default registry and exposed via
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatementsGenerated counts built statements by trigger
	// (api, bulk, schedule).
	StatementsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owner_statements",
		Name:      "statements_generated_total",
		Help:      "Statements generated, by trigger.",
	}, []string{"trigger"})

	// StatementsSkipped counts zero-activity or duplicate skips by trigger.
	StatementsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owner_statements",
		Name:      "statements_skipped_total",
		Help:      "Statement generations skipped (no activity or duplicate), by trigger.",
	}, []string{"trigger"})

	// GenerationErrors counts per-target generation failures by trigger.
	GenerationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owner_statements",
		Name:      "generation_errors_total",
		Help:      "Per-target generation failures, by trigger.",
	}, []string{"trigger"})

	// JobDuration observes bulk job wall time.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "owner_statements",
		Name:      "job_duration_seconds",
		Help:      "Duration of background fan-out jobs.",
		Buckets:   prometheus.DefBuckets,
	})

	// SchedulerRuns counts daily scheduler evaluations by outcome.
	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owner_statements",
		Name:      "scheduler_runs_total",
		Help:      "Tag scheduler evaluations, by outcome.",
	}, []string{"outcome"})
)
