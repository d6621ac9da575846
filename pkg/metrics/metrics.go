// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookupsTotal tracks identity cache lookups by tier and outcome
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of identity cache lookups by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	// InteractionsRecordedTotal tracks interactions written to the ledger
	InteractionsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "ledger",
			Name:      "interactions_total",
			Help:      "Total number of interactions recorded by type and whether the row was new",
		},
		[]string{"type", "inserted"},
	)

	// ReconcileRunsTotal tracks completed reconciliation passes
	ReconcileRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconciler",
			Name:      "runs_total",
			Help:      "Total number of completed reconciliation passes",
		},
	)

	// ReconcileUpdatedTotal tracks records whose merchant UUID was repaired
	ReconcileUpdatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconciler",
			Name:      "updated_total",
			Help:      "Total number of records whose merchant UUID was repaired",
		},
	)

	// ReconcileGapsTotal tracks unresolvable merchant UUID gaps
	ReconcileGapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconciler",
			Name:      "gaps_total",
			Help:      "Total number of unresolvable merchant UUID gaps found",
		},
	)

	// StepDuration tracks workflow step durations in seconds
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "workflow",
			Name:      "step_duration_seconds",
			Help:      "Duration of workflow steps in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"step", "status"},
	)

	// EventsProcessedTotal tracks inbound communication events by type and status
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "processor",
			Name:      "events_total",
			Help:      "Total number of inbound communication events by type and status",
		},
		[]string{"type", "status"},
	)
)
