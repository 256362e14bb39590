// Package metrics provides Prometheus metrics for imports, reconciliation and the pick ledger
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Import metrics
	LineItemsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picktrack_line_items_imported_total",
			Help: "Line items created by BOM imports",
		},
		[]string{"scope"},
	)

	ImportWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picktrack_import_warnings_total",
			Help: "Warnings raised while parsing and flattening BOMs",
		},
	)

	// Reconciliation metrics
	ReconcileActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picktrack_reconcile_actions_total",
			Help: "Reconciliation actions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	PicksMigrated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picktrack_picks_migrated_total",
			Help: "Picks reattributed to another line item",
		},
		[]string{"operation"},
	)

	PicksDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picktrack_picks_deleted_total",
			Help: "Pick rows deleted, by reason",
		},
		[]string{"reason"},
	)

	InvariantViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picktrack_invariant_violations_total",
			Help: "Invariant violations found by audits",
		},
		[]string{"kind"},
	)

	OrderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picktrack_order_duration_seconds",
			Help:    "Time spent processing one order",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picktrack_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"route", "status"},
	)
)

// RecordReconcile counts one reconciliation action
func RecordReconcile(operation, outcome string) {
	ReconcileActions.WithLabelValues(operation, outcome).Inc()
}

// ObserveOrder records how long an operation took for one order
func ObserveOrder(operation string, start time.Time) {
	OrderDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
