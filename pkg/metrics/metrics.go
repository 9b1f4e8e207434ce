package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DialogEvents counts conversation events by workflow and outcome (advanced|reprompt|completed|cancelled|failed).
	DialogEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studhelper_dialog_events_total",
			Help: "Total number of dialog events processed",
		},
		[]string{"workflow", "outcome"},
	)

	// DomainOperations counts domain operations and their result (ok|error).
	DomainOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studhelper_domain_operations_total",
			Help: "Total number of domain operations",
		},
		[]string{"operation", "result"},
	)

	// ActiveDialogs tracks users currently inside a multi-step workflow.
	ActiveDialogs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studhelper_active_dialogs",
			Help: "Number of users with an open dialog session",
		},
	)

	// EntityTotals exposes row counts per entity (students|teams|reports|ratings), refreshed by the maintenance job.
	EntityTotals = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "studhelper_entities",
			Help: "Number of stored entities by kind",
		},
		[]string{"entity"},
	)

	// DashboardLogins records dashboard token requests by result (success|failure).
	DashboardLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studhelper_dashboard_logins_total",
			Help: "Total number of dashboard login attempts",
		},
		[]string{"result"},
	)

	// MaintenanceRuns counts background job runs by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studhelper_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studhelper_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveOperation records the result of a named domain operation.
func ObserveOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DomainOperations.WithLabelValues(operation, result).Inc()
}
