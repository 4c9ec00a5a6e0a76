// Package metrics registers the Prometheus collectors for the container core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Container lifecycle
	ContainerUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sustainablecity_container_updates_total",
			Help: "Container state changes committed, by operation",
		},
		[]string{"operation"},
	)

	CriticalAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sustainablecity_critical_fill_alerts_total",
			Help: "Critical fill level edges detected",
		},
	)

	DamageAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sustainablecity_damage_alerts_total",
			Help: "Transitions into DAMAGED",
		},
	)

	// Incidents
	IncidentReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sustainablecity_incident_reports_total",
			Help: "Incident reports by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// Assignments
	AssignmentReplacements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sustainablecity_assignment_replacements_total",
			Help: "Assignment set replacements by scope",
		},
		[]string{"scope"},
	)

	DroppedAssignmentIDs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sustainablecity_assignment_dropped_ids_total",
			Help: "Requested ids ignored during assignment replacement",
		},
		[]string{"scope"},
	)

	// Search
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sustainablecity_search_duration_seconds",
			Help:    "Container search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"geo"},
	)

	// Delivery
	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sustainablecity_notification_failures_total",
			Help: "Alert emails that could not be delivered",
		},
	)

	OutboxPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sustainablecity_outbox_publish_failures_total",
			Help: "Outbox messages that failed to publish",
		},
	)

	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sustainablecity_sse_clients",
			Help: "Connected server-sent event clients",
		},
	)
)

// ObserveSearch records a search duration.
func ObserveSearch(start time.Time, withCenter bool) {
	label := "false"
	if withCenter {
		label = "true"
	}
	searchDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}
