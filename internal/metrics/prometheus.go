package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts push-channel events applied to the store.
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_events_processed_total",
			Help: "Total number of push events applied, by event type",
		},
		[]string{"event"},
	)

	// EventsDropped counts malformed or undecodable push events.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_events_dropped_total",
			Help: "Total number of push events dropped as malformed",
		},
		[]string{"event"},
	)

	// ReconnectAttempts counts scheduled reconnect attempts.
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "console_reconnect_attempts_total",
			Help: "Total number of reconnect attempts",
		},
	)

	// ConnectionState reports the channel state (0 disconnected,
	// 1 connecting, 2 connected, 3 given up).
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_connection_state",
			Help: "Current push channel state",
		},
	)

	// CommandsIssued counts control commands by action and outcome.
	CommandsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_commands_issued_total",
			Help: "Total number of control commands dispatched",
		},
		[]string{"action", "outcome"},
	)

	// PumpsTracked reports the number of pumps in the fleet store.
	PumpsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_pumps_tracked",
			Help: "Number of pump snapshots currently held",
		},
	)

	// ActiveAlerts reports the active alert rollup.
	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_active_alerts",
			Help: "Number of active alerts across the fleet",
		},
	)
)
