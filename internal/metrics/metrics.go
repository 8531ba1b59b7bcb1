// Package metrics provides Prometheus instrumentation for the platform.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SamplesIngested counts engine ingest outcomes.
	SamplesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crowd_ews",
			Name:      "samples_ingested_total",
			Help:      "Raw samples processed by the engine, by outcome (ok, degraded, rejected).",
		},
		[]string{"outcome"},
	)

	// ExtendedRisk tracks the latest extended risk score.
	ExtendedRisk = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crowd_ews",
			Name:      "extended_risk",
			Help:      "Extended risk score of the most recent snapshot (0..1).",
		},
	)

	// AlertLevel tracks the current alert ladder position (0=green .. 3=red).
	AlertLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crowd_ews",
			Name:      "alert_level",
			Help:      "Current alert level as ladder position (0=green, 1=yellow, 2=orange, 3=red).",
		},
	)

	// AlertTransitions counts level changes by direction.
	AlertTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crowd_ews",
			Name:      "alert_transitions_total",
			Help:      "Alert level transitions by previous and new level.",
		},
		[]string{"from", "to"},
	)

	// WebhookDeliveries counts notifier webhook attempts by result.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crowd_ews",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts by result (ok, error).",
		},
		[]string{"result"},
	)

	// StreamClients tracks connected WebSocket dashboard clients.
	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crowd_ews",
			Name:      "stream_clients",
			Help:      "Currently connected snapshot stream clients.",
		},
	)
)

// MustRegister installs all collectors on the default registry. Call once
// per process.
func MustRegister() {
	prometheus.MustRegister(
		SamplesIngested,
		ExtendedRisk,
		AlertLevel,
		AlertTransitions,
		WebhookDeliveries,
		StreamClients,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
