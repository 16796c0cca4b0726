// Package server exposes Prometheus instrumentation for the relay core.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_connections_opened_total",
		Help: "Connections accepted and registered into a room.",
	})
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaychat_connections_active",
		Help: "Currently registered connections across all rooms.",
	})
	roomsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_room_rejections_total",
		Help: "Connections closed because the requested room does not exist.",
	})
	envelopesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_envelopes_routed_total",
		Help: "Well-formed inbound envelopes processed by the hub.",
	})
	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_broadcasts_total",
		Help: "Room-wide fan-out operations performed.",
	})
	kicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_kicks_total",
		Help: "Kick commands that removed at least one user.",
	})
)

// MetricsHandler exposes the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
