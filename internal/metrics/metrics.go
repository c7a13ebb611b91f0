// Package metrics declares the Prometheus instruments for the
// signaling service.
//
// Naming convention: namespace_subsystem_name.
//   - namespace: theatre (application-level grouping)
//   - subsystem: websocket, room (feature-level grouping)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks currently open signaling sockets.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "theatre",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks currently registered rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "theatre",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks member count per room, keyed by canonical code.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "theatre",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room_code"})

	// EnvelopesTotal tracks envelopes processed, by kind and direction.
	EnvelopesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "theatre",
		Subsystem: "websocket",
		Name:      "envelopes_total",
		Help:      "Total signaling envelopes processed",
	}, []string{"kind", "direction"})

	// HandshakeFailuresTotal tracks failed connect handshakes, by reason.
	HandshakeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "theatre",
		Subsystem: "websocket",
		Name:      "handshake_failures_total",
		Help:      "Total connect handshakes that failed before a response was sent",
	}, []string{"reason"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
