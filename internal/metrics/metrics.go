// Package metrics exposes Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesStored counts durably appended messages by author kind:
	// visitor, operator or auto.
	MessagesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_stored_total",
		Help: "Messages durably appended to the store, by author.",
	}, []string{"author"})

	// Connections tracks currently open websocket connections per role.
	Connections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Open websocket connections, by role.",
	}, []string{"role"})

	// Broadcasts counts fanout events by outbound event type.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_ws_broadcasts_total",
		Help: "Events fanned out to all connections, by event type.",
	}, []string{"event"})

	// DroppedEvents counts inbound or outbound events discarded before
	// processing: validation failures, rate limiting, slow consumers.
	DroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_ws_dropped_events_total",
		Help: "Events dropped before delivery, by reason.",
	}, []string{"reason"})
)
