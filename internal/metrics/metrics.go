package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-level collectors for the chat core, exposed at /metrics.
var (
	// Connections is the number of live, bound WebSocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "connections",
		Help:      "Number of live bound connections.",
	})

	// OnlineUsers is the number of distinct users with at least one
	// bound connection.
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "online_users",
		Help:      "Number of distinct online users.",
	})

	// MessagesSent counts messages accepted by the message store.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "messages_sent_total",
		Help:      "Total messages appended.",
	})

	// BroadcastFailures counts per-connection delivery failures during
	// fan-out. Failures are logged and swallowed, never raised.
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "broadcast_failures_total",
		Help:      "Total failed per-connection broadcast deliveries.",
	})
)
