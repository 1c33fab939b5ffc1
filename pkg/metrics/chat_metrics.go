package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat metrics for monitoring message lifecycle and real-time delivery
var (
	// Message lifecycle metrics
	ChatMessagePersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_message_persisted_total",
		Help: "Total number of messages persisted to Cassandra",
	}, []string{"status"})

	// Broadcast fan-out metrics
	ChatBroadcastDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_broadcast_delivered_total",
		Help: "Total number of events delivered to room subscribers",
	}, []string{"event"})

	ChatBroadcastDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_dropped_total",
		Help: "Total number of events dropped because a client send buffer was full",
	})

	ChatRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_rooms_active",
		Help: "Current number of rooms with at least one subscriber",
	})

	// Authorization metrics
	ChatWebSocketConnectionUnauthorizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_websocket_connection_unauthorized_total",
		Help: "Total number of rejected WebSocket connections",
	})

	// Presence metrics
	ChatUsersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_users_online",
		Help: "Current number of users with at least one live connection",
	})
)
