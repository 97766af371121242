package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workforge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workforge_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workforge_ws_connections_active",
			Help: "Currently open websocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workforge_online_users",
			Help: "Distinct users with at least one registered connection",
		},
	)

	CallRoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workforge_call_rooms_active",
			Help: "Call rooms with at least one joined member",
		},
	)

	PresenceBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workforge_presence_broadcasts_total",
			Help: "Total presence set broadcasts",
		},
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workforge_signals_relayed_total",
			Help: "Total signaling messages forwarded",
		},
		[]string{"kind"}, // "offer", "answer", "ice-candidate"
	)

	SignalsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workforge_signals_dropped_total",
			Help: "Signaling messages dropped because the target was offline",
		},
		[]string{"kind"},
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workforge_call_chat_messages_total",
			Help: "Total in-call chat messages relayed",
		},
	)

	DMsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workforge_dms_delivered_total",
			Help: "Direct messages pushed to at least one recipient connection",
		},
	)

	DMsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workforge_dms_skipped_total",
			Help: "Direct messages whose recipient had no open connection",
		},
	)

	// Infrastructure metrics
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workforge_persistence_failures_total",
			Help: "Durable-store writes that failed and were not retried",
		},
		[]string{"op"}, // "append_attendance", "close_attendance", "append_chat"
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workforge_ws_messages_dropped_total",
			Help: "Outbound websocket messages dropped on a full send buffer",
		},
	)
)
