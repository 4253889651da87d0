package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synclist_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synclist_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method"},
	)

	// Realtime metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "synclist_ws_sessions",
			Help: "Currently connected WebSocket sessions",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "synclist_rooms",
			Help: "Lists with at least one connected session",
		},
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synclist_actions_total",
			Help: "Inbound actions by type and outcome",
		},
		[]string{"type", "result"}, // result: ok, noop, protocol_error, server_error
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synclist_action_duration_seconds",
			Help:    "Time to persist and fan out one action",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"type"},
	)

	BroadcastMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synclist_broadcast_messages_total",
			Help: "Messages delivered to sessions by room broadcasts",
		},
	)

	DroppedSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synclist_dropped_sessions_total",
			Help: "Sessions closed because their outbound buffer was full",
		},
	)
)
