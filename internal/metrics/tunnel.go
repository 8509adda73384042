package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HandshakesTotal tracks attested-tunnel handshake outcomes.
	HandshakesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "total",
			Help:      "Total number of tunnel handshakes by role and result.",
		},
		[]string{"role", "result"}, // role: client|server, result: encrypted|rejected|<kind>
	)

	// RequestsTotal tracks virtual HTTP requests multiplexed through the tunnel.
	RequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of virtual HTTP requests handled.",
		},
		[]string{"status"}, // ok|timeout|disconnected|handler_error
	)

	// RequestDuration tracks end-to-end virtual HTTP request latency.
	RequestDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration from fetch() call to resolved http_response.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// WSConnectionsActive tracks live virtual WebSocket connections.
	WSConnectionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections_active",
			Help:      "Number of virtual WebSocket connections currently open.",
		},
	)

	// WSEventsTotal tracks lifecycle events emitted to virtual sockets.
	WSEventsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "events_total",
			Help:      "Total number of ws_event frames emitted.",
		},
		[]string{"event"}, // open|close|error
	)

	// ControlSocketsActive tracks live control-channel (transport) connections.
	ControlSocketsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "sockets_active",
			Help:      "Number of control-channel WebSocket connections currently open.",
		},
	)

	// HeartbeatEvictions tracks dead control sockets terminated by the liveness sweep.
	HeartbeatEvictions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "heartbeat_evictions_total",
			Help:      "Total number of control sockets terminated for missed heartbeats.",
		},
	)
)
