// Package metrics defines the Prometheus instruments for the debate
// server. Counters and histograms register on the default registerer at
// init; the gauge exports are wired once at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/protocol"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rostra_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rostra_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rostra_ws_connections",
			Help: "Live websocket connections",
		},
	)

	WSSlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rostra_ws_slow_consumers_total",
			Help: "Connections closed for falling behind the send buffer",
		},
	)

	// Session metrics
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rostra_sessions_started_total",
			Help: "Total debate sessions started",
		},
	)

	PhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rostra_phase_transitions_total",
			Help: "Committed phase transitions, by entered phase",
		},
		[]string{"phase"},
	)

	RejectionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rostra_rejections_total",
			Help: "Client events rejected, by error code",
		},
		[]string{"code"},
	)

	// Fan-out metrics
	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rostra_events_broadcast_total",
			Help: "Server events fanned out to rooms, by event type",
		},
		[]string{"type"},
	)

	AudioBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rostra_audio_relay_bytes_total",
			Help: "Audio frame bytes relayed between participants",
		},
	)
)

// ObserveBus taps the event stream and keeps the fan-out counters
// moving. It returns the subscription id.
func ObserveBus(bus *event.Bus) string {
	return bus.SubscribeAll(func(e event.Event) {
		EventsBroadcast.WithLabelValues(e.Type()).Inc()
		if e.Frame != nil {
			AudioBytes.Add(float64(len(e.Frame)))
			return
		}
		if pc, ok := e.Payload.(*protocol.PhaseChange); ok {
			PhaseTransitions.WithLabelValues(string(pc.Phase)).Inc()
		}
	})
}

// TrackSessions exports the resident-session count. Call once at startup.
func TrackSessions(resident func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rostra_resident_sessions",
		Help: "Debate sessions held live in memory",
	}, func() float64 { return float64(resident()) })
}

// TrackRooms exports the live room count. Call once at startup.
func TrackRooms(rooms func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rostra_active_rooms",
		Help: "Rooms with at least one subscriber",
	}, func() float64 { return float64(rooms()) })
}
