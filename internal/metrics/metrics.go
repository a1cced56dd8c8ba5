// Package metrics exposes the monitor's counters through Prometheus. The
// hot paths update lock-free atomics; Prometheus reads them lazily through
// GaugeFunc collectors on a private registry.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame pipeline counters
	FramesReceived atomic.Uint64
	FramesDecoded  atomic.Uint64
	FramesDropped  atomic.Uint64

	// Message dispatch counters
	MessagesDispatched atomic.Uint64
	HandlerErrors      atomic.Uint64
	QueueDepth         atomic.Uint64

	// Connection counters
	Reconnects         atomic.Uint64
	ConnectionFailures atomic.Uint64
	HeartbeatLatencyMs atomic.Uint64

	// Processing counters
	PayloadsProcessed atomic.Uint64
	TracksProcessed   atomic.Uint64
	CamerasSkipped    atomic.Uint64

	// Resilience score snapshot (0-100)
	ResilienceScore atomic.Uint64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{"monitor_frames_received_total", "Total frames received over the WebSocket", m.FramesReceived.Load},
		{"monitor_frames_decoded_total", "Total binary frames decoded successfully", m.FramesDecoded.Load},
		{"monitor_frames_dropped_total", "Total frames dropped or failed to decode", m.FramesDropped.Load},
		{"monitor_messages_dispatched_total", "Total messages fanned out to handlers", m.MessagesDispatched.Load},
		{"monitor_handler_errors_total", "Total message handler panics recovered", m.HandlerErrors.Load},
		{"monitor_outbound_queue_depth", "Messages queued while disconnected", m.QueueDepth.Load},
		{"monitor_reconnects_total", "Total WebSocket reconnect attempts", m.Reconnects.Load},
		{"monitor_connection_failures_total", "Total WebSocket connection failures", m.ConnectionFailures.Load},
		{"monitor_heartbeat_latency_ms", "Last measured heartbeat round-trip in milliseconds", m.HeartbeatLatencyMs.Load},
		{"monitor_payloads_processed_total", "Total tracking payloads processed", m.PayloadsProcessed.Load},
		{"monitor_tracks_processed_total", "Total person tracks processed", m.TracksProcessed.Load},
		{"monitor_cameras_skipped_total", "Total cameras skipped for missing display sizes", m.CamerasSkipped.Load},
		{"monitor_resilience_score", "Overall resilience score (0-100)", m.ResilienceScore.Load},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// UpdateHeartbeatLatency records the last heartbeat round-trip time.
func (m *Metrics) UpdateHeartbeatLatency(rtt time.Duration) {
	m.HeartbeatLatencyMs.Store(uint64(rtt.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
