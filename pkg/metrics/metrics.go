// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// UpstreamStreamDuration tracks upstream streaming response duration.
	UpstreamStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_stream_duration_seconds",
			Help:    "Upstream streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120, 180, 300},
		},
		[]string{"tier", "status"},
	)

	// UpstreamBytesStreamed tracks bytes forwarded from the upstream.
	UpstreamBytesStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_bytes_streamed_total",
			Help: "Total bytes streamed from the upstream",
		},
		[]string{"tier"},
	)

	// UpstreamErrors tracks upstream transport failures by kind.
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Upstream transport failures",
		},
		[]string{"tier", "kind"},
	)

	// StreamConnectionsActive tracks active streaming pass-through connections.
	StreamConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_connections_active",
			Help: "Number of active streaming connections",
		},
	)

	// EventsDecoded tracks NDJSON events decoded by the client, by type.
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_decoded_total",
			Help: "NDJSON events decoded from chat streams",
		},
		[]string{"type"},
	)

	// MalformedLines tracks NDJSON lines that failed to parse.
	MalformedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_malformed_lines_total",
			Help: "NDJSON lines skipped because they failed to parse",
		},
	)

	// StoreErrors tracks swallowed conversation store failures.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_store_errors_total",
			Help: "Conversation store failures by operation",
		},
		[]string{"op"},
	)

	// ConversationsPruned tracks invalid entries dropped on load.
	ConversationsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_pruned_total",
			Help: "Structurally invalid conversations pruned on load",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordUpstreamStream records metrics for a completed upstream stream.
func RecordUpstreamStream(tier, status string, duration float64, bytes int64) {
	UpstreamStreamDuration.WithLabelValues(tier, status).Observe(duration)
	UpstreamBytesStreamed.WithLabelValues(tier).Add(float64(bytes))
}

// IncrementStreamConnections increments the active stream connection count.
func IncrementStreamConnections() {
	StreamConnectionsActive.Inc()
}

// DecrementStreamConnections decrements the active stream connection count.
func DecrementStreamConnections() {
	StreamConnectionsActive.Dec()
}
