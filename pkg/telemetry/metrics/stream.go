package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics tracks SSE relay lifecycle.
//
// Metrics:
//   - polaris_streams_active: currently open relays
//   - polaris_streams_total: finished relays by outcome
//   - polaris_stream_bytes_total: bytes relayed to clients
type StreamMetrics struct {
	enabled bool

	active     prometheus.Gauge
	finished   *prometheus.CounterVec
	bytesTotal prometheus.Counter
}

// NewStreamMetrics creates and registers the stream metric group.
func NewStreamMetrics(cfg Config, registry *prometheus.Registry) *StreamMetrics {
	sm := &StreamMetrics{
		enabled: cfg.Enabled,

		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "streams_active",
				Help:      "Currently open streaming relays",
			},
		),

		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "streams_total",
				Help:      "Finished streaming relays by outcome",
			},
			[]string{"outcome"},
		),

		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "stream_bytes_total",
				Help:      "Bytes relayed to streaming clients",
			},
		),
	}

	registry.MustRegister(sm.active, sm.finished, sm.bytesTotal)
	return sm
}

// SetActive refreshes the open-relay gauge from the registry count.
func (sm *StreamMetrics) SetActive(n int) {
	if !sm.enabled {
		return
	}
	sm.active.Set(float64(n))
}

// StreamFinished marks a relay as closed with its outcome and byte count.
func (sm *StreamMetrics) StreamFinished(outcome string, bytes int64) {
	if !sm.enabled {
		return
	}
	sm.finished.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		sm.bytesTotal.Add(float64(bytes))
	}
}
