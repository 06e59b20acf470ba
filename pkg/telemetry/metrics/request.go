package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks proxied request outcomes.
//
// Metrics:
//   - polaris_requests_total: request count by dialect, source, status
//   - polaris_request_duration_seconds: end-to-end latency histogram
//   - polaris_request_size_bytes: request/response body sizes
type RequestMetrics struct {
	enabled bool

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sizeBytes       *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers the request metric group.
func NewRequestMetrics(cfg Config, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		enabled: cfg.Enabled,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"dialect", "source", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"dialect"},
		),

		sizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_size_bytes",
				Help:      "Request and response body sizes in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
			},
			[]string{"dialect", "direction"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration, rm.sizeBytes)
	return rm
}

// Record records one completed request.
func (rm *RequestMetrics) Record(dialect, source string, status int, duration time.Duration) {
	if !rm.enabled {
		return
	}
	rm.requestsTotal.WithLabelValues(dialect, source, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(dialect).Observe(duration.Seconds())
}

// RecordSize records a body size for one direction ("request" or
// "response").
func (rm *RequestMetrics) RecordSize(dialect, direction string, sizeBytes int) {
	if !rm.enabled || sizeBytes <= 0 {
		return
	}
	rm.sizeBytes.WithLabelValues(dialect, direction).Observe(float64(sizeBytes))
}
