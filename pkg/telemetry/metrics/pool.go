package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics tracks the operator credential pool.
//
// Metrics:
//   - polaris_pool_keys: key count by health state
//   - polaris_pool_average_weight: mean dynamic weight across keys
//   - polaris_pool_key_errors_total: upstream errors fed back by status
//   - polaris_pool_resets_total: global weight resets
type PoolMetrics struct {
	enabled bool

	keys          *prometheus.GaugeVec
	averageWeight prometheus.Gauge
	keyErrors     *prometheus.CounterVec
	resets        prometheus.Counter
}

// NewPoolMetrics creates and registers the pool metric group.
func NewPoolMetrics(cfg Config, registry *prometheus.Registry) *PoolMetrics {
	pm := &PoolMetrics{
		enabled: cfg.Enabled,

		keys: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "pool_keys",
				Help:      "Number of pool keys by health state",
			},
			[]string{"state"},
		),

		averageWeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "pool_average_weight",
				Help:      "Mean dynamic weight across pool keys",
			},
		),

		keyErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "pool_key_errors_total",
				Help:      "Upstream errors attributed to pool keys by status code",
			},
			[]string{"status"},
		),

		resets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "pool_resets_total",
				Help:      "Global pool weight resets",
			},
		),
	}

	registry.MustRegister(pm.keys, pm.averageWeight, pm.keyErrors, pm.resets)
	return pm
}

// UpdateSnapshot refreshes the gauges from a pool snapshot.
func (pm *PoolMetrics) UpdateSnapshot(healthy, unhealthy int, averageWeight float64) {
	if !pm.enabled {
		return
	}
	pm.keys.WithLabelValues("healthy").Set(float64(healthy))
	pm.keys.WithLabelValues("unhealthy").Set(float64(unhealthy))
	pm.averageWeight.Set(averageWeight)
}

// RecordKeyError counts one upstream error fed back into the pool.
func (pm *PoolMetrics) RecordKeyError(status int) {
	if !pm.enabled {
		return
	}
	pm.keyErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordReset counts one global weight reset.
func (pm *PoolMetrics) RecordReset() {
	if !pm.enabled {
		return
	}
	pm.resets.Inc()
}
