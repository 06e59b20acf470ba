package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics tracks the response cache.
//
// Metrics:
//   - polaris_cache_hits_total / polaris_cache_misses_total
//   - polaris_cache_entries: current entry count
type CacheMetrics struct {
	enabled bool

	hits    prometheus.Counter
	misses  prometheus.Counter
	entries prometheus.Gauge
}

// NewCacheMetrics creates and registers the cache metric group.
func NewCacheMetrics(cfg Config, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		enabled: cfg.Enabled,

		hits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_hits_total",
				Help:      "Response cache hits",
			},
		),

		misses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_misses_total",
				Help:      "Response cache misses",
			},
		),

		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_entries",
				Help:      "Current response cache entry count",
			},
		),
	}

	registry.MustRegister(cm.hits, cm.misses, cm.entries)
	return cm
}

// RecordHit counts a cache hit.
func (cm *CacheMetrics) RecordHit() {
	if !cm.enabled {
		return
	}
	cm.hits.Inc()
}

// RecordMiss counts a cache miss.
func (cm *CacheMetrics) RecordMiss() {
	if !cm.enabled {
		return
	}
	cm.misses.Inc()
}

// UpdateEntries refreshes the entry count gauge.
func (cm *CacheMetrics) UpdateEntries(n int) {
	if !cm.enabled {
		return
	}
	cm.entries.Set(float64(n))
}
