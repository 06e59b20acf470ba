package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Config contains metrics settings.
type Config struct {
	// Enabled turns metric recording on. When false every Record method
	// is a no-op.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets overrides the request latency histogram
	// buckets.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// Collector owns the Prometheus registry and the per-concern metric
// groups.
type Collector struct {
	cfg      Config
	registry *prometheus.Registry

	request *RequestMetrics
	pool    *PoolMetrics
	stream  *StreamMetrics
	cache   *CacheMetrics
}

// NewCollector creates a collector and registers all gateway metrics. A
// nil registry gets a fresh one including the standard Go process
// collectors.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = "polaris"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Generation latencies run from sub-second to tens of seconds.
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		cfg:      cfg,
		registry: registry,
		request:  NewRequestMetrics(cfg, registry),
		pool:     NewPoolMetrics(cfg, registry),
		stream:   NewStreamMetrics(cfg, registry),
		cache:    NewCacheMetrics(cfg, registry),
	}
}

// Enabled reports whether metric recording is on.
func (c *Collector) Enabled() bool { return c.cfg.Enabled }

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Request returns the request metric group.
func (c *Collector) Request() *RequestMetrics { return c.request }

// Pool returns the credential pool metric group.
func (c *Collector) Pool() *PoolMetrics { return c.pool }

// Stream returns the stream metric group.
func (c *Collector) Stream() *StreamMetrics { return c.stream }

// Cache returns the cache metric group.
func (c *Collector) Cache() *CacheMetrics { return c.cache }
