package config

import "time"

// Config is the root configuration for the gateway.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Upstream configures the generative API the gateway fronts.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Keys configures operator credentials and access control.
	Keys KeysConfig `yaml:"keys"`

	// Pool configures the credential scheduler.
	Pool PoolConfig `yaml:"pool"`

	// Retry configures the backoff tables.
	Retry RetryConfig `yaml:"retry"`

	// Relay configures streaming relays.
	Relay RelayConfig `yaml:"relay"`

	// Cache configures the response cache.
	Cache CacheConfig `yaml:"cache"`

	// Usage configures usage accounting.
	Usage UsageConfig `yaml:"usage"`

	// Schedule configures the background jobs.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading the request head and body.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. Zero disables it,
	// which long-lived SSE responses require.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig contains upstream API settings.
type UpstreamConfig struct {
	// BaseURL is the scheme://host of the upstream API.
	BaseURL string `yaml:"base_url"`

	// APIVersion is the native API version segment ("v1beta").
	APIVersion string `yaml:"api_version"`

	// Timeout bounds one upstream round trip, headers included. It
	// must leave room for long generations.
	Timeout time.Duration `yaml:"timeout"`

	// ProbePath is the endpoint used for key verification probes.
	ProbePath string `yaml:"probe_path"`
}

// KeysConfig contains credential settings. OperatorSpec and
// OperatorSecret are normally supplied via environment, not the file.
type KeysConfig struct {
	// OperatorSpec is the operator key pool in "key:weight,..." form.
	OperatorSpec string `yaml:"operator_spec"`

	// OperatorFile optionally points at a file holding the spec; when
	// set it wins over OperatorSpec and can be watched for changes.
	OperatorFile string `yaml:"operator_file"`

	// Watch reloads the operator pool when OperatorFile changes.
	Watch bool `yaml:"watch"`

	// OperatorSecret is the access token clients present to use the
	// operator pool.
	OperatorSecret string `yaml:"operator_secret"`
}

// PoolConfig contains credential scheduler settings.
type PoolConfig struct {
	// MinWeight is the floor a key's dynamic weight decays toward.
	MinWeight float64 `yaml:"min_weight"`

	// RecoveryRate is the per-tick weight restoration fraction.
	RecoveryRate float64 `yaml:"recovery_rate"`

	// RecoveryInterval is the spacing between recovery ticks.
	RecoveryInterval time.Duration `yaml:"recovery_interval"`

	// MaxRecoveryAttempts caps automatic recovery per key.
	MaxRecoveryAttempts int `yaml:"max_recovery_attempts"`

	// UnavailableWindow is how long a 503 sidelines a key.
	UnavailableWindow time.Duration `yaml:"unavailable_window"`

	// ProbeChance is the per-request probability of probing unhealthy
	// keys inline (0 disables; the cron probe still runs).
	ProbeChance float64 `yaml:"probe_chance"`
}

// RetryConfig contains the two backoff tables.
type RetryConfig struct {
	// Generic applies to 500, 502, 504 and network errors.
	Generic BackoffConfig `yaml:"generic"`

	// Unavailable applies to 503 and 429, which deserve more patience.
	Unavailable BackoffConfig `yaml:"unavailable"`
}

// BackoffConfig is one exponential backoff table.
type BackoffConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	JitterFactor      float64       `yaml:"jitter_factor"`
}

// RelayConfig contains streaming relay settings.
type RelayConfig struct {
	// StreamTimeout is the age past which the sweeper reclaims a
	// stream.
	StreamTimeout time.Duration `yaml:"stream_timeout"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	// Enabled turns the response cache on.
	Enabled bool `yaml:"enabled"`

	// TTL is the entry lifetime.
	TTL time.Duration `yaml:"ttl"`
}

// UsageConfig contains usage accounting settings.
type UsageConfig struct {
	// Enabled turns usage accounting on.
	Enabled bool `yaml:"enabled"`

	// DatabasePath is the SQLite file for the event store. Empty
	// keeps accounting in memory only.
	DatabasePath string `yaml:"database_path"`

	// Buffer is the in-flight event channel capacity.
	Buffer int `yaml:"buffer"`

	// RetentionDays is how long stored events are kept.
	RetentionDays int `yaml:"retention_days"`
}

// ScheduleConfig holds the cron expressions for background jobs.
type ScheduleConfig struct {
	// ProbeSpec schedules unhealthy-key probes.
	ProbeSpec string `yaml:"probe_spec"`

	// SweepSpec schedules expired-stream sweeps.
	SweepSpec string `yaml:"sweep_spec"`

	// PurgeSpec schedules cache purges.
	PurgeSpec string `yaml:"purge_spec"`

	// PruneSpec schedules usage event pruning.
	PruneSpec string `yaml:"prune_spec"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns metric recording and the scrape endpoint on.
	Enabled bool `yaml:"enabled"`

	// Path is the scrape endpoint path.
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`
}
