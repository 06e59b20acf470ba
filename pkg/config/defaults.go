package config

import "time"

// Default values applied to zero fields after YAML parsing.
const (
	DefaultListenAddress   = ":8045"
	DefaultUpstreamBaseURL = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion      = "v1beta"
	DefaultProbePath       = "/v1beta/models"
)

// ApplyDefaults fills zero-valued fields with defaults. Explicit values
// from the file or environment are never overwritten.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	// WriteTimeout stays zero: SSE responses outlive any sane value.
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// Upstream
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.APIVersion == "" {
		cfg.Upstream.APIVersion = DefaultAPIVersion
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 5 * time.Minute
	}
	if cfg.Upstream.ProbePath == "" {
		cfg.Upstream.ProbePath = DefaultProbePath
	}

	// Pool
	if cfg.Pool.MinWeight == 0 {
		cfg.Pool.MinWeight = 0.1
	}
	if cfg.Pool.RecoveryRate == 0 {
		cfg.Pool.RecoveryRate = 0.1
	}
	if cfg.Pool.RecoveryInterval == 0 {
		cfg.Pool.RecoveryInterval = time.Minute
	}
	if cfg.Pool.MaxRecoveryAttempts == 0 {
		cfg.Pool.MaxRecoveryAttempts = 10
	}
	if cfg.Pool.UnavailableWindow == 0 {
		cfg.Pool.UnavailableWindow = 30 * time.Second
	}

	// Retry
	applyBackoffDefaults(&cfg.Retry.Generic, 3, 500*time.Millisecond, 8*time.Second, 2.0, 0.2)
	applyBackoffDefaults(&cfg.Retry.Unavailable, 5, time.Second, 30*time.Second, 2.0, 0.3)

	// Relay
	if cfg.Relay.StreamTimeout == 0 {
		cfg.Relay.StreamTimeout = 10 * time.Minute
	}

	// Cache
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}

	// Usage
	if cfg.Usage.Buffer == 0 {
		cfg.Usage.Buffer = 1000
	}
	if cfg.Usage.RetentionDays == 0 {
		cfg.Usage.RetentionDays = 30
	}

	// Schedule
	if cfg.Schedule.ProbeSpec == "" {
		cfg.Schedule.ProbeSpec = "@every 5m"
	}
	if cfg.Schedule.SweepSpec == "" {
		cfg.Schedule.SweepSpec = "@every 1m"
	}
	if cfg.Schedule.PurgeSpec == "" {
		cfg.Schedule.PurgeSpec = "@every 10m"
	}
	if cfg.Schedule.PruneSpec == "" {
		cfg.Schedule.PruneSpec = "@daily"
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "polaris"
	}
}

func applyBackoffDefaults(b *BackoffConfig, attempts int, base, max time.Duration, mult, jitter float64) {
	if b.MaxAttempts == 0 {
		b.MaxAttempts = attempts
	}
	if b.BaseDelay == 0 {
		b.BaseDelay = base
	}
	if b.MaxDelay == 0 {
		b.MaxDelay = max
	}
	if b.BackoffMultiplier == 0 {
		b.BackoffMultiplier = mult
	}
	if b.JitterFactor == 0 {
		b.JitterFactor = jitter
	}
}
