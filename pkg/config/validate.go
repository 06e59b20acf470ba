package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every problem found in one pass.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns all problems at once.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	add := func(field, message string) {
		errs = append(errs, &ValidationError{Field: field, Message: message})
	}

	if cfg.Server.ListenAddress == "" {
		add("server.listen_address", "must not be empty")
	}
	if cfg.Server.ReadTimeout < 0 {
		add("server.read_timeout", "must not be negative")
	}

	if cfg.Upstream.BaseURL == "" {
		add("upstream.base_url", "must not be empty")
	} else if u, err := url.Parse(cfg.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("upstream.base_url", "must be an absolute URL")
	}
	if cfg.Upstream.APIVersion == "" {
		add("upstream.api_version", "must not be empty")
	}

	if cfg.Pool.MinWeight <= 0 || cfg.Pool.MinWeight >= 1 {
		add("pool.min_weight", "must be in (0, 1)")
	}
	if cfg.Pool.RecoveryRate <= 0 || cfg.Pool.RecoveryRate > 1 {
		add("pool.recovery_rate", "must be in (0, 1]")
	}
	if cfg.Pool.RecoveryInterval <= 0 {
		add("pool.recovery_interval", "must be positive")
	}
	if cfg.Pool.MaxRecoveryAttempts < 0 {
		add("pool.max_recovery_attempts", "must not be negative")
	}
	if cfg.Pool.UnavailableWindow <= 0 {
		add("pool.unavailable_window", "must be positive")
	}
	if cfg.Pool.ProbeChance < 0 || cfg.Pool.ProbeChance > 1 {
		add("pool.probe_chance", "must be in [0, 1]")
	}

	validateBackoff(&errs, "retry.generic", cfg.Retry.Generic)
	validateBackoff(&errs, "retry.unavailable", cfg.Retry.Unavailable)

	if cfg.Relay.StreamTimeout <= 0 {
		add("relay.stream_timeout", "must be positive")
	}

	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		add("cache.ttl", "must be positive when the cache is enabled")
	}

	if cfg.Usage.Enabled && cfg.Usage.Buffer <= 0 {
		add("usage.buffer", "must be positive when usage accounting is enabled")
	}
	if cfg.Usage.RetentionDays < 0 {
		add("usage.retention_days", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateBackoff(errs *ValidationErrors, field string, b BackoffConfig) {
	if b.MaxAttempts < 1 {
		*errs = append(*errs, &ValidationError{Field: field + ".max_attempts", Message: "must be at least 1"})
	}
	if b.BaseDelay <= 0 {
		*errs = append(*errs, &ValidationError{Field: field + ".base_delay", Message: "must be positive"})
	}
	if b.MaxDelay < b.BaseDelay {
		*errs = append(*errs, &ValidationError{Field: field + ".max_delay", Message: "must be at least base_delay"})
	}
	if b.BackoffMultiplier < 1 {
		*errs = append(*errs, &ValidationError{Field: field + ".backoff_multiplier", Message: "must be at least 1"})
	}
	if b.JitterFactor < 0 || b.JitterFactor >= 1 {
		*errs = append(*errs, &ValidationError{Field: field + ".jitter_factor", Message: "must be in [0, 1)"})
	}
}
