package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies POLARIS_* environment overrides, which always win over the
// file. A .env file next to the working directory is read first when
// present so local deployments can keep secrets out of the YAML.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	// Missing .env is fine; set variables are never overwritten.
	_ = godotenv.Load()

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// Default returns a validated configuration built entirely from defaults
// and environment overrides, for running without a config file.
func Default() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies POLARIS_SECTION_FIELD environment overrides.
func applyEnvOverrides(cfg *Config) {
	// Server
	if val := os.Getenv("POLARIS_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("POLARIS_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}

	// Upstream
	if val := os.Getenv("POLARIS_UPSTREAM_BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	if val := os.Getenv("POLARIS_UPSTREAM_API_VERSION"); val != "" {
		cfg.Upstream.APIVersion = val
	}
	if val := os.Getenv("POLARIS_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.Timeout = d
		}
	}

	// Keys. POLARIS_KEYS is the weighted operator spec.
	if val := os.Getenv("POLARIS_KEYS"); val != "" {
		cfg.Keys.OperatorSpec = val
	}
	if val := os.Getenv("POLARIS_KEYS_FILE"); val != "" {
		cfg.Keys.OperatorFile = val
	}
	if val := os.Getenv("POLARIS_KEYS_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Keys.Watch = b
		}
	}
	if val := os.Getenv("POLARIS_OPERATOR_SECRET"); val != "" {
		cfg.Keys.OperatorSecret = val
	}

	// Pool
	if val := os.Getenv("POLARIS_POOL_MIN_WEIGHT"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Pool.MinWeight = f
		}
	}
	if val := os.Getenv("POLARIS_POOL_RECOVERY_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Pool.RecoveryInterval = d
		}
	}
	if val := os.Getenv("POLARIS_POOL_PROBE_CHANCE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Pool.ProbeChance = f
		}
	}

	// Cache
	if val := os.Getenv("POLARIS_CACHE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if val := os.Getenv("POLARIS_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = d
		}
	}

	// Usage
	if val := os.Getenv("POLARIS_USAGE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Usage.Enabled = b
		}
	}
	if val := os.Getenv("POLARIS_USAGE_DATABASE_PATH"); val != "" {
		cfg.Usage.DatabasePath = val
	}

	// Telemetry
	if val := os.Getenv("POLARIS_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("POLARIS_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("POLARIS_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}

// ReadOperatorSpec resolves the operator key spec, preferring the keys
// file when configured. File contents may span lines; they are joined
// with commas so one key per line works.
func ReadOperatorSpec(cfg *Config) (string, error) {
	if cfg.Keys.OperatorFile == "" {
		return cfg.Keys.OperatorSpec, nil
	}
	data, err := os.ReadFile(cfg.Keys.OperatorFile)
	if err != nil {
		return "", fmt.Errorf("failed to read keys file %q: %w", cfg.Keys.OperatorFile, err)
	}
	var parts []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, ","), nil
}
