package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/polaris-gw/polaris/pkg/cache"
	"github.com/polaris-gw/polaris/pkg/config"
	"github.com/polaris-gw/polaris/pkg/dispatch"
	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/relay"
	"github.com/polaris-gw/polaris/pkg/retry"
	"github.com/polaris-gw/polaris/pkg/sched"
	"github.com/polaris-gw/polaris/pkg/server"
	"github.com/polaris-gw/polaris/pkg/telemetry/logging"
	"github.com/polaris-gw/polaris/pkg/telemetry/metrics"
	"github.com/polaris-gw/polaris/pkg/usage"
	"github.com/polaris-gw/polaris/pkg/verify"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server fronts the upstream API, scheduling requests across the
operator key pool and serving both wire dialects.

Examples:
  # Start with environment configuration
  polaris run

  # Start with a config file
  polaris run --config /etc/polaris/polaris.yaml

  # Override listen address
  polaris run --listen 0.0.0.0:8045

  # Validate config without starting
  polaris run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Install(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	// Metrics
	collector := metrics.NewCollector(metrics.Config{
		Enabled:   cfg.Telemetry.Metrics.Enabled,
		Namespace: cfg.Telemetry.Metrics.Namespace,
	}, nil)

	// Operator pool
	spec, err := config.ReadOperatorSpec(cfg)
	if err != nil {
		return err
	}
	poolCfg := poolConfigFrom(cfg)
	operatorCfg := poolCfg
	operatorCfg.OnKeyError = collector.Pool().RecordKeyError
	operatorCfg.OnReset = collector.Pool().RecordReset
	operator := keypool.New(spec, operatorCfg)
	if operator.Size() == 0 {
		slog.Warn("operator pool is empty; only client-supplied credentials will work")
	} else {
		slog.Info("operator pool loaded", "keys", operator.Size())
	}

	// Keys file watcher
	if cfg.Keys.Watch && cfg.Keys.OperatorFile != "" {
		watcher, werr := config.NewKeysWatcher(cfg.Keys.OperatorFile, operator.Reload)
		if werr != nil {
			return fmt.Errorf("failed to watch keys file: %w", werr)
		}
		defer watcher.Close()
	}

	// Streaming relay registry
	streams := relay.NewRegistry(cfg.Relay.StreamTimeout)
	streams.OnDone(func(outcome relay.Outcome, credential string, duration time.Duration, bytes int64) {
		collector.Stream().StreamFinished(string(outcome), bytes)
		collector.Stream().SetActive(streams.Active())
	})

	// Retry policy and verifier
	policy := retry.NewPolicy(
		retryParams(cfg.Retry.Generic),
		retryParams(cfg.Retry.Unavailable),
	)
	verifier := verify.New(verify.Config{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		ProbePath:       cfg.Upstream.ProbePath,
		Timeout:         15 * time.Second,
	}, policy)

	// Usage accounting
	var recorder *usage.Recorder
	var sqliteStore *usage.SQLiteStore
	if cfg.Usage.Enabled {
		var store usage.Store
		if cfg.Usage.DatabasePath != "" {
			sqliteStore, err = usage.NewSQLiteStore(cfg.Usage.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open usage store: %w", err)
			}
			store = sqliteStore
		}
		recorder = usage.NewRecorder(usage.Config{Buffer: cfg.Usage.Buffer}, store)
		defer recorder.Close()
		slog.Info("usage accounting enabled", "database", cfg.Usage.DatabasePath != "")
	}

	// Response cache
	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		responseCache = cache.New(cfg.Cache.TTL)
		slog.Info("response cache enabled", "ttl", cfg.Cache.TTL.String())
	}

	// Dispatcher
	sink := &meteredSink{requests: collector.Request()}
	if recorder != nil {
		sink.next = recorder
	}
	opts := []dispatch.Option{
		dispatch.WithProber(verifier),
		dispatch.WithUsageSink(sink),
	}
	if responseCache != nil {
		opts = append(opts, dispatch.WithCache(&meteredCache{
			inner: responseCache,
			stats: collector.Cache(),
		}))
	}
	dispatcher := dispatch.New(
		dispatch.Config{
			UpstreamBaseURL: cfg.Upstream.BaseURL,
			OperatorSecret:  cfg.Keys.OperatorSecret,
			ProbeChance:     cfg.Pool.ProbeChance,
		},
		poolCfg,
		operator,
		streams,
		opts...,
	)

	// Background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := []sched.Job{
		{
			Name: "probe-unhealthy",
			Spec: cfg.Schedule.ProbeSpec,
			Run: func(ctx context.Context) {
				verifier.ProbeUnhealthy(ctx, operator)
				stats := operator.Stats()
				collector.Pool().UpdateSnapshot(stats.Healthy, stats.Unhealthy, stats.AverageWeight)
			},
		},
		{
			Name: "sweep-streams",
			Spec: cfg.Schedule.SweepSpec,
			Run: func(context.Context) {
				if n := streams.Sweep(); n > 0 {
					slog.Info("swept expired streams", "count", n)
				}
			},
		},
	}
	if responseCache != nil {
		jobs = append(jobs, sched.Job{
			Name: "purge-cache",
			Spec: cfg.Schedule.PurgeSpec,
			Run: func(context.Context) {
				responseCache.Purge()
				collector.Cache().UpdateEntries(responseCache.Len())
			},
		})
	}
	if sqliteStore != nil {
		retention := time.Duration(cfg.Usage.RetentionDays) * 24 * time.Hour
		jobs = append(jobs, sched.Job{
			Name: "prune-usage",
			Spec: cfg.Schedule.PruneSpec,
			Run: func(ctx context.Context) {
				n, perr := sqliteStore.Prune(ctx, time.Now().Add(-retention))
				if perr != nil {
					slog.Error("usage prune failed", "error", perr)
					return
				}
				if n > 0 {
					slog.Info("pruned usage events", "count", n)
				}
			},
		})
	}
	scheduler := sched.New(jobs...)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	// HTTP server
	deps := server.Deps{
		Dispatcher: dispatcher,
		Operator:   operator,
		Streams:    streams,
		Recorder:   recorder,
		Metrics:    collector,
	}
	if responseCache != nil {
		deps.CacheLen = responseCache.Len
	}
	srv := server.NewServer(cfg, deps)

	// Start blocks until signal or context cancellation and shuts down
	// gracefully itself.
	return srv.Start(ctx)
}

func poolConfigFrom(cfg *config.Config) keypool.Config {
	poolCfg := keypool.DefaultConfig()
	poolCfg.MinWeight = cfg.Pool.MinWeight
	poolCfg.RecoveryRate = cfg.Pool.RecoveryRate
	poolCfg.RecoveryInterval = cfg.Pool.RecoveryInterval
	poolCfg.MaxRecoveryAttempts = cfg.Pool.MaxRecoveryAttempts
	poolCfg.UnavailableWindow = cfg.Pool.UnavailableWindow
	return poolCfg
}

func retryParams(b config.BackoffConfig) retry.Params {
	return retry.Params{
		MaxAttempts:       b.MaxAttempts,
		BaseDelay:         b.BaseDelay,
		MaxDelay:          b.MaxDelay,
		BackoffMultiplier: b.BackoffMultiplier,
		JitterRange:       b.JitterFactor,
	}
}

// meteredSink feeds request metrics from usage events, then forwards them
// to the recorder when one is configured.
type meteredSink struct {
	requests *metrics.RequestMetrics
	next     dispatch.UsageSink
}

func (s *meteredSink) Record(ev dispatch.UsageEvent) {
	s.requests.Record(string(ev.Dialect), ev.Source, ev.Status, ev.Elapsed)
	s.requests.RecordSize(string(ev.Dialect), "request", ev.RequestBytes)
	s.requests.RecordSize(string(ev.Dialect), "response", ev.ResponseBytes)
	if s.next != nil {
		s.next.Record(ev)
	}
}

// meteredCache counts hits and misses around the response cache.
type meteredCache struct {
	inner *cache.ResponseCache
	stats *metrics.CacheMetrics
}

func (c *meteredCache) Get(fingerprint string) (int, http.Header, []byte, bool) {
	status, header, body, ok := c.inner.Get(fingerprint)
	if ok {
		c.stats.RecordHit()
	} else {
		c.stats.RecordMiss()
	}
	return status, header, body, ok
}

func (c *meteredCache) Set(fingerprint string, status int, header http.Header, body []byte) {
	c.inner.Set(fingerprint, status, header, body)
}
