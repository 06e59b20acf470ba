package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/polaris-gw/polaris/pkg/config"
	"github.com/polaris-gw/polaris/pkg/dispatch"
	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/relay"
	"github.com/polaris-gw/polaris/pkg/telemetry/metrics"
	"github.com/polaris-gw/polaris/pkg/usage"
)

// Deps collects the components the HTTP surface serves.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Operator   *keypool.Pool
	Streams    *relay.Registry
	Recorder   *usage.Recorder
	Metrics    *metrics.Collector

	// CacheLen reports response cache occupancy for the admin surface.
	// Nil when the cache is disabled.
	CacheLen func() int
}

// Server is the gateway HTTP server.
type Server struct {
	cfg  *config.Config
	deps Deps

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates the gateway server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps}
}

// Start starts the HTTP server and blocks until shutdown, triggered by
// context cancellation, SIGINT/SIGTERM, or a listener error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.cfg.Server.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server",
			"address", s.cfg.Server.ListenAddress,
			"upstream", s.cfg.Upstream.BaseURL,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	nativeHandler := NewNativeHandler(s.deps.Dispatcher)
	chatHandler := NewChatHandler(s.deps.Dispatcher, s.cfg.Upstream.APIVersion)
	adminHandler := NewAdminHandler(
		s.cfg.Keys.OperatorSecret,
		s.deps.Operator,
		s.deps.Streams,
		s.deps.Recorder,
		s.deps.CacheLen,
	)

	mux.Handle("/v1/chat/completions", chatHandler)
	mux.Handle("/"+s.cfg.Upstream.APIVersion+"/", nativeHandler)
	mux.Handle("/healthz", HealthHandler{})
	mux.Handle("/admin/stats", adminHandler)
	if s.cfg.Telemetry.Metrics.Enabled && s.deps.Metrics != nil {
		mux.Handle(s.cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = CORSMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)
	return handler
}

// IsRunning reports whether Start has been called and not yet shut down.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
