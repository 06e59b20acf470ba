package relay

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Outcome classifies how a stream ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSwept     Outcome = "swept"
)

// stream is one active relay registration.
type stream struct {
	id         string
	credential string
	startedAt  time.Time
	upstream   io.ReadCloser

	// bytes is written only by the relay loop goroutine.
	bytes int64

	mu    sync.Mutex
	swept bool
}

func (s *stream) markSwept() {
	s.mu.Lock()
	s.swept = true
	s.mu.Unlock()
}

func (s *stream) wasSwept() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swept
}

// Stats is a snapshot of registry activity.
type Stats struct {
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Swept     int64 `json:"swept"`
}

// Registry tracks active streams and sweeps abandoned ones.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*stream

	completed int64
	cancelled int64
	swept     int64

	timeout time.Duration
	logger  *slog.Logger

	// onDone, when set, receives the outcome, duration and byte count of
	// every finished stream. Used to feed metrics without importing them
	// here.
	onDone func(outcome Outcome, credential string, duration time.Duration, bytes int64)

	now func() time.Time
}

// NewRegistry creates a registry whose sweep cancels streams older than
// timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		streams: make(map[string]*stream),
		timeout: timeout,
		logger:  slog.Default().With("component", "relay"),
		now:     time.Now,
	}
}

// OnDone registers a completion hook. Must be called before any stream
// starts.
func (r *Registry) OnDone(fn func(outcome Outcome, credential string, duration time.Duration, bytes int64)) {
	r.onDone = fn
}

func (r *Registry) register(s *stream) {
	r.mu.Lock()
	r.streams[s.id] = s
	r.mu.Unlock()
}

func (r *Registry) unregister(s *stream, outcome Outcome) {
	r.mu.Lock()
	if _, ok := r.streams[s.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.streams, s.id)
	switch outcome {
	case OutcomeCompleted:
		r.completed++
	case OutcomeCancelled:
		r.cancelled++
	case OutcomeSwept:
		r.swept++
	}
	r.mu.Unlock()

	duration := r.now().Sub(s.startedAt)
	if r.onDone != nil {
		r.onDone(outcome, s.credential, duration, s.bytes)
	}
	r.logger.Debug("stream finished",
		"stream_id", s.id,
		"outcome", string(outcome),
		"duration", duration,
		"bytes", s.bytes,
	)
}

// Active returns the number of streams currently registered.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Stats returns a snapshot of registry counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Active:    len(r.streams),
		Completed: r.completed,
		Cancelled: r.cancelled,
		Swept:     r.swept,
	}
}

// Sweep cancels and removes every stream older than the registry timeout.
// It returns the number of streams swept. Intended to run on a schedule.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.timeout)

	r.mu.Lock()
	var expired []*stream
	for _, s := range r.streams {
		if s.startedAt.Before(cutoff) {
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.markSwept()
		// Closing the upstream body unblocks the relay loop, which then
		// unregisters the stream with the swept outcome.
		_ = s.upstream.Close()
		r.logger.Warn("swept abandoned stream",
			"stream_id", s.id,
			"age", r.now().Sub(s.startedAt),
		)
	}
	return len(expired)
}
