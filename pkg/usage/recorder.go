package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polaris-gw/polaris/pkg/dispatch"
)

// Config contains recorder settings.
type Config struct {
	// Buffer is the size of the async event channel. Events beyond it are
	// dropped, never queued synchronously.
	Buffer int

	// WriteTimeout bounds a single storage write.
	WriteTimeout time.Duration
}

// DefaultConfig returns the stock recorder settings.
func DefaultConfig() Config {
	return Config{
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Store persists usage events.
type Store interface {
	Insert(ctx context.Context, e dispatch.UsageEvent, at time.Time) error
	Close() error
}

// Totals is the in-memory aggregate view.
type Totals struct {
	Requests int64            `json:"requests"`
	Streams  int64            `json:"streams"`
	Errors   int64            `json:"errors"`
	Dropped  int64            `json:"dropped"`
	ByStatus map[int]int64    `json:"by_status"`
	ByKey    map[string]int64 `json:"by_key"`
}

// Recorder drains usage events asynchronously. It implements
// dispatch.UsageSink.
type Recorder struct {
	cfg    Config
	store  Store // nil disables persistence
	events chan dispatch.UsageEvent
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	mu       sync.Mutex
	requests int64
	streams  int64
	errors   int64
	dropped  int64
	byStatus map[int]int64
	byKey    map[string]int64
}

// NewRecorder creates and starts a recorder. Pass a nil store to keep
// aggregates only.
func NewRecorder(cfg Config, store Store) *Recorder {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Recorder{
		cfg:      cfg,
		store:    store,
		events:   make(chan dispatch.UsageEvent, cfg.Buffer),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "usage"),
		byStatus: make(map[int]int64),
		byKey:    make(map[string]int64),
	}

	r.wg.Add(1)
	go r.drain()
	return r
}

// Record enqueues an event without blocking. Full buffer means the event
// is counted as dropped and discarded.
func (r *Recorder) Record(e dispatch.UsageEvent) {
	select {
	case r.events <- e:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Totals returns a snapshot of the aggregates.
func (r *Recorder) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := Totals{
		Requests: r.requests,
		Streams:  r.streams,
		Errors:   r.errors,
		Dropped:  r.dropped,
		ByStatus: make(map[int]int64, len(r.byStatus)),
		ByKey:    make(map[string]int64, len(r.byKey)),
	}
	for k, v := range r.byStatus {
		t.ByStatus[k] = v
	}
	for k, v := range r.byKey {
		t.ByKey[k] = v
	}
	return t
}

// Close stops the drain loop after flushing queued events and closes the
// store.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.events:
			r.apply(e)
		case <-r.done:
			// Flush whatever is still queued.
			for {
				select {
				case e := <-r.events:
					r.apply(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) apply(e dispatch.UsageEvent) {
	now := time.Now()

	r.mu.Lock()
	r.requests++
	if e.Stream {
		r.streams++
	}
	if e.Error != "" {
		r.errors++
	}
	r.byStatus[e.Status]++
	if e.Credential != "" {
		r.byKey[e.Credential]++
	}
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()
	if err := r.store.Insert(ctx, e, now); err != nil {
		r.logger.Warn("failed to persist usage event", "error", err)
	}
}
