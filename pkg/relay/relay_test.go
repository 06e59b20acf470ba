package relay

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingReader serves its payload, then blocks until closed.
type blockingReader struct {
	payload io.Reader
	closed  chan struct{}
	once    sync.Once
}

func newBlockingReader(payload string) *blockingReader {
	return &blockingReader{
		payload: strings.NewReader(payload),
		closed:  make(chan struct{}),
	}
}

func (b *blockingReader) Read(p []byte) (int, error) {
	n, err := b.payload.Read(p)
	if err == io.EOF && n == 0 {
		<-b.closed
		return 0, io.ErrClosedPipe
	}
	return n, nil
}

func (b *blockingReader) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestRelayCompletesAndUnregisters(t *testing.T) {
	reg := NewRegistry(time.Minute)

	var buf bytes.Buffer
	body := io.NopCloser(strings.NewReader("data: hello\n\ndata: [DONE]\n\n"))

	if err := reg.Relay(context.Background(), &buf, body, "sk-test-credential"); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if got := buf.String(); got != "data: hello\n\ndata: [DONE]\n\n" {
		t.Errorf("relayed bytes = %q, want passthrough unchanged", got)
	}

	stats := reg.Stats()
	if stats.Active != 0 {
		t.Errorf("Active = %d after completion, want 0", stats.Active)
	}
	if stats.Completed != 1 {
		t.Errorf("Completed = %d, want 1", stats.Completed)
	}
}

func TestRelayConsumerCancellation(t *testing.T) {
	reg := NewRegistry(time.Minute)
	body := newBlockingReader("data: partial\n\n")

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	var buf bytes.Buffer
	go func() {
		errCh <- reg.Relay(ctx, &buf, body, "sk-test-credential")
	}()

	// Let the payload drain, then cancel the consumer.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("Relay() = nil error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Relay() did not return after cancellation")
	}

	stats := reg.Stats()
	if stats.Active != 0 {
		t.Errorf("Active = %d after cancellation, want 0", stats.Active)
	}
	if stats.Cancelled != 1 {
		t.Errorf("Cancelled = %d, want 1", stats.Cancelled)
	}
}

func TestSweepCancelsExpiredStreams(t *testing.T) {
	reg := NewRegistry(50 * time.Millisecond)
	body := newBlockingReader("")

	errCh := make(chan error, 1)
	var buf bytes.Buffer
	go func() {
		errCh <- reg.Relay(context.Background(), &buf, body, "sk-test-credential")
	}()

	// Wait for registration, then age past the sweep timeout.
	deadline := time.Now().Add(time.Second)
	for reg.Active() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if reg.Active() != 1 {
		t.Fatal("stream never registered")
	}

	time.Sleep(60 * time.Millisecond)
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Relay() did not return after sweep")
	}

	stats := reg.Stats()
	if stats.Swept != 1 {
		t.Errorf("Swept = %d, want 1", stats.Swept)
	}
	if stats.Active != 0 {
		t.Errorf("Active = %d after sweep, want 0", stats.Active)
	}
}

func TestSweepLeavesFreshStreamsAlone(t *testing.T) {
	reg := NewRegistry(time.Hour)
	body := newBlockingReader("")

	go func() {
		var buf bytes.Buffer
		_ = reg.Relay(context.Background(), &buf, body, "sk-test-credential")
	}()

	deadline := time.Now().Add(time.Second)
	for reg.Active() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if n := reg.Sweep(); n != 0 {
		t.Errorf("Sweep() = %d for a fresh stream, want 0", n)
	}
	_ = body.Close()
}

func TestOnDoneHook(t *testing.T) {
	reg := NewRegistry(time.Minute)

	var mu sync.Mutex
	var outcomes []Outcome
	var relayed int64
	reg.OnDone(func(outcome Outcome, credential string, duration time.Duration, bytes int64) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, outcome)
		relayed += bytes
		if strings.Contains(credential, "secret-credential-value") {
			t.Errorf("hook received unmasked credential %q", credential)
		}
	})

	var buf bytes.Buffer
	body := io.NopCloser(strings.NewReader("x"))
	if err := reg.Relay(context.Background(), &buf, body, "secret-credential-value"); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 1 || outcomes[0] != OutcomeCompleted {
		t.Errorf("outcomes = %v, want [completed]", outcomes)
	}
	if relayed != 1 {
		t.Errorf("relayed bytes = %d, want 1", relayed)
	}
}
