package relay

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/polaris-gw/polaris/pkg/keypool"
)

// Relay forwards the upstream body to w until EOF, consumer cancellation,
// or a sweep. Bytes pass through untouched; each write is flushed so
// server-sent events reach the client promptly.
//
// The upstream body is always closed before Relay returns.
func (r *Registry) Relay(ctx context.Context, w io.Writer, upstream io.ReadCloser, credential string) error {
	s := &stream{
		id:         uuid.NewString(),
		credential: keypool.MaskCredential(credential),
		startedAt:  r.now(),
		upstream:   upstream,
	}
	r.register(s)

	// Consumer cancellation tears down the upstream reader promptly rather
	// than waiting for the next read to fail.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = upstream.Close()
		case <-done:
		}
	}()

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)

	for {
		n, readErr := upstream.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				_ = upstream.Close()
				r.unregister(s, OutcomeCancelled)
				return writeErr
			}
			s.bytes += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			_ = upstream.Close()
			switch {
			case errors.Is(readErr, io.EOF):
				r.unregister(s, OutcomeCompleted)
				return nil
			case s.wasSwept():
				r.unregister(s, OutcomeSwept)
				return readErr
			case ctx.Err() != nil:
				r.unregister(s, OutcomeCancelled)
				return ctx.Err()
			default:
				r.unregister(s, OutcomeCancelled)
				return readErr
			}
		}
	}
}
