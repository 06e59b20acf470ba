package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Params tunes one retry class.
type Params struct {
	// MaxAttempts is the highest attempt number that may still be retried.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64

	// JitterRange perturbs the computed delay by a uniform random fraction
	// in [-JitterRange, +JitterRange].
	JitterRange float64
}

// Policy decides whether and when to retry a failed upstream call based on
// the error class of the status code. Service-unavailable class errors
// (503, 429) get their own, more tolerant table because upstream pressure
// is expected to clear.
type Policy struct {
	// Generic covers 500/502/504 and network-level failures.
	Generic Params

	// Unavailable covers 503 and 429.
	Unavailable Params

	// rand is swapped out by tests for deterministic jitter.
	rand func() float64
}

// NewPolicy returns a policy with the given tables.
func NewPolicy(generic, unavailable Params) *Policy {
	return &Policy{
		Generic:     generic,
		Unavailable: unavailable,
		rand:        rand.Float64,
	}
}

// DefaultPolicy returns the stock retry tables.
func DefaultPolicy() *Policy {
	return NewPolicy(
		Params{
			MaxAttempts:       3,
			BaseDelay:         500 * time.Millisecond,
			MaxDelay:          8 * time.Second,
			BackoffMultiplier: 2.0,
			JitterRange:       0.2,
		},
		Params{
			MaxAttempts:       5,
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
			JitterRange:       0.3,
		},
	)
}

// NetworkErrorCode is the synthetic status code used for fetch-level
// failures (DNS, TLS, timeouts). They retry on the generic table.
const NetworkErrorCode = 0

// params returns the table for a status code, or nil when the code is
// never retryable.
func (p *Policy) params(code int) *Params {
	switch code {
	case 503, 429:
		return &p.Unavailable
	case 500, 502, 504, NetworkErrorCode:
		return &p.Generic
	default:
		// 400/401/403 and anything unclassified: not retryable.
		return nil
	}
}

// ShouldRetry reports whether attempt (1-based) for the given status code
// may be retried.
func (p *Policy) ShouldRetry(code, attempt int) bool {
	tbl := p.params(code)
	return tbl != nil && attempt <= tbl.MaxAttempts
}

// Delay computes the backoff before the given attempt (1-based):
// min(maxDelay, base*multiplier^(attempt-1)) perturbed by uniform jitter,
// floored to whole milliseconds and clamped to be non-negative.
func (p *Policy) Delay(attempt, code int) time.Duration {
	tbl := p.params(code)
	if tbl == nil {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	d := float64(tbl.BaseDelay) * math.Pow(tbl.BackoffMultiplier, float64(attempt-1))
	if d > float64(tbl.MaxDelay) {
		d = float64(tbl.MaxDelay)
	}

	if tbl.JitterRange > 0 {
		jitter := (p.rand()*2 - 1) * tbl.JitterRange
		d *= 1 + jitter
	}

	delay := time.Duration(d).Truncate(time.Millisecond)
	if delay < 0 {
		return 0
	}
	return delay
}

// Wait sleeps for the computed backoff, honoring context cancellation.
func (p *Policy) Wait(ctx context.Context, attempt, code int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Delay(attempt, code)):
		return nil
	}
}
