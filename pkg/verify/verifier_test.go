package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/retry"
)

// fastPolicy retries without real delays.
func fastPolicy() *retry.Policy {
	return retry.NewPolicy(
		retry.Params{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1},
		retry.Params{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1},
	)
}

func newTestVerifier(t *testing.T, handler http.HandlerFunc) *Verifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{UpstreamBaseURL: server.URL, Timeout: 5 * time.Second}, fastPolicy())
}

func TestVerifyKeyValid(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") != "good-key-value" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	res := v.VerifyKey(context.Background(), "good-key-value")
	if !res.Valid {
		t.Errorf("VerifyKey() = %+v, want valid", res)
	}
	if res.Credential == "good-key-value" {
		t.Error("result leaked the raw credential")
	}
}

func TestVerifyKeyInvalidNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	})

	res := v.VerifyKey(context.Background(), "bad-key-value")
	if res.Valid {
		t.Error("VerifyKey() valid for rejected key")
	}
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", res.StatusCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("upstream calls = %d; 401 must not be retried", calls)
	}
}

func TestVerifyKeyRetriesTransientFailure(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	res := v.VerifyKey(context.Background(), "flaky-key-value")
	if !res.Valid {
		t.Errorf("VerifyKey() = %+v, want valid after retry", res)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2", calls)
	}
}

func TestVerifyAll(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") == "good-key-value" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	results := v.VerifyAll(context.Background(), []string{"good-key-value", "bad-key-value"})
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !results[0].Valid || results[1].Valid {
		t.Errorf("results = %+v, want [valid, invalid]", results)
	}
}

func TestProbeUnhealthyRecoversGoodKey(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Goog-Api-Key") {
		case "good-key-value":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	pool := keypool.New("good-key-value,dead-key-value", keypool.DefaultConfig())
	pool.HandleError("good-key-value", 503, "")
	pool.HandleError("dead-key-value", 401, "")

	v.ProbeUnhealthy(context.Background(), pool)

	stats := pool.Stats()
	var goodHealthy, deadHealthy bool
	for _, rs := range stats.Records {
		switch rs.Credential {
		case keypool.MaskCredential("good-key-value"):
			goodHealthy = rs.Healthy
		case keypool.MaskCredential("dead-key-value"):
			deadHealthy = rs.Healthy
		}
	}
	if !goodHealthy {
		t.Error("probe success must recover the key immediately")
	}
	if deadHealthy {
		t.Error("probe rejection must leave the key unhealthy")
	}
}
