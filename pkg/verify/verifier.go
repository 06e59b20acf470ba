package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/polaris-gw/polaris/pkg/dispatch"
	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/retry"
)

// Config contains verifier settings.
type Config struct {
	// UpstreamBaseURL is the scheme://host of the upstream API.
	UpstreamBaseURL string

	// ProbePath is the lightweight endpoint used to exercise a key.
	ProbePath string

	// Timeout bounds a single verification attempt.
	Timeout time.Duration
}

// DefaultProbePath lists models: cheap, side-effect free, and it requires
// a valid key.
const DefaultProbePath = "/v1beta/models"

// Result is the outcome of verifying one credential.
type Result struct {
	Credential string `json:"credential"` // masked
	Valid      bool   `json:"valid"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

// Verifier checks credentials against the upstream with bounded retries.
type Verifier struct {
	cfg    Config
	policy *retry.Policy
	client *http.Client
	logger *slog.Logger
}

// New creates a verifier. A nil policy uses the default retry tables.
func New(cfg Config, policy *retry.Policy) *Verifier {
	if cfg.ProbePath == "" {
		cfg.ProbePath = DefaultProbePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	return &Verifier{
		cfg:    cfg,
		policy: policy,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "verify"),
	}
}

// VerifyKey exercises a single credential. Transient upstream failures are
// retried per the policy; the returned status code is the last one seen
// (0 for network-level failures).
func (v *Verifier) VerifyKey(ctx context.Context, credential string) Result {
	res := Result{Credential: keypool.MaskCredential(credential)}

	for attempt := 1; ; attempt++ {
		status, err := v.probe(ctx, credential)
		res.StatusCode = status
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Error = ""
		}

		if err == nil && dispatch.Classify(status) == dispatch.UpstreamOK {
			res.Valid = true
			return res
		}

		code := status
		if err != nil && status == 0 {
			code = retry.NetworkErrorCode
		}
		if !v.policy.ShouldRetry(code, attempt) {
			return res
		}
		if waitErr := v.policy.Wait(ctx, attempt, code); waitErr != nil {
			res.Error = waitErr.Error()
			return res
		}
	}
}

// VerifyAll checks every credential in order.
func (v *Verifier) VerifyAll(ctx context.Context, credentials []string) []Result {
	results := make([]Result, 0, len(credentials))
	for _, c := range credentials {
		results = append(results, v.VerifyKey(ctx, c))
	}
	return results
}

// ProbeUnhealthy exercises the pool's currently-unhealthy keys. A probe
// success recovers the key directly instead of waiting for the gradual
// recovery path; an upstream auth rejection feeds back as an error. It
// implements dispatch.Prober and never returns an error: failures are
// logged, not propagated.
func (v *Verifier) ProbeUnhealthy(ctx context.Context, pool *keypool.Pool) {
	for _, key := range pool.UnhealthyKeys() {
		status, err := v.probe(ctx, key)
		switch {
		case err != nil:
			v.logger.Debug("health probe failed",
				"key", keypool.MaskCredential(key),
				"error", err,
			)
		case dispatch.Classify(status) == dispatch.UpstreamOK:
			pool.Recover(key)
			v.logger.Info("health probe recovered key",
				"key", keypool.MaskCredential(key),
			)
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			pool.HandleError(key, status, "health probe rejected")
		default:
			v.logger.Debug("health probe inconclusive",
				"key", keypool.MaskCredential(key),
				"status", status,
			)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// probe performs one upstream check. It returns the status code, or 0 with
// an error for network-level failures.
func (v *Verifier) probe(ctx context.Context, credential string) (int, error) {
	url := strings.TrimSuffix(v.cfg.UpstreamBaseURL, "/") + v.cfg.ProbePath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set(dispatch.NativeKeyHeader, credential)

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
	return resp.StatusCode, nil
}
