package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/relay"
)

// Dialect identifies which wire shape the inbound request used, and
// therefore which auth header the outbound request carries.
type Dialect string

const (
	// DialectNative uses the dedicated key header and the upstream's own
	// JSON shapes.
	DialectNative Dialect = "native"

	// DialectBearer uses Authorization: Bearer and the OpenAI-compatible
	// JSON shapes.
	DialectBearer Dialect = "bearer"
)

// Config contains dispatcher settings.
type Config struct {
	// UpstreamBaseURL is the scheme://host of the upstream API.
	UpstreamBaseURL string

	// OperatorSecret is the shared secret that routes callers to the
	// operator pool.
	OperatorSecret string

	// ProbeChance is the per-request probability of kicking off the
	// background health probe for the operator pool.
	ProbeChance float64
}

// Outbound describes the upstream call a handler wants issued. The path is
// relative to the upstream base URL and already carries any query string;
// auth headers are the dispatcher's job and must not be pre-set.
type Outbound struct {
	Method  string
	Path    string
	Header  http.Header
	Body    []byte
	Stream  bool
	Dialect Dialect

	// TransformBody optionally rewrites a successful buffered upstream body
	// before it is relayed (dialect translation). Error bodies always pass
	// through verbatim.
	TransformBody func(body []byte) ([]byte, error)

	// TransformStream optionally wraps a successful upstream stream
	// (dialect translation of server-sent events).
	TransformStream func(rc io.ReadCloser) io.ReadCloser
}

// UsageEvent is the fire-and-forget record emitted per completed request.
type UsageEvent struct {
	Dialect       Dialect
	Source        string // "operator" or "client"
	Status        int
	Elapsed       time.Duration
	Credential    string // masked
	Stream        bool
	RequestBytes  int
	ResponseBytes int
	Error         string
}

// UsageSink receives usage events. Implementations must not block.
type UsageSink interface {
	Record(e UsageEvent)
}

// Cache optionally short-circuits idempotent, non-streaming requests.
type Cache interface {
	Get(fingerprint string) (status int, header http.Header, body []byte, ok bool)
	Set(fingerprint string, status int, header http.Header, body []byte)
}

// Prober exercises unhealthy keys against the upstream in the background.
type Prober interface {
	ProbeUnhealthy(ctx context.Context, pool *keypool.Pool)
}

// Dispatcher drives the request pipeline end to end.
type Dispatcher struct {
	cfg      Config
	poolCfg  keypool.Config
	operator *keypool.Pool
	client   *http.Client
	relay    *relay.Registry
	logger   *slog.Logger

	// Optional collaborators. Nil disables the concern.
	cache  Cache
	usage  UsageSink
	prober Prober

	chance func() float64
}

// Option configures optional dispatcher collaborators.
type Option func(*Dispatcher)

// WithCache attaches a response cache.
func WithCache(c Cache) Option { return func(d *Dispatcher) { d.cache = c } }

// WithUsageSink attaches a monitoring sink.
func WithUsageSink(s UsageSink) Option { return func(d *Dispatcher) { d.usage = s } }

// WithProber attaches the background health prober.
func WithProber(p Prober) Option { return func(d *Dispatcher) { d.prober = p } }

// WithHTTPClient overrides the upstream HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(d *Dispatcher) { d.client = c } }

// New creates a dispatcher around the long-lived operator pool.
func New(cfg Config, poolCfg keypool.Config, operator *keypool.Pool, streams *relay.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		poolCfg:  poolCfg,
		operator: operator,
		relay:    streams,
		logger:   slog.Default().With("component", "dispatch"),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		chance: rand.Float64,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// hop-by-hop and framing headers never relayed to the client.
var strippedResponseHeaders = []string{
	"Transfer-Encoding",
	"Connection",
	"Content-Encoding",
	"Content-Length",
	"Keep-Alive",
}

// Dispatch resolves a credential source, selects a key, issues the upstream
// call and relays the result. Upstream-reported failures pass through
// verbatim; only pipeline-internal failures produce synthesized envelopes.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, out Outbound) {
	start := time.Now()

	pool, source, err := d.ResolveSource(r)
	if err != nil {
		d.writeError(w, out.Dialect, http.StatusUnauthorized, "invalid_request_error", "missing or invalid credential")
		return
	}

	// Cache short-circuit for idempotent, non-streaming requests.
	fingerprint := ""
	if d.cache != nil && !out.Stream {
		// The dialect is part of the identity: the same upstream call may be
		// cached in translated form for bearer callers.
		fingerprint = Fingerprint(out.Method, string(out.Dialect)+":"+out.Path, out.Body)
		if status, header, body, ok := d.cache.Get(fingerprint); ok {
			copyHeaders(w.Header(), header)
			hardenHeaders(w.Header())
			w.WriteHeader(status)
			_, _ = w.Write(body)
			return
		}
	}

	key, ok := pool.SelectKey()
	if !ok {
		d.logger.Error("no credential available", "source", source)
		d.writeError(w, out.Dialect, http.StatusInternalServerError, "server_error",
			(&NoCredentialAvailableError{Source: source}).Error())
		return
	}
	masked := keypool.MaskCredential(key)

	d.maybeProbe(pool)

	req, err := d.buildOutbound(r.Context(), out, key)
	if err != nil {
		d.logger.Error("failed to build outbound request", "error", err)
		d.writeError(w, out.Dialect, http.StatusInternalServerError, "server_error", "failed to build upstream request")
		return
	}

	resp, err := d.client.Do(req)
	if err != nil {
		// Network-level failure: generic server-error class for the
		// scheduler, synthesized envelope for the caller.
		netErr := &NetworkError{Cause: err}
		pool.HandleError(key, http.StatusInternalServerError, netErr.Error())
		d.logger.Error("upstream network error",
			"key", masked,
			"error", err,
		)
		d.writeError(w, out.Dialect, http.StatusInternalServerError, "server_error", "upstream request failed")
		d.record(UsageEvent{
			Dialect:      out.Dialect,
			Source:       source,
			Status:       http.StatusInternalServerError,
			Elapsed:      time.Since(start),
			Credential:   masked,
			Stream:       out.Stream,
			RequestBytes: len(out.Body),
			Error:        netErr.Error(),
		})
		return
	}

	class := Classify(resp.StatusCode)

	if out.Stream && class == UpstreamOK {
		if out.TransformStream != nil {
			resp.Body = out.TransformStream(resp.Body)
		}
		d.relayStream(w, r, resp, out, source, key, masked, start)
		return
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		pool.HandleError(key, http.StatusInternalServerError, readErr.Error())
		d.writeError(w, out.Dialect, http.StatusInternalServerError, "server_error", "failed to read upstream response")
		return
	}

	if class.Penalizes() {
		pool.HandleError(key, resp.StatusCode, string(body))
	}
	if class != UpstreamOK {
		d.logger.Warn("upstream error relayed",
			"key", masked,
			"status", resp.StatusCode,
			"class", class.String(),
		)
	}

	if class == UpstreamOK && out.TransformBody != nil {
		transformed, tErr := out.TransformBody(body)
		if tErr != nil {
			d.logger.Error("response translation failed", "error", tErr)
			d.writeError(w, out.Dialect, http.StatusInternalServerError, "server_error", "failed to translate upstream response")
			return
		}
		body = transformed
	}

	copyHeaders(w.Header(), resp.Header)
	hardenHeaders(w.Header())
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	if d.cache != nil && fingerprint != "" && class == UpstreamOK {
		d.cache.Set(fingerprint, resp.StatusCode, resp.Header, body)
	}

	d.record(UsageEvent{
		Dialect:       out.Dialect,
		Source:        source,
		Status:        resp.StatusCode,
		Elapsed:       time.Since(start),
		Credential:    masked,
		Stream:        false,
		RequestBytes:  len(out.Body),
		ResponseBytes: len(body),
		Error:         errorLabel(class),
	})
}

// relayStream hands the upstream body to the stream relay and returns
// without buffering.
func (d *Dispatcher) relayStream(w http.ResponseWriter, r *http.Request, resp *http.Response, out Outbound, source, key, masked string, start time.Time) {
	copyHeaders(w.Header(), resp.Header)
	hardenHeaders(w.Header())
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/event-stream")
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(resp.StatusCode)

	err := d.relay.Relay(r.Context(), w, resp.Body, key)

	ev := UsageEvent{
		Dialect:      out.Dialect,
		Source:       source,
		Status:       resp.StatusCode,
		Elapsed:      time.Since(start),
		Credential:   masked,
		Stream:       true,
		RequestBytes: len(out.Body),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	d.record(ev)
}

// buildOutbound constructs the upstream request, attaching exactly one auth
// header for the request's dialect and stripping the other.
func (d *Dispatcher) buildOutbound(ctx context.Context, out Outbound, key string) (*http.Request, error) {
	url := strings.TrimSuffix(d.cfg.UpstreamBaseURL, "/") + out.Path

	var body io.Reader
	if len(out.Body) > 0 {
		body = bytes.NewReader(out.Body)
	}

	req, err := http.NewRequestWithContext(ctx, out.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	for k, vals := range out.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" && len(out.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Del(NativeKeyHeader)
	req.Header.Del(AuthorizationHeader)
	switch out.Dialect {
	case DialectBearer:
		req.Header.Set(AuthorizationHeader, "Bearer "+key)
	default:
		req.Header.Set(NativeKeyHeader, key)
	}

	return req, nil
}

// maybeProbe fires the background health probe with low probability. The
// probe never blocks the request path; its errors are logged, not
// propagated.
func (d *Dispatcher) maybeProbe(pool *keypool.Pool) {
	if d.prober == nil || d.cfg.ProbeChance <= 0 {
		return
	}
	if d.chance() >= d.cfg.ProbeChance {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("health probe panicked", "panic", rec)
			}
		}()
		d.prober.ProbeUnhealthy(ctx, pool)
	}()
}

func (d *Dispatcher) record(ev UsageEvent) {
	if d.usage != nil {
		d.usage.Record(ev)
	}
}

func errorLabel(class UpstreamClass) string {
	if class == UpstreamOK {
		return ""
	}
	return class.String()
}

func copyHeaders(dst, src http.Header) {
	for k, vals := range src {
		if isStrippedHeader(k) {
			continue
		}
		for _, v := range vals {
			dst.Add(k, v)
		}
	}
}

func isStrippedHeader(name string) bool {
	for _, h := range strippedResponseHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// hardenHeaders applies the standard response hardening set.
func hardenHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Referrer-Policy", "no-referrer")
}

// writeError writes a synthesized error envelope in the request's dialect.
func (d *Dispatcher) writeError(w http.ResponseWriter, dialect Dialect, status int, kind, message string) {
	hardenHeaders(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var payload any
	if dialect == DialectBearer {
		payload = map[string]any{
			"error": map[string]any{
				"message": message,
				"type":    kind,
				"code":    status,
			},
		}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    status,
				"message": message,
				"status":  strings.ToUpper(kind),
			},
		}
	}
	_ = json.NewEncoder(w).Encode(payload)
}
