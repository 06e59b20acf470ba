package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/polaris-gw/polaris/pkg/keypool"
	"github.com/polaris-gw/polaris/pkg/relay"
	"github.com/polaris-gw/polaris/pkg/usage"
)

// AdminHandler exposes operational state: pool health, stream registry
// counters, usage totals, and cache occupancy. It requires the operator
// secret.
type AdminHandler struct {
	secret   string
	pool     *keypool.Pool
	streams  *relay.Registry
	recorder *usage.Recorder
	cacheLen func() int
}

// NewAdminHandler creates the admin stats handler. recorder and cacheLen
// may be nil when the corresponding feature is disabled.
func NewAdminHandler(secret string, pool *keypool.Pool, streams *relay.Registry, recorder *usage.Recorder, cacheLen func() int) *AdminHandler {
	return &AdminHandler{
		secret:   secret,
		pool:     pool,
		streams:  streams,
		recorder: recorder,
		cacheLen: cacheLen,
	}
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeNativeError(w, http.StatusUnauthorized, "missing or invalid credential")
		return
	}

	stats := struct {
		Pool    keypool.Stats `json:"pool"`
		Streams relay.Stats   `json:"streams"`
		Usage   *usage.Totals `json:"usage,omitempty"`
		Cache   *cacheStats   `json:"cache,omitempty"`
	}{
		Pool:    h.pool.Stats(),
		Streams: h.streams.Stats(),
	}
	if h.recorder != nil {
		totals := h.recorder.Totals()
		stats.Usage = &totals
	}
	if h.cacheLen != nil {
		stats.Cache = &cacheStats{Entries: h.cacheLen()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(stats)
}

type cacheStats struct {
	Entries int `json:"entries"`
}

// authorized checks the operator secret in constant time. An empty
// configured secret disables the admin surface entirely.
func (h *AdminHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.secret)) == 1
}
