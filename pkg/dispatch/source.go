package dispatch

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/polaris-gw/polaris/pkg/keypool"
)

const (
	// NativeKeyHeader carries the credential in the native wire dialect.
	NativeKeyHeader = "X-Goog-Api-Key"

	// AuthorizationHeader carries the credential in the bearer dialect.
	AuthorizationHeader = "Authorization"
)

// presentedToken extracts the caller's credential from either supported
// header. The bearer form wins when both are present.
func presentedToken(r *http.Request) string {
	if auth := r.Header.Get(AuthorizationHeader); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.Header.Get(NativeKeyHeader))
}

// ResolveSource decides which pool serves the request. A token equal to the
// operator secret routes to the long-lived operator pool; any other token
// is itself treated as a (possibly weighted, multi-key) credential spec and
// served from an ephemeral pool that lives only as long as the request.
func (d *Dispatcher) ResolveSource(r *http.Request) (*keypool.Pool, string, error) {
	token := presentedToken(r)
	if token == "" {
		return nil, "", &AuthenticationError{Message: "no credential presented"}
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(d.cfg.OperatorSecret)) == 1 {
		return d.operator, "operator", nil
	}

	return keypool.New(token, d.poolCfg), "client", nil
}
