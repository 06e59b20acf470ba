package dispatch

import "fmt"

// AuthenticationError means no usable credential was presented. Surfaced
// as 401; no key is penalized because none was selected.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// NoCredentialAvailableError means the resolved pool yielded no key (the
// credential spec was empty). Surfaced as 500; not worth retrying.
type NoCredentialAvailableError struct {
	Source string
}

func (e *NoCredentialAvailableError) Error() string {
	return fmt.Sprintf("no credential available from %s pool", e.Source)
}

// NetworkError is a fetch-level failure (DNS, TLS, timeout). The caller
// sees a synthesized 500 envelope; the scheduler sees a generic
// server-error class penalty.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// UpstreamClass partitions upstream-reported failures for scheduler
// feedback and logging. Bodies are always relayed verbatim regardless of
// class; the class only decides the penalty side effect.
type UpstreamClass int

const (
	// UpstreamOK is any 2xx.
	UpstreamOK UpstreamClass = iota

	// UpstreamAuthError (401/403) permanently penalizes the key.
	UpstreamAuthError

	// UpstreamRateLimited (429) applies a soft weight penalty only.
	UpstreamRateLimited

	// UpstreamUnavailable (503) enters the time-boxed unhealthy state.
	UpstreamUnavailable

	// UpstreamServerError (other 5xx) applies a soft weight penalty.
	UpstreamServerError

	// UpstreamClientError (other 4xx) does not penalize the key; the key is
	// presumably fine and the request was malformed.
	UpstreamClientError
)

// String returns the class name for logs and metrics labels.
func (c UpstreamClass) String() string {
	switch c {
	case UpstreamOK:
		return "ok"
	case UpstreamAuthError:
		return "auth_error"
	case UpstreamRateLimited:
		return "rate_limited"
	case UpstreamUnavailable:
		return "unavailable"
	case UpstreamServerError:
		return "server_error"
	case UpstreamClientError:
		return "client_error"
	default:
		return "unknown"
	}
}

// Classify maps an upstream status code onto its error class.
func Classify(status int) UpstreamClass {
	switch {
	case status >= 200 && status < 300:
		return UpstreamOK
	case status == 401 || status == 403:
		return UpstreamAuthError
	case status == 429:
		return UpstreamRateLimited
	case status == 503:
		return UpstreamUnavailable
	case status >= 500:
		return UpstreamServerError
	default:
		return UpstreamClientError
	}
}

// Penalizes reports whether this class feeds an error back into the
// scheduler.
func (c UpstreamClass) Penalizes() bool {
	switch c {
	case UpstreamAuthError, UpstreamRateLimited, UpstreamUnavailable, UpstreamServerError:
		return true
	default:
		return false
	}
}
