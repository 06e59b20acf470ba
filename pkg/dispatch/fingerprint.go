package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable identity for a request from its method,
// upstream path (including query) and body. Identical fingerprints mean
// the cache may serve a previously forwarded response.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
