package logging

import (
	"log/slog"
	"strings"

	"github.com/polaris-gw/polaris/pkg/keypool"
)

// sensitiveKeys are attribute names whose string values are masked
// before the record is written. Matching is substring, case-insensitive.
var sensitiveKeys = []string{
	"key",
	"credential",
	"token",
	"secret",
	"password",
	"authorization",
}

// redactAttr is the slog ReplaceAttr hook. Components are expected to
// pass masked keys already; this is the backstop for the ones that
// forget.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	if !isSensitiveKey(a.Key) {
		return a
	}
	a.Value = slog.StringValue(MaskValue(a.Value.String()))
	return a
}

// isSensitiveKey reports whether an attribute name indicates a value
// that must not be logged verbatim.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskValue masks a possibly-sensitive value. Values that already look
// masked pass through unchanged so double masking does not mangle them.
func MaskValue(v string) string {
	if v == "" || strings.Contains(v, "...") || v == "***" {
		return v
	}
	return keypool.MaskCredential(v)
}
