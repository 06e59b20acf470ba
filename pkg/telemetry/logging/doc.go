// Package logging configures the process-wide structured logger. All
// components log through log/slog; this package owns handler selection,
// level parsing, and redaction of credential-bearing attributes so a raw
// key can never reach the log output.
package logging
