// Package telemetry groups the observability subpackages: structured
// logging with credential redaction (logging) and Prometheus metrics
// (metrics).
package telemetry
