// Package metrics collects Prometheus metrics for the gateway: request
// outcomes, credential pool health, stream lifecycle, and response cache
// effectiveness. A single Collector owns the registry and exposes the
// /metrics handler.
package metrics
