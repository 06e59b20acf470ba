// Package usage is the monitoring collaborator: it receives one
// fire-and-forget event per completed request, keeps in-memory aggregates
// for the stats endpoint, and optionally persists events to SQLite for
// offline analysis. Recording never blocks the request path; events are
// dropped when the buffer is full.
package usage
