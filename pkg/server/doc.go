// Package server provides the gateway's HTTP surface: the native
// passthrough routes, the OpenAI-compatible chat completions route, and
// the operational endpoints (health, metrics, admin stats).
package server
