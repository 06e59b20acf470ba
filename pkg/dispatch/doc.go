// Package dispatch implements the request pipeline: resolve which key pool
// serves a request, select a credential, build and issue the upstream call,
// feed the outcome back into the scheduler, and relay the response either
// streamed or buffered.
//
// Dispatch performs exactly one upstream attempt per inbound request.
// Failing fast lets the next inbound request land on a healthier key
// instead of multiplying per-request latency with internal retries.
package dispatch
