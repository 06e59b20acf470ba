// Package retry provides the bounded retry policy used by call sites that
// opt into multi-attempt upstream calls, such as credential verification
// and the background health probe.
//
// The request dispatch path deliberately performs a single upstream attempt
// per inbound request; retrying there would multiply per-request latency
// when the next inbound request can simply land on a healthier key.
package retry
