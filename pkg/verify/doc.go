// Package verify exercises credentials against the upstream independently
// of the request path. It backs the keys CLI subcommand and the background
// health probe: a verified key is recovered immediately rather than waiting
// for gradual weight restoration, and a key the upstream rejects is fed
// back into the scheduler as an error.
package verify
