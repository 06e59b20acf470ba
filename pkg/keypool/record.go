package keypool

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Record holds the configured and dynamic state of a single upstream
// credential. Records are owned by a Pool; callers only ever see masked
// copies via Stats.
type Record struct {
	// Credential is the raw key value. Never logged in full.
	Credential string

	// OriginalWeight is the operator-configured weight, immutable after parse.
	OriginalWeight float64

	// DynamicWeight is the current effective weight, kept within
	// [minWeight, OriginalWeight] at all times.
	DynamicWeight float64

	// accumulator counts selections of this record. It is transient
	// scheduling state used to keep bucket rotation stable across rebuilds.
	accumulator uint64

	// Healthy reports whether the record is in the healthy state.
	Healthy bool

	// TemporarilyUnhealthy marks a time-boxed unhealthy sub-state that
	// clears itself once TemporarilyUnhealthyUntil has passed.
	TemporarilyUnhealthy      bool
	TemporarilyUnhealthyUntil time.Time

	ErrorCount    int
	LastErrorCode int
	LastErrorAt   time.Time

	RecoveryAttempts    int
	LastRecoveryAttempt time.Time
}

// eligible reports whether the record may be handed out by the scheduler:
// healthy, or degraded but still above the weight floor. A record pinned at
// the floor has been fully penalized and only a reset or recovery step can
// bring it back.
func (r *Record) eligible(minWeight float64) bool {
	return r.Healthy || r.DynamicWeight > minWeight
}

// priority quantizes the dynamic weight into an integer bucket priority.
func (r *Record) priority() int {
	p := int(math.Round(r.DynamicWeight * 10))
	if p < 1 {
		return 1
	}
	return p
}

// MaskCredential returns a redacted form of a credential suitable for logs
// and stats output. Short values are fully masked.
func MaskCredential(credential string) string {
	if len(credential) <= 8 {
		return "***"
	}
	return credential[:4] + "..." + credential[len(credential)-4:]
}

// ParseSpec parses a credential spec string into records. Each comma
// separated entry is either "key" or "key:weight"; a missing or
// non-numeric weight defaults to 1 and blank entries are dropped.
//
// An empty spec yields zero records without error. Whether an empty pool
// is fatal is the caller's decision, not the parser's.
func ParseSpec(spec string, now time.Time) []*Record {
	var records []*Record
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key := entry
		weight := 1.0
		if idx := strings.LastIndex(entry, ":"); idx > 0 {
			if w, err := strconv.ParseFloat(entry[idx+1:], 64); err == nil && w > 0 {
				weight = w
				key = entry[:idx]
			}
		}

		records = append(records, &Record{
			Credential:          key,
			OriginalWeight:      weight,
			DynamicWeight:       weight,
			Healthy:             true,
			LastRecoveryAttempt: now,
		})
	}
	return records
}
