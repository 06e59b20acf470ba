package keypool

import "time"

// RecordStats is a masked, read-only view of one record.
type RecordStats struct {
	Credential           string    `json:"credential"`
	OriginalWeight       float64   `json:"original_weight"`
	DynamicWeight        float64   `json:"dynamic_weight"`
	Healthy              bool      `json:"healthy"`
	TemporarilyUnhealthy bool      `json:"temporarily_unhealthy"`
	ErrorCount           int       `json:"error_count"`
	LastErrorCode        int       `json:"last_error_code,omitempty"`
	LastErrorAt          time.Time `json:"last_error_at,omitzero"`
	RecoveryAttempts     int       `json:"recovery_attempts"`
}

// Stats is a point-in-time snapshot of the pool. Taking a snapshot has no
// side effects on scheduler state.
type Stats struct {
	Total           int           `json:"total"`
	Healthy         int           `json:"healthy"`
	Unhealthy       int           `json:"unhealthy"`
	AverageWeight   float64       `json:"average_weight"`
	TotalResets     int64         `json:"total_resets"`
	LastGlobalReset time.Time     `json:"last_global_reset,omitzero"`
	Records         []RecordStats `json:"records"`
}

// Stats returns a snapshot of the pool with credentials masked.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Total:           len(p.records),
		TotalResets:     p.totalResets,
		LastGlobalReset: p.lastGlobalReset,
		Records:         make([]RecordStats, 0, len(p.records)),
	}

	var weightSum float64
	for _, rec := range p.records {
		if rec.Healthy {
			s.Healthy++
		} else {
			s.Unhealthy++
		}
		weightSum += rec.DynamicWeight

		s.Records = append(s.Records, RecordStats{
			Credential:           MaskCredential(rec.Credential),
			OriginalWeight:       rec.OriginalWeight,
			DynamicWeight:        rec.DynamicWeight,
			Healthy:              rec.Healthy,
			TemporarilyUnhealthy: rec.TemporarilyUnhealthy,
			ErrorCount:           rec.ErrorCount,
			LastErrorCode:        rec.LastErrorCode,
			LastErrorAt:          rec.LastErrorAt,
			RecoveryAttempts:     rec.RecoveryAttempts,
		})
	}
	if len(p.records) > 0 {
		s.AverageWeight = weightSum / float64(len(p.records))
	}
	return s
}
