package keypool

import (
	"log/slog"
	"sync"
	"time"
)

// Config contains the scheduler tuning parameters. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// MinWeight is the floor for dynamic weights. A record pinned at the
	// floor is marked unhealthy and drops out of selection until recovery
	// or a reset lifts it back above.
	MinWeight float64

	// RecoveryRate is the fraction of the original weight restored per
	// recovery step.
	RecoveryRate float64

	// RecoveryInterval is the minimum spacing between recovery steps for a
	// single record.
	RecoveryInterval time.Duration

	// MaxRecoveryAttempts bounds gradual recovery. Once exhausted, only a
	// manual Recover or a global reset restores the record.
	MaxRecoveryAttempts int

	// HealthThreshold is the fraction of the original weight a recovering
	// record must regain before it is marked healthy again.
	HealthThreshold float64

	// UnavailableWindow is the fixed duration of the temporary unhealthy
	// state entered on an upstream 503.
	UnavailableWindow time.Duration

	// Penalties maps upstream status codes to weight multipliers applied on
	// HandleError. Codes not present use DefaultPenalty.
	Penalties      map[int]float64
	DefaultPenalty float64

	// OnKeyError and OnReset, when set, are notified of penalties and
	// global resets. They are called with the pool lock held and must not
	// call back into the pool.
	OnKeyError func(code int)
	OnReset    func()
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		MinWeight:           0.1,
		RecoveryRate:        0.1,
		RecoveryInterval:    time.Minute,
		MaxRecoveryAttempts: 10,
		HealthThreshold:     0.5,
		UnavailableWindow:   30 * time.Second,
		Penalties: map[int]float64{
			401: 0.1,
			403: 0.1,
			429: 0.5,
			500: 0.7,
			502: 0.7,
			503: 0.8,
			504: 0.7,
		},
		DefaultPenalty: 0.9,
	}
}

// penalty returns the weight multiplier for an upstream status code.
func (c Config) penalty(code int) float64 {
	if p, ok := c.Penalties[code]; ok {
		return p
	}
	return c.DefaultPenalty
}

// Pool schedules requests across a fixed set of credentials. Record order
// is stable from parse time; buckets are derived lazily from it.
type Pool struct {
	mu  sync.Mutex
	cfg Config

	records []*Record
	index   map[string]*Record

	buckets      []*bucket
	bucketsDirty bool

	lastSelected    string
	totalResets     int64
	lastGlobalReset time.Time

	logger *slog.Logger

	// now is swapped out by tests to control time.
	now func() time.Time
}

// New builds a pool from a credential spec string. An empty or blank spec
// yields an empty pool whose SelectKey always reports no key available.
func New(spec string, cfg Config) *Pool {
	p := &Pool{
		cfg:          cfg,
		index:        make(map[string]*Record),
		bucketsDirty: true,
		logger:       slog.Default().With("component", "keypool"),
		now:          time.Now,
	}
	p.records = ParseSpec(spec, p.now())
	for _, r := range p.records {
		p.index[r.Credential] = r
	}
	return p
}

// Reload replaces the pool's credential set from a new spec. Credentials
// that survive the reload keep their health state and dynamic weight;
// new ones start fresh, removed ones are dropped.
func (p *Pool) Reload(spec string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	fresh := ParseSpec(spec, now)
	index := make(map[string]*Record, len(fresh))
	for i, r := range fresh {
		if old, ok := p.index[r.Credential]; ok {
			// Same credential, possibly a new configured weight.
			old.OriginalWeight = r.OriginalWeight
			if old.DynamicWeight > old.OriginalWeight {
				old.DynamicWeight = old.OriginalWeight
			}
			fresh[i] = old
		}
		index[fresh[i].Credential] = fresh[i]
	}

	p.records = fresh
	p.index = index
	p.bucketsDirty = true
	if _, ok := index[p.lastSelected]; !ok {
		p.lastSelected = ""
	}
	p.logger.Info("pool reloaded", "keys", len(fresh))
}

// Size returns the number of records in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// SelectKey picks the next credential to use. It returns false when the
// pool has no records at all; a pool whose records have all been penalized
// performs a global reset instead of failing.
func (p *Pool) SelectKey() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.records) == 0 {
		return "", false
	}

	now := p.now()
	p.recoverTick(now)
	p.expireTemporaryUnhealthy(now)

	eligible := p.eligibleSet()
	if len(eligible) == 0 {
		// Every record is simultaneously unhealthy and below the weight
		// floor. Restore everything rather than refusing all traffic.
		p.globalReset(now)
		eligible = p.eligibleSet()
	}

	candidates := healthySubset(eligible)
	if len(candidates) == 0 {
		// Serve degraded keys rather than failing outright.
		candidates = eligible
	}

	rec := p.pick(candidates)
	if rec == nil {
		return "", false
	}

	rec.accumulator++
	p.lastSelected = rec.Credential
	return rec.Credential, true
}

// HandleError feeds an upstream failure back into the scheduler. Unknown
// credentials are ignored.
func (p *Pool) HandleError(credential string, code int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.index[credential]
	if !ok {
		return
	}

	now := p.now()
	rec.ErrorCount++
	rec.LastErrorCode = code
	rec.LastErrorAt = now

	oldPriority := rec.priority()
	rec.DynamicWeight = rec.DynamicWeight * p.cfg.penalty(code)
	if rec.DynamicWeight < p.cfg.MinWeight {
		rec.DynamicWeight = p.cfg.MinWeight
	}
	if rec.priority() != oldPriority {
		p.bucketsDirty = true
	}

	switch {
	case code == 401 || code == 403:
		// Irrecoverable without operator action; still subject to the
		// weight-driven recovery loop like any other unhealthy record.
		rec.Healthy = false
	case code == 503:
		rec.Healthy = false
		rec.TemporarilyUnhealthy = true
		rec.TemporarilyUnhealthyUntil = now.Add(p.cfg.UnavailableWindow)
	}
	if rec.DynamicWeight <= p.cfg.MinWeight {
		rec.Healthy = false
	}

	if p.cfg.OnKeyError != nil {
		p.cfg.OnKeyError(code)
	}
	p.logger.Warn("key penalized",
		"key", MaskCredential(credential),
		"code", code,
		"weight", rec.DynamicWeight,
		"healthy", rec.Healthy,
		"errors", rec.ErrorCount,
		"message", truncate(message, 200),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Recover forces a record fully back to healthy with its original weight,
// clearing error and recovery counters. Used by operator action and by the
// background probe on a successful upstream check.
func (p *Pool) Recover(credential string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.index[credential]
	if !ok {
		return
	}
	p.restore(rec)
	p.bucketsDirty = true
	p.logger.Info("key recovered", "key", MaskCredential(credential))
}

// GlobalReset restores every record to its configured state. It is invoked
// automatically when no record is eligible; exposing it also lets the
// operator clear accumulated penalties on demand.
func (p *Pool) GlobalReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globalReset(p.now())
}

// UnhealthyKeys returns the raw credentials currently not healthy. The
// verification probe uses this to decide which keys to exercise.
func (p *Pool) UnhealthyKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var keys []string
	for _, r := range p.records {
		if !r.Healthy {
			keys = append(keys, r.Credential)
		}
	}
	return keys
}

// Credentials returns all raw credentials in record order.
func (p *Pool) Credentials() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, len(p.records))
	for i, r := range p.records {
		keys[i] = r.Credential
	}
	return keys
}

// globalReset must be called with the lock held.
func (p *Pool) globalReset(now time.Time) {
	for _, rec := range p.records {
		p.restore(rec)
	}
	p.buckets = nil
	p.bucketsDirty = true
	p.totalResets++
	p.lastGlobalReset = now

	if p.cfg.OnReset != nil {
		p.cfg.OnReset()
	}
	p.logger.Warn("global reset",
		"records", len(p.records),
		"total_resets", p.totalResets,
	)
}

// restore resets one record to its configured state. Lock held.
func (p *Pool) restore(rec *Record) {
	rec.Healthy = true
	rec.DynamicWeight = rec.OriginalWeight
	rec.TemporarilyUnhealthy = false
	rec.TemporarilyUnhealthyUntil = time.Time{}
	rec.ErrorCount = 0
	rec.LastErrorCode = 0
	rec.RecoveryAttempts = 0
	rec.LastRecoveryAttempt = p.now()
}

// recoverTick performs one pass of gradual weight restoration. Lock held.
func (p *Pool) recoverTick(now time.Time) {
	for _, rec := range p.records {
		if rec.DynamicWeight >= rec.OriginalWeight {
			continue
		}
		if rec.RecoveryAttempts >= p.cfg.MaxRecoveryAttempts {
			continue
		}
		if now.Sub(rec.LastRecoveryAttempt) < p.cfg.RecoveryInterval {
			continue
		}

		rec.RecoveryAttempts++
		rec.LastRecoveryAttempt = now

		oldPriority := rec.priority()
		rec.DynamicWeight += rec.OriginalWeight * p.cfg.RecoveryRate
		if rec.DynamicWeight > rec.OriginalWeight {
			rec.DynamicWeight = rec.OriginalWeight
		}
		if rec.priority() != oldPriority {
			p.bucketsDirty = true
		}

		if !rec.Healthy && rec.DynamicWeight >= rec.OriginalWeight*p.cfg.HealthThreshold {
			rec.Healthy = true
			rec.TemporarilyUnhealthy = false
			rec.TemporarilyUnhealthyUntil = time.Time{}
			p.logger.Info("key restored by recovery",
				"key", MaskCredential(rec.Credential),
				"weight", rec.DynamicWeight,
			)
		}
	}
}

// expireTemporaryUnhealthy clears time-boxed penalties whose deadline has
// passed. Lock held.
func (p *Pool) expireTemporaryUnhealthy(now time.Time) {
	for _, rec := range p.records {
		if rec.TemporarilyUnhealthy && !now.Before(rec.TemporarilyUnhealthyUntil) {
			rec.TemporarilyUnhealthy = false
			rec.TemporarilyUnhealthyUntil = time.Time{}
			rec.Healthy = true
		}
	}
}

// eligibleSet returns records that may be selected, in record order. Lock
// held.
func (p *Pool) eligibleSet() []*Record {
	var out []*Record
	for _, rec := range p.records {
		if rec.eligible(p.cfg.MinWeight) {
			out = append(out, rec)
		}
	}
	return out
}

func healthySubset(records []*Record) []*Record {
	var out []*Record
	for _, rec := range records {
		if rec.Healthy {
			out = append(out, rec)
		}
	}
	return out
}
