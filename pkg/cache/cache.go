// Package cache provides the optional in-memory response cache that can
// short-circuit dispatch for idempotent, non-streaming requests. Entries
// are keyed by request fingerprint and expire after a fixed TTL.
package cache

import (
	"hash/fnv"
	"net/http"
	"sync"
	"time"
)

const numShards = 16

// entry is one cached upstream response.
type entry struct {
	status    int
	header    http.Header
	body      []byte
	expiresAt time.Time
}

type shard struct {
	mu    sync.RWMutex
	store map[string]*entry
}

// ResponseCache is a sharded TTL cache of forwarded responses. It is safe
// for concurrent use.
type ResponseCache struct {
	shards [numShards]*shard
	ttl    time.Duration

	now func() time.Time
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *ResponseCache {
	c := &ResponseCache{
		ttl: ttl,
		now: time.Now,
	}
	for i := range c.shards {
		c.shards[i] = &shard{store: make(map[string]*entry)}
	}
	return c
}

func (c *ResponseCache) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Get returns a previously forwarded response for the fingerprint, if one
// is present and not expired.
func (c *ResponseCache) Get(fingerprint string) (int, http.Header, []byte, bool) {
	s := c.shardFor(fingerprint)

	s.mu.RLock()
	e, ok := s.store[fingerprint]
	s.mu.RUnlock()

	if !ok {
		return 0, nil, nil, false
	}
	if c.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// replaced the entry since we dropped the read lock.
		if cur, ok := s.store[fingerprint]; ok && c.now().After(cur.expiresAt) {
			delete(s.store, fingerprint)
		}
		s.mu.Unlock()
		return 0, nil, nil, false
	}
	return e.status, e.header, e.body, true
}

// Set stores a forwarded response under its fingerprint.
func (c *ResponseCache) Set(fingerprint string, status int, header http.Header, body []byte) {
	s := c.shardFor(fingerprint)
	s.mu.Lock()
	s.store[fingerprint] = &entry{
		status:    status,
		header:    header.Clone(),
		body:      body,
		expiresAt: c.now().Add(c.ttl),
	}
	s.mu.Unlock()
}

// Purge removes expired entries and returns how many were dropped.
// Intended to run on a schedule so the cache stays bounded.
func (c *ResponseCache) Purge() int {
	now := c.now()
	dropped := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.store {
			if now.After(e.expiresAt) {
				delete(s.store, k)
				dropped++
			}
		}
		s.mu.Unlock()
	}
	return dropped
}

// Len returns the number of live entries.
func (c *ResponseCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.store)
		s.mu.RUnlock()
	}
	return n
}
