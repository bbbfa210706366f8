// Package cache provides the deterministic-key, tiered-TTL result cache that
// wraps the analysis pipeline and its upstream data fetches.
//
// The cache is volatile (per-process) and makes no cross-instance coherence
// guarantee. Concurrent requests for the same key may race to populate an
// entry; results are pure functions of their inputs, so last-writer-wins is
// acceptable and no in-flight deduplication is attempted.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"groundwatch/internal/types"
)

// Class selects the TTL tier for an entry based on the kind of data cached.
type Class string

const (
	// ClassComputed covers general computed results (full pipeline runs).
	ClassComputed Class = "computed"
	// ClassUpstream covers raw series fetched from the external source.
	ClassUpstream Class = "upstream"
	// ClassStatic covers static reference data (the station directory).
	ClassStatic Class = "static"
)

// TTLs holds the per-class expiry durations. Values are configuration
// constants, never request parameters.
type TTLs struct {
	Computed time.Duration
	Upstream time.Duration
	Static   time.Duration
}

// DefaultTTLs returns the standard tier durations.
func DefaultTTLs() TTLs {
	return TTLs{
		Computed: time.Hour,
		Upstream: 2 * time.Hour,
		Static:   24 * time.Hour,
	}
}

func (t TTLs) forClass(c Class) time.Duration {
	switch c {
	case ClassUpstream:
		return t.Upstream
	case ClassStatic:
		return t.Static
	default:
		return t.Computed
	}
}

// Recorder receives cache telemetry. Implementations must be safe for
// concurrent use; a nil Recorder disables recording.
type Recorder interface {
	CacheLookup(class, result string)
}

// Key derives a deterministic cache key from an operation name and its
// parameter set. Parameters are serialized with keys sorted (encoding/json
// sorts map keys), so equivalent requests expressed with different key
// ordering always produce the same key.
func Key(operation string, params map[string]any) string {
	b, err := json.Marshal(params)
	if err != nil {
		// Callers build params from plain scalars; an unmarshalable value is
		// a programming error, not a runtime condition.
		panic(fmt.Sprintf("cache: unmarshalable params for operation %s: %v", operation, err))
	}
	return operation + ":" + string(b)
}

type entry struct {
	payload   any
	class     Class
	createdAt time.Time
	ttl       time.Duration
}

// Cache is the in-process tiered-TTL store. Only the internal key→entry map
// needs concurrency protection; payloads are treated as immutable.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	ttls     TTLs
	clock    types.Clock
	recorder Recorder
}

// New creates a Cache. A nil clock defaults to the real clock; a nil
// recorder disables telemetry.
func New(ttls TTLs, clock types.Clock, recorder Recorder) *Cache {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Cache{
		entries:  make(map[string]entry),
		ttls:     ttls,
		clock:    clock,
		recorder: recorder,
	}
}

// Get returns the payload for key if a fresh entry exists. An expired entry
// is a miss, but is retained for GetStale.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		// Class is unknown for absent keys.
		c.record("none", "miss")
		return nil, false
	}
	if c.clock.Now().Sub(e.createdAt) > e.ttl {
		c.record(string(e.class), "expired")
		return nil, false
	}
	c.record(string(e.class), "hit")
	return e.payload, true
}

// GetStale returns the payload for key even when the entry has expired.
// Used as a fallback when the upstream source is unavailable after a miss.
func (c *Cache) GetStale(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key with the TTL of the given class, overwriting
// any previous entry (last writer wins).
func (c *Cache) Set(key string, payload any, class Class) {
	e := entry{
		payload:   payload,
		class:     class,
		createdAt: c.clock.Now(),
		ttl:       c.ttls.forClass(class),
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Len returns the number of entries currently held, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were evicted. Intended
// for periodic housekeeping; correctness never depends on it running.
func (c *Cache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for k, e := range c.entries {
		if now.Sub(e.createdAt) > e.ttl {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}

func (c *Cache) record(class, result string) {
	if c.recorder != nil {
		c.recorder.CacheLookup(class, result)
	}
}
