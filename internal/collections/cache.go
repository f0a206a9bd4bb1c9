package collections

import (
	"sync"
	"time"
)

// existenceEntry is one cached existence observation.
type existenceEntry struct {
	exists     bool
	observedAt time.Time
}

// existenceCache is a TTL-bounded, best-effort mirror of the vector
// database's collection directory. It is owned exclusively by the Store,
// never persisted, and safe for concurrent use.
type existenceCache struct {
	mu      sync.RWMutex
	entries map[string]existenceEntry
	ttl     time.Duration
	now     func() time.Time
}

// newExistenceCache creates a cache with the given TTL. The clock is
// injectable so tests can advance time without sleeping.
func newExistenceCache(ttl time.Duration, now func() time.Time) *existenceCache {
	if now == nil {
		now = time.Now
	}
	return &existenceCache{
		entries: make(map[string]existenceEntry),
		ttl:     ttl,
		now:     now,
	}
}

// get returns the cached value if present and fresh.
func (c *existenceCache) get(name string) (exists, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return false, false
	}
	if c.now().Sub(e.observedAt) > c.ttl {
		return false, false
	}
	return e.exists, true
}

// getStale returns the cached value regardless of age. Used as the
// availability-over-freshness fallback when the remote is unreachable.
func (c *existenceCache) getStale(name string) (exists, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e.exists, ok
}

// put records an observation at the current time.
func (c *existenceCache) put(name string, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = existenceEntry{exists: exists, observedAt: c.now()}
}

// invalidate drops the entry for a name. Called on create and delete.
func (c *existenceCache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// metadataEntry is one cached registry read.
type metadataEntry struct {
	md         CollectionMetadata
	observedAt time.Time
}

// metadataCache is the TTL-bounded mirror of the registry collection. Only
// successful reads are cached; absence is never cached, so auto-registration
// always sees a true miss.
type metadataCache struct {
	mu      sync.RWMutex
	entries map[string]metadataEntry
	ttl     time.Duration
	now     func() time.Time
}

func newMetadataCache(ttl time.Duration, now func() time.Time) *metadataCache {
	if now == nil {
		now = time.Now
	}
	return &metadataCache{
		entries: make(map[string]metadataEntry),
		ttl:     ttl,
		now:     now,
	}
}

// get returns a copy of the cached metadata if present and fresh. Tags are
// cloned so callers cannot mutate the cached entry.
func (c *metadataCache) get(name string) (CollectionMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok || c.now().Sub(e.observedAt) > c.ttl {
		return CollectionMetadata{}, false
	}
	md := e.md
	md.Tags = append([]string(nil), e.md.Tags...)
	return md, true
}

// put records a registry read at the current time.
func (c *metadataCache) put(md CollectionMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[md.Name] = metadataEntry{md: md, observedAt: c.now()}
}

// invalidate drops the entry for a name. Called on every registry mutation.
func (c *metadataCache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}
