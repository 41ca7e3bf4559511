// Package positions holds the last-known-good positions state served when
// every live source is down.
package positions

import (
	"sync"
	"time"

	"github.com/vasanthk84/oi-analyzer/models"
)

// SnapshotCache is a single-slot cache for the most recent successful
// positions snapshot. It is written only after a live fetch succeeds — never
// from a cache read, never from an execution-side operation — so its content
// is always a fully normalized snapshot. There is no TTL: staleness is judged
// by the caller against the snapshot's own CapturedAt, because how old is too
// old is a routing decision, not a storage one.
// Thread-safe implementation using sync.RWMutex.
type SnapshotCache struct {
	mu          sync.RWMutex
	snapshot    models.PositionsSnapshot
	hasSnapshot bool
	hits        uint64
	misses      uint64
	writes      uint64
	lastWriteAt time.Time
}

// NewSnapshotCache creates an empty snapshot cache
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// Put stores a snapshot, replacing any previous one
func (c *SnapshotCache) Put(snapshot models.PositionsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = snapshot
	c.hasSnapshot = true
	c.writes++
	c.lastWriteAt = time.Now()
}

// Get returns the cached snapshot, if one has ever been written
func (c *SnapshotCache) Get() (models.PositionsSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasSnapshot {
		c.misses++
		return models.PositionsSnapshot{}, false
	}

	c.hits++
	return c.snapshot, true
}

// Clear empties the cache
func (c *SnapshotCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = models.PositionsSnapshot{}
	c.hasSnapshot = false
}

// Stats returns cache statistics
func (c *SnapshotCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Populated:   c.hasSnapshot,
		Hits:        c.hits,
		Misses:      c.misses,
		Writes:      c.writes,
		LastWriteAt: c.lastWriteAt,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Populated   bool
	Hits        uint64
	Misses      uint64
	Writes      uint64
	LastWriteAt time.Time
}
