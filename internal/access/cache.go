package access

import (
	"sync"
	"time"
)

// Cache holds accessible plant sets per user for a short TTL. Expired or
// missing entries always fall through to the grant source, so staleness
// can delay revocation by at most one TTL but never widen access beyond
// what the source returned.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	plants    []string
	expiresAt time.Time
}

// NewCache constructs a cache. A non-positive ttl disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached plant set when still fresh.
func (c *Cache) Get(userID string) ([]string, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return nil, false
	}
	plants := make([]string, len(entry.plants))
	copy(plants, entry.plants)
	return plants, true
}

// Put stores a plant set for the TTL window.
func (c *Cache) Put(userID string, plants []string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	stored := make([]string, len(plants))
	copy(stored, plants)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = cacheEntry{plants: stored, expiresAt: c.now().Add(c.ttl)}
}
