package fingerprint

import (
	"fmt"
	"path/filepath"
	"sync"
)

// DefaultCacheSize bounds the cache when no capacity is configured.
const DefaultCacheSize = 128

// Cache memoizes fingerprint sets keyed by absolute file path. Capacity is
// bounded; on overflow the earliest-inserted entry is evicted. Corpora are
// scanned once per matching pass, so insertion order is a good enough
// eviction policy.
//
// Safe for concurrent use. Two goroutines computing the same path may both
// do the work; only one result is kept, and a partially computed entry is
// never visible.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]Set
	order    []string // insertion order, oldest first
}

// NewCache creates a cache holding at most capacity fingerprint sets.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]Set),
	}
}

// Compute returns the fingerprint set for the file at path, computing and
// caching it on first use.
func (c *Cache) Compute(path string) (Set, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	c.mu.Lock()
	if set, ok := c.entries[abs]; ok {
		c.mu.Unlock()
		return set, nil
	}
	c.mu.Unlock()

	set, err := Compute(abs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[abs]; ok {
		// Lost a compute race; keep the first result.
		return existing, nil
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[abs] = set
	c.order = append(c.order, abs)
	return set, nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
