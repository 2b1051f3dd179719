package cache

import (
	"context"
	"sync"
	"time"

	"github.com/joseph-ayodele/doc-extractor/internal/entity"
)

type memEntry struct {
	result     *entity.ExtractionResult
	insertedAt time.Time
}

// MemoryCache is a process-local cache. Expired entries are dropped when looked up.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[string]memEntry
}

// NewMemoryCache creates a cache; a nil clock uses time.Now.
func NewMemoryCache(ttl time.Duration, clock Clock) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCache{ttl: ttl, now: clock, entries: make(map[string]memEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*entity.ExtractionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if expired(e.insertedAt, c.now(), c.ttl) {
		delete(c.entries, key)
		return nil, false
	}
	return e.result.Clone(), true
}

func (c *MemoryCache) Put(_ context.Context, key string, result *entity.ExtractionResult) {
	if result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memEntry{result: result.Clone(), insertedAt: c.now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
