package rules

import (
	"context"
	"sync"
	"time"
)

// InMemoryRulesCache is a simple in-memory implementation of RulesCache
// Thread-safe for concurrent access
type InMemoryRulesCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
}

type cacheEntry struct {
	def      *CatalogDefinition
	cachedAt time.Time
}

// NewInMemoryRulesCache creates a new in-memory rules cache
func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{
		entries: make(map[string]cacheEntry),
		config:  config,
	}
}

// Get retrieves a cached catalog
// Returns nil if absent or expired
func (c *InMemoryRulesCache) Get(_ context.Context, key string) *CatalogDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.expired(entry) {
		return nil
	}

	// Return copy to prevent external modifications
	return copyDefinition(entry.def)
}

// Set stores a catalog in cache
func (c *InMemoryRulesCache) Set(_ context.Context, def *CatalogDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[def.Key] = cacheEntry{
		def:      copyDefinition(def),
		cachedAt: time.Now(),
	}
}

// Invalidate drops a catalog from the cache
func (c *InMemoryRulesCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// IsValid returns true if the cache holds a live entry for key
func (c *InMemoryRulesCache) IsValid(_ context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return ok && !c.expired(entry)
}

func (c *InMemoryRulesCache) expired(entry cacheEntry) bool {
	return c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL
}
