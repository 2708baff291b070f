package rules

import (
	"context"
	"time"
)

// RulesCache caches catalog definitions by key.
// This allows swapping between in-memory, Redis, or other caching implementations.
type RulesCache interface {
	// Get retrieves a cached catalog, returns nil if cache miss or expired
	Get(ctx context.Context, key string) *CatalogDefinition

	// Set stores a catalog in cache
	Set(ctx context.Context, def *CatalogDefinition)

	// Invalidate drops a catalog, forcing a store read on next Get
	Invalidate(ctx context.Context, key string)

	// IsValid returns true if the cache holds a live entry for key
	IsValid(ctx context.Context, key string) bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration

	// Prefix namespaces keys in shared caches such as Redis
	Prefix string
}

// DefaultCacheConfig returns sensible defaults for catalog caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:    0, // No TTL - only invalidate on reload
		Prefix: "visarules:catalog:",
	}
}
