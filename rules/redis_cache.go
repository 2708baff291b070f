package rules

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRulesCache stores catalog definitions as JSON in Redis so several
// service replicas share one cached copy. Redis errors are logged and treated
// as cache misses.
type RedisRulesCache struct {
	client redis.UniversalClient
	config CacheConfig
	logger *slog.Logger
}

// NewRedisRulesCache creates a Redis-backed rules cache
func NewRedisRulesCache(client redis.UniversalClient, config CacheConfig, logger *slog.Logger) *RedisRulesCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRulesCache{
		client: client,
		config: config,
		logger: logger,
	}
}

func (c *RedisRulesCache) key(catalogKey string) string {
	return c.config.Prefix + catalogKey
}

// Get retrieves a cached catalog, nil on miss or error
func (c *RedisRulesCache) Get(ctx context.Context, key string) *CatalogDefinition {
	payload, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "redis cache get failed", "catalog", key, "error", err)
		return nil
	}

	var def CatalogDefinition
	if err := json.Unmarshal(payload, &def); err != nil {
		c.logger.WarnContext(ctx, "redis cache entry is corrupt", "catalog", key, "error", err)
		return nil
	}
	return &def
}

// Set stores a catalog in Redis with the configured TTL
func (c *RedisRulesCache) Set(ctx context.Context, def *CatalogDefinition) {
	payload, err := json.Marshal(def)
	if err != nil {
		c.logger.WarnContext(ctx, "redis cache encode failed", "catalog", def.Key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(def.Key), payload, c.config.TTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis cache set failed", "catalog", def.Key, "error", err)
	}
}

// Invalidate deletes the cached catalog
func (c *RedisRulesCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis cache invalidate failed", "catalog", key, "error", err)
	}
}

// IsValid returns true if the key exists in Redis
func (c *RedisRulesCache) IsValid(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "redis cache exists failed", "catalog", key, "error", err)
		return false
	}
	return n == 1
}
