package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/types"
)

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeySnapshot is for the latest snapshot of an address
	CacheKeySnapshot CacheKeyType = "snapshot"
	// CacheKeyRanking is for stored ranking runs
	CacheKeyRanking CacheKeyType = "ranking"
	// CacheKeyTrader is for trader backtest exports
	CacheKeyTrader CacheKeyType = "trader"
)

// CacheService provides JSON caching over Redis for the API read paths
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, param := range params {
		parts = append(parts, strings.ToLower(param))
	}
	return strings.Join(parts, ":")
}

// SnapshotKey is snapshot:<address>
func (c *CacheService) SnapshotKey(address string) string {
	return c.GenerateCacheKey(CacheKeySnapshot, address)
}

// RankingKey is ranking:<kind>:<type>:<unix time>
func (c *CacheService) RankingKey(kind string, rankingType types.RankingType, at time.Time) string {
	return c.GenerateCacheKey(CacheKeyRanking, kind, string(rankingType), strconv.FormatInt(at.Unix(), 10))
}

// TraderKey is trader:<address>
func (c *CacheService) TraderKey(address string) string {
	return c.GenerateCacheKey(CacheKeyTrader, address)
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, ttl)
}

// Get decodes a cached value into dest. A miss returns false without an error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, apperrors.NewCacheError("get", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidatePattern removes all keys matching a pattern, e.g. "ranking:address:*"
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := c.redis.Scan(ctx, pattern)
	if err != nil {
		return apperrors.NewCacheError("scan", err)
	}
	return c.Invalidate(ctx, keys...)
}

// InvalidateAddress drops the cached snapshot of an address after a new one is saved
func (c *CacheService) InvalidateAddress(ctx context.Context, address string) error {
	return c.Invalidate(ctx, c.SnapshotKey(address))
}

// TTL returns the configured TTL for this cache service
func (c *CacheService) TTL() time.Duration {
	return c.ttl
}
