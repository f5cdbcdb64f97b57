package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/clearconf/config-engine/pkg/errors"
)

type cacheMetrics interface {
	ObserveCacheHit()
	ObserveCacheMiss()
}

// CacheRepository provides helpers around Redis interactions for caching
// configuration payloads.
type CacheRepository struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics cacheMetrics
}

// NewCacheRepository constructs a cache repository. metrics may be nil.
func NewCacheRepository(client *redis.Client, logger *zap.Logger, metrics cacheMetrics) *CacheRepository {
	return &CacheRepository{client: client, logger: logger, metrics: metrics}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			r.miss()
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	r.hit()
	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Delete removes the provided keys.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteByPattern removes cached entries matching the provided pattern.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del pattern %s: %w", pattern, err)
	}
	if r.logger != nil {
		r.logger.Debug("cache entries evicted", zap.String("pattern", pattern), zap.Int("count", len(keys)))
	}
	return nil
}

func (r *CacheRepository) hit() {
	if r.metrics != nil {
		r.metrics.ObserveCacheHit()
	}
}

func (r *CacheRepository) miss() {
	if r.metrics != nil {
		r.metrics.ObserveCacheMiss()
	}
}
