package events

import (
	"context"

	"go.uber.org/zap"
)

type cacheEvictor interface {
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheInvalidator drops cached entities and list pages whenever a
// configuration mutates.
type CacheInvalidator struct {
	cache  cacheEvictor
	logger *zap.Logger
}

// NewCacheInvalidator constructs the invalidation sink.
func NewCacheInvalidator(cache cacheEvictor, logger *zap.Logger) *CacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidator{cache: cache, logger: logger}
}

// Register subscribes the invalidator to all configuration event kinds.
func (i *CacheInvalidator) Register(bus *Bus) {
	bus.Subscribe(KindConfigurationCreated, "cache-invalidator", i.Handle)
	bus.Subscribe(KindConfigurationUpdated, "cache-invalidator", i.Handle)
	bus.Subscribe(KindConfigurationDeleted, "cache-invalidator", i.Handle)
}

// Handle evicts the mutated entity and every cached list page.
func (i *CacheInvalidator) Handle(ctx context.Context, evt Event) error {
	var configID string
	switch e := evt.(type) {
	case ConfigurationCreated:
		configID = e.ConfigID
	case ConfigurationUpdated:
		configID = e.ConfigID
	case ConfigurationDeleted:
		configID = e.ConfigID
	default:
		return nil
	}

	if err := i.cache.Delete(ctx, EntityCacheKey(configID)); err != nil {
		i.logger.Warn("failed to evict cached configuration", zap.String("config_id", configID), zap.Error(err))
		return err
	}
	if err := i.cache.DeleteByPattern(ctx, ListCachePattern); err != nil {
		i.logger.Warn("failed to evict cached configuration lists", zap.Error(err))
		return err
	}
	return nil
}

// ListCachePattern matches every cached list page.
const ListCachePattern = "configurations:list:*"

// EntityCacheKey builds the cache key for a single configuration.
func EntityCacheKey(configID string) string {
	return "configurations:id:" + configID
}
