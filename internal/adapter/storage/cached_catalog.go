package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/port"
)

const (
	productKeyPrefix  = "catalog:product:"
	storeKeyPrefix    = "catalog:store:"
	productsListKey   = "catalog:products"
	averagePricingKey = "catalog:avg_pricing"
)

// CachedCatalog is a read-through cache in front of a Catalog. Cache
// failures are logged and the read falls through to the backing catalog.
type CachedCatalog struct {
	next   port.Catalog
	cache  port.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedCatalog(next port.Catalog, cache port.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache, ttl: ttl, logger: logger.Named("catalog_cache")}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return readThrough(ctx, c, productKeyPrefix+productID, func() (*domain.Product, error) {
		return c.next.GetProduct(ctx, productID)
	})
}

func (c *CachedCatalog) GetStore(ctx context.Context, storeID string) (*domain.Store, error) {
	return readThrough(ctx, c, storeKeyPrefix+storeID, func() (*domain.Store, error) {
		return c.next.GetStore(ctx, storeID)
	})
}

func (c *CachedCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return readThrough(ctx, c, productsListKey, func() ([]domain.Product, error) {
		return c.next.ListProducts(ctx)
	})
}

func (c *CachedCatalog) AveragePricing(ctx context.Context) (domain.Pricing, error) {
	return readThrough(ctx, c, averagePricingKey, func() (domain.Pricing, error) {
		return c.next.AveragePricing(ctx)
	})
}

func readThrough[T any](ctx context.Context, c *CachedCatalog, key string, load func() (T, error)) (T, error) {
	var cached T
	hit, err := c.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return cached, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.cache.SetJSON(ctx, key, v, c.ttl); err != nil {
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
