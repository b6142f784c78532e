package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
)

const cacheName = "catalog_offering"

// CachedCatalog keeps recent offerings in an expiring LRU in front of the
// catalog. Errors are never cached.
type CachedCatalog struct {
	next    providers.CatalogProvider
	cache   *expirable.LRU[string, entities.Offering]
	metrics *observability.Metrics
}

// NewCachedCatalog wraps next with a cache of at most size entries kept for ttl.
func NewCachedCatalog(next providers.CatalogProvider, size int, ttl time.Duration, metrics *observability.Metrics) *CachedCatalog {
	if size <= 0 {
		size = 1024
	}
	return &CachedCatalog{
		next:    next,
		cache:   expirable.NewLRU[string, entities.Offering](size, nil, ttl),
		metrics: metrics,
	}
}

func cacheKey(serviceRef, location string) string {
	return serviceRef + "|" + location
}

func (c *CachedCatalog) GetOffering(ctx context.Context, serviceRef, location string) (*entities.Offering, error) {
	key := cacheKey(serviceRef, location)
	if cached, ok := c.cache.Get(key); ok {
		observability.RecordCacheHit(ctx, c.metrics, cacheName)
		offering := cached
		return &offering, nil
	}
	observability.RecordCacheMiss(ctx, c.metrics, cacheName)

	offering, err := c.next.GetOffering(ctx, serviceRef, location)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, *offering)
	return offering, nil
}

var _ providers.CatalogProvider = (*CachedCatalog)(nil)
