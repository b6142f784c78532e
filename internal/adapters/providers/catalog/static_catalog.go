package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// StaticCatalog serves offerings from memory. Used when no catalog service
// is configured and in tests.
type StaticCatalog struct {
	mu        sync.RWMutex
	offerings map[string]entities.Offering
	fallback  *entities.Offering
}

// NewStaticCatalog creates a catalog holding offerings. When fallback is
// non-nil it answers for any unknown service reference.
func NewStaticCatalog(fallback *entities.Offering, offerings ...entities.Offering) *StaticCatalog {
	c := &StaticCatalog{offerings: make(map[string]entities.Offering), fallback: fallback}
	for _, o := range offerings {
		c.Put(o)
	}
	return c
}

// DevOffering is a catch-all offering for local development.
func DevOffering(currency string, durationMinutes int) *entities.Offering {
	return &entities.Offering{
		Offered:                 true,
		Category:                "general",
		Price:                   decimal.NewFromInt(500),
		Currency:                currency,
		DurationMinutes:         durationMinutes,
		HomeCollectionAvailable: true,
		HomeCollectionSurcharge: decimal.NewFromInt(100),
	}
}

// Put adds or replaces an offering. An empty Location matches every location.
func (c *StaticCatalog) Put(o entities.Offering) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerings[cacheKey(o.ServiceRef, o.Location)] = o
}

func (c *StaticCatalog) GetOffering(ctx context.Context, serviceRef, location string) (*entities.Offering, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if o, ok := c.offerings[cacheKey(serviceRef, location)]; ok {
		return &o, nil
	}
	if o, ok := c.offerings[cacheKey(serviceRef, "")]; ok {
		o.Location = location
		return &o, nil
	}
	if c.fallback != nil {
		o := *c.fallback
		o.ServiceRef = serviceRef
		o.Location = location
		return &o, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("service %s not found in catalog", serviceRef))
}

var _ providers.CatalogProvider = (*StaticCatalog)(nil)
