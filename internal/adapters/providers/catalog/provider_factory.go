package catalog

import (
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/clients/catalogapi"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/pkg/config"
)

// NewCatalogProvider returns the HTTP catalog behind a cache, or a static
// development catalog when no base URL is configured.
func NewCatalogProvider(cfg *config.Config, metrics *observability.Metrics) providers.CatalogProvider {
	if cfg.Catalog.BaseURL == "" {
		log.Warn().Msg("CATALOG_BASE_URL not set, using static development catalog")
		return NewStaticCatalog(DevOffering(cfg.Payments.Currency, cfg.Booking.SlotMinutes))
	}
	return NewCachedCatalog(catalogapi.NewClient(cfg.Catalog.BaseURL), cfg.Catalog.CacheMax, cfg.Catalog.CacheTTL, metrics)
}
