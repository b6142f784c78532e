package providers

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// CatalogProvider answers price and availability questions about a
// service at a location.
type CatalogProvider interface {
	GetOffering(ctx context.Context, serviceRef, location string) (*entities.Offering, error)
}
