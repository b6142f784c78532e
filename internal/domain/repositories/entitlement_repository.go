package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// EntitlementRepository defines operations for pre-paid entitlements
type EntitlementRepository interface {
	Create(ctx context.Context, entitlement *entities.Entitlement) error

	// FindUsableForUpdate locks the payer's oldest usable entitlement for
	// category. It returns nil, nil when there is none.
	FindUsableForUpdate(ctx context.Context, payerID, category string, now time.Time) (*entities.Entitlement, error)

	GetForUpdate(ctx context.Context, id string) (*entities.Entitlement, error)
	Update(ctx context.Context, entitlement *entities.Entitlement) error
}
