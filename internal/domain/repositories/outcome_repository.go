package repositories

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// OutcomeRepository stores documents produced by a booking
type OutcomeRepository interface {
	Create(ctx context.Context, artifact *entities.OutcomeArtifact) error
	ExistsForBooking(ctx context.Context, bookingID string) (bool, error)
	ListByBooking(ctx context.Context, bookingID string) ([]*entities.OutcomeArtifact, error)
}
