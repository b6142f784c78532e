package repositories

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// ScheduleRepository defines operations for provider schedule windows
type ScheduleRepository interface {
	Create(ctx context.Context, window *entities.ScheduleWindow) error
	GetByID(ctx context.Context, id string) (*entities.ScheduleWindow, error)
	GetForUpdate(ctx context.Context, id string) (*entities.ScheduleWindow, error)

	// GetApproved returns the approved window for provider and modality.
	// It returns a NotFound error when none is approved.
	GetApproved(ctx context.Context, providerID string, modality entities.Modality) (*entities.ScheduleWindow, error)

	Update(ctx context.Context, window *entities.ScheduleWindow) error
}
