package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// ScheduleService manages provider schedule change requests and approvals.
type ScheduleService struct {
	uow repositories.UnitOfWork
	now func() time.Time
}

// NewScheduleService creates a new schedule service
func NewScheduleService(uow repositories.UnitOfWork) *ScheduleService {
	return &ScheduleService{uow: uow, now: time.Now}
}

// RequestChange records a pending schedule for the provider.
func (s *ScheduleService) RequestChange(ctx context.Context, actor entities.Actor, window *entities.ScheduleWindow) (*entities.ScheduleWindow, error) {
	if !actor.IsElevated() && !(actor.Role == entities.RoleProvider && actor.ID == window.ProviderID) {
		return nil, apperrors.NewForbiddenError("only the provider or an admin can change this schedule")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	window.ID = uuid.New().String()
	window.Status = entities.SchedulePending
	window.RequestedBy = actor.ID
	window.ReviewedBy = nil
	window.CreatedAt = now
	window.UpdatedAt = now

	if err := s.uow.Schedules().Create(ctx, window); err != nil {
		return nil, err
	}
	return window, nil
}

// Approve makes the pending window the provider's approved schedule for
// its modality. A previously approved window is rejected in the same
// transaction.
func (s *ScheduleService) Approve(ctx context.Context, id string, reviewer entities.Actor, note string) (*entities.ScheduleWindow, error) {
	var approved *entities.ScheduleWindow
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		window, err := s.pendingForReview(ctx, tx, id, reviewer)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		current, err := tx.Schedules().GetApproved(ctx, window.ProviderID, window.Modality)
		switch {
		case err == nil:
			current.Status = entities.ScheduleRejected
			current.Note = "superseded by " + window.ID
			current.ReviewedBy = &reviewer.ID
			current.UpdatedAt = now
			if err := tx.Schedules().Update(ctx, current); err != nil {
				return err
			}
		case !apperrors.IsType(err, apperrors.ErrorTypeNotFound):
			return err
		}

		window.Status = entities.ScheduleApproved
		window.Note = note
		window.ReviewedBy = &reviewer.ID
		window.UpdatedAt = now
		if err := tx.Schedules().Update(ctx, window); err != nil {
			return err
		}
		approved = window
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject declines a pending window.
func (s *ScheduleService) Reject(ctx context.Context, id string, reviewer entities.Actor, note string) (*entities.ScheduleWindow, error) {
	var rejected *entities.ScheduleWindow
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		window, err := s.pendingForReview(ctx, tx, id, reviewer)
		if err != nil {
			return err
		}
		window.Status = entities.ScheduleRejected
		window.Note = note
		window.ReviewedBy = &reviewer.ID
		window.UpdatedAt = s.now().UTC()
		if err := tx.Schedules().Update(ctx, window); err != nil {
			return err
		}
		rejected = window
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// GetApproved returns the provider's approved window for modality.
func (s *ScheduleService) GetApproved(ctx context.Context, providerID string, modality entities.Modality) (*entities.ScheduleWindow, error) {
	if !modality.Valid() {
		return nil, apperrors.NewValidationError("invalid modality " + string(modality))
	}
	return s.uow.Schedules().GetApproved(ctx, providerID, modality)
}

func (s *ScheduleService) pendingForReview(ctx context.Context, tx repositories.Store, id string, reviewer entities.Actor) (*entities.ScheduleWindow, error) {
	if reviewer.Role != entities.RoleAdmin {
		return nil, apperrors.NewForbiddenError("only admins can review schedules")
	}
	window, err := tx.Schedules().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if window.Status != entities.SchedulePending {
		return nil, apperrors.NewConflictError("schedule is already " + string(window.Status))
	}
	return window, nil
}
