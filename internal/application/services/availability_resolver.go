package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// AvailabilityResolver checks a requested appointment slot against the
// provider's approved weekly schedule.
type AvailabilityResolver struct {
	loc *time.Location
}

// NewAvailabilityResolver creates a resolver that maps dates to weekdays in loc
func NewAvailabilityResolver(loc *time.Location) *AvailabilityResolver {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityResolver{loc: loc}
}

// SlotRequest is the appointment slot being resolved.
type SlotRequest struct {
	ProviderID string
	Modality   entities.Modality
	Date       string
	Start      entities.ClockTime
	End        entities.ClockTime
	// ExcludeBookingID skips the booking being rescheduled in the overlap check.
	ExcludeBookingID string
}

// Resolve returns nil when the slot is inside an approved range and no paid
// booking of the provider overlaps it. It only reads through tx.
func (r *AvailabilityResolver) Resolve(ctx context.Context, tx repositories.Store, req SlotRequest) error {
	day, err := entities.ParseDate(req.Date, r.loc)
	if err != nil {
		return err
	}

	window, err := tx.Schedules().GetApproved(ctx, req.ProviderID, req.Modality)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return apperrors.NewValidationError(fmt.Sprintf("no availability for %s consultations", req.Modality))
		}
		return err
	}

	weekday := entities.WeekdayOf(day)
	ranges := window.RangesFor(weekday)
	if len(ranges) == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("no availability on %s", weekday))
	}

	covered := false
	for _, rg := range ranges {
		if rg.Covers(req.Start, req.End) {
			covered = true
			break
		}
	}
	if !covered {
		return apperrors.NewValidationError(fmt.Sprintf("%s-%s is outside availability", req.Start, req.End))
	}

	taken, err := tx.Bookings().HasPaidOverlap(ctx, req.ProviderID, req.Date, req.Start, req.End, req.ExcludeBookingID)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.NewConflictError("slot already booked")
	}
	return nil
}
