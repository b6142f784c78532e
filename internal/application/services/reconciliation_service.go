package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const sweepBatchSize = 200

// ReconciliationService closes bookings that time has overtaken.
type ReconciliationService struct {
	uow           repositories.UnitOfWork
	gateway       providers.PaymentGateway
	allocator     *SlotAllocator
	reminders     providers.ReminderScheduler
	notifications *NotificationService
	metrics       *observability.Metrics
	noShowGrace   time.Duration
	now           func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	uow repositories.UnitOfWork,
	gateway providers.PaymentGateway,
	allocator *SlotAllocator,
	reminders providers.ReminderScheduler,
	notifications *NotificationService,
	metrics *observability.Metrics,
	noShowGrace time.Duration,
) *ReconciliationService {
	return &ReconciliationService{
		uow:           uow,
		gateway:       gateway,
		allocator:     allocator,
		reminders:     reminders,
		notifications: notifications,
		metrics:       metrics,
		noShowGrace:   noShowGrace,
		now:           time.Now,
	}
}

// SweepNoShows marks paid appointments that ended more than the grace
// period ago without an outcome artifact as no-shows. It returns how many
// bookings moved. Each booking is handled in its own transaction.
func (s *ReconciliationService) SweepNoShows(ctx context.Context) (int, error) {
	ctx, span := observability.StartSpan(ctx, "ReconciliationService.SweepNoShows")
	defer span.End()

	candidates, err := s.uow.Bookings().ListEndedScheduled(ctx, s.now().Add(-s.noShowGrace), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list ended appointments: %w", err)
	}

	moved := 0
	var errs []error
	for _, candidate := range candidates {
		booking, err := s.markNoShow(ctx, candidate.ID)
		if err != nil {
			observability.BookingLogger(ctx, candidate.ID).Error().Err(err).Msg("No-show sweep failed for booking")
			errs = append(errs, err)
			continue
		}
		if booking == nil {
			continue
		}
		moved++
		observability.RecordSweepTransition(ctx, s.metrics, "no_show")
		s.notifications.NoShow(ctx, booking)
		if err := s.reminders.Cancel(ctx, booking.ID); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("booking_id", booking.ID).Msg("Failed to cancel reminders")
		}
	}

	err = errors.Join(errs...)
	observability.RecordError(span, err)
	return moved, err
}

// markNoShow returns nil, nil when the booking no longer qualifies.
func (s *ReconciliationService) markNoShow(ctx context.Context, bookingID string) (*entities.Booking, error) {
	var moved *entities.Booking
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		booking, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if booking.Kind != entities.BookingKindAppointment || booking.Status != entities.StatusScheduled || !booking.PaymentCompleted {
			return nil
		}
		if booking.EndsAt.Add(s.noShowGrace).After(now) {
			return nil
		}

		record, err := tx.Payments().GetByBookingIDForUpdate(ctx, booking.ID)
		if err != nil {
			return err
		}
		if !record.IsSettled() {
			return nil
		}
		attended, err := tx.Outcomes().ExistsForBooking(ctx, booking.ID)
		if err != nil {
			return err
		}
		if attended {
			return nil
		}

		if err := booking.Transition(entities.StatusNoShow, entities.SystemActor, "no outcome recorded after the appointment ended", now); err != nil {
			return err
		}
		if err := tx.Bookings().Update(ctx, booking); err != nil {
			return err
		}
		moved = booking
		return nil
	})
	return moved, err
}

// SweepUnpaid cancels open bookings whose start passed while their gateway
// payment was never captured. The payment is marked failed and capacity
// released; links are deactivated after commit.
func (s *ReconciliationService) SweepUnpaid(ctx context.Context) (int, error) {
	ctx, span := observability.StartSpan(ctx, "ReconciliationService.SweepUnpaid")
	defer span.End()

	candidates, err := s.uow.Bookings().ListUnpaidStarted(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpaid bookings: %w", err)
	}

	moved := 0
	var errs []error
	for _, candidate := range candidates {
		logger := observability.BookingLogger(ctx, candidate.ID)

		booking, record, err := s.expireUnpaid(ctx, candidate.ID)
		if err != nil {
			logger.Error().Err(err).Msg("Unpaid sweep failed for booking")
			errs = append(errs, err)
			continue
		}
		if booking == nil {
			continue
		}
		moved++
		observability.RecordSweepTransition(ctx, s.metrics, "unpaid_expiry")

		if record.GatewayLinkID != "" {
			if err := s.gateway.CancelLink(ctx, record.GatewayLinkID); err != nil {
				logger.Warn().Err(err).Str("link_id", record.GatewayLinkID).Msg("Failed to deactivate payment link of expired booking")
			}
		}
		s.notifications.Cancelled(ctx, booking, "payment not received before the start")
		if err := s.reminders.Cancel(ctx, booking.ID); err != nil {
			logger.Warn().Err(err).Msg("Failed to cancel reminders")
		}
	}

	err = errors.Join(errs...)
	observability.RecordError(span, err)
	return moved, err
}

func (s *ReconciliationService) expireUnpaid(ctx context.Context, bookingID string) (*entities.Booking, *entities.PaymentRecord, error) {
	var (
		expired *entities.Booking
		record  *entities.PaymentRecord
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		booking, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if booking.IsTerminal() || booking.PaymentCompleted || booking.StartsAt.After(now) {
			return nil
		}

		record, err = tx.Payments().GetByBookingIDForUpdate(ctx, booking.ID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return apperrors.NewInvariantError("open booking has no payment record", err)
			}
			return err
		}
		if !record.AwaitingGateway() {
			return nil
		}

		record.Status = entities.PaymentFailed
		record.UpdatedAt = now
		if err := tx.Payments().Update(ctx, record); err != nil {
			return err
		}
		if err := booking.Transition(booking.Lifecycle().CancelStatus(), entities.SystemActor, "payment not received before the start", now); err != nil {
			return err
		}
		if err := tx.Bookings().Update(ctx, booking); err != nil {
			return err
		}
		if err := s.allocator.Release(ctx, tx, booking.SlotKey()); err != nil {
			return err
		}
		expired = booking
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return expired, record, nil
}
