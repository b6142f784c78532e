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

// CancellationService cancels bookings and unwinds their payment and capacity.
type CancellationService struct {
	uow           repositories.UnitOfWork
	gateway       providers.PaymentGateway
	allocator     *SlotAllocator
	reminders     providers.ReminderScheduler
	notifications *NotificationService
	metrics       *observability.Metrics
	cutoff        time.Duration
	now           func() time.Time
}

// NewCancellationService creates a new cancellation service. Requesters may
// not cancel within cutoff of the start.
func NewCancellationService(
	uow repositories.UnitOfWork,
	gateway providers.PaymentGateway,
	allocator *SlotAllocator,
	reminders providers.ReminderScheduler,
	notifications *NotificationService,
	metrics *observability.Metrics,
	cutoff time.Duration,
) *CancellationService {
	return &CancellationService{
		uow:           uow,
		gateway:       gateway,
		allocator:     allocator,
		reminders:     reminders,
		notifications: notifications,
		metrics:       metrics,
		cutoff:        cutoff,
		now:           time.Now,
	}
}

// Cancel moves the booking to its kind's cancelled status.
func (s *CancellationService) Cancel(ctx context.Context, bookingID string, actor entities.Actor, reason string) (*entities.Booking, error) {
	return s.CancelTo(ctx, bookingID, actor, reason, "")
}

// CancelTo closes the booking in target, which must be a status that
// releases capacity. An empty target means the kind's cancelled status.
// Completed payments are refunded, entitlements restored, and unpaid
// links deactivated after commit.
func (s *CancellationService) CancelTo(ctx context.Context, bookingID string, actor entities.Actor, reason string, target entities.BookingStatus) (*entities.Booking, error) {
	ctx, span := observability.StartSpan(ctx, "CancellationService.Cancel")
	defer span.End()

	var (
		booking      *entities.Booking
		refunded     bool
		linkToCancel string
	)

	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		var err error
		booking, err = tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		if err := authorizeActor(booking, actor); err != nil {
			return err
		}
		if booking.IsTerminal() {
			return apperrors.NewConflictError(fmt.Sprintf("booking is %s and can no longer change", booking.Status))
		}

		lc := booking.Lifecycle()
		if target == "" {
			target = lc.CancelStatus()
		}
		if !lc.ReleasesCapacity(target) {
			return apperrors.NewValidationError(fmt.Sprintf("%s is not a cancellation status", target))
		}
		if err := checkCutoff(booking, actor, now, s.cutoff); err != nil {
			return err
		}

		record, err := tx.Payments().GetByBookingIDForUpdate(ctx, booking.ID)
		if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return err
		}
		if record != nil {
			refunded, linkToCancel, err = s.unwindPayment(ctx, tx, record, now)
			if err != nil {
				return err
			}
		}

		if err := booking.Transition(target, actor, reason, now); err != nil {
			return err
		}
		if err := tx.Bookings().Update(ctx, booking); err != nil {
			return err
		}
		return s.allocator.Release(ctx, tx, booking.SlotKey())
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	logger := observability.BookingLogger(ctx, booking.ID)
	logger.Info().Str("actor_role", string(actor.Role)).Bool("refunded", refunded).Msg("Booking cancelled")

	observability.RecordCancellation(ctx, s.metrics, string(booking.Kind), string(actor.Role))
	if refunded {
		observability.RecordRefund(ctx, s.metrics, "cancellation")
	}

	if linkToCancel != "" {
		if err := s.gateway.CancelLink(ctx, linkToCancel); err != nil {
			logger.Warn().Err(err).Str("link_id", linkToCancel).Msg("Failed to deactivate payment link")
		}
	}
	s.notifications.Cancelled(ctx, booking, reason)
	if err := s.reminders.Cancel(ctx, booking.ID); err != nil {
		logger.Warn().Err(err).Msg("Failed to cancel reminders")
	}
	return booking, nil
}

// checkCutoff rejects requester changes within cutoff of the start.
// Providers, admins and the system are exempt.
func checkCutoff(b *entities.Booking, actor entities.Actor, now time.Time, cutoff time.Duration) error {
	if actor.Role != entities.RoleRequester {
		return nil
	}
	if b.StartsAt.Sub(now) <= cutoff {
		return apperrors.NewValidationError(fmt.Sprintf("bookings can only be changed more than %s before the start", cutoff))
	}
	return nil
}

// unwindPayment reverses the record inside tx. It reports whether money was
// refunded, and the link to deactivate once the transaction commits.
func (s *CancellationService) unwindPayment(ctx context.Context, tx repositories.Store, record *entities.PaymentRecord, now time.Time) (bool, string, error) {
	switch {
	case record.Status == entities.PaymentRefunded || record.Status == entities.PaymentFailed:
		return false, "", nil

	case record.Method == entities.PaymentMethodEntitlement:
		if record.EntitlementID != "" {
			entitlement, err := tx.Entitlements().GetForUpdate(ctx, record.EntitlementID)
			if err != nil {
				return false, "", err
			}
			entitlement.Remaining++
			entitlement.UpdatedAt = now
			if err := tx.Entitlements().Update(ctx, entitlement); err != nil {
				return false, "", err
			}
		}
		return false, "", s.markRefunded(ctx, tx, record, now)

	case record.Status == entities.PaymentCompleted:
		capture := record.CapturedPaymentID
		if capture == "" && record.GatewayLinkID != "" {
			var err error
			capture, err = s.gateway.FetchLinkCapture(ctx, record.GatewayLinkID)
			if err != nil && !errors.Is(err, providers.ErrNoCapture) {
				return false, "", err
			}
		}
		if capture == "" {
			return false, "", apperrors.NewInvariantError(fmt.Sprintf("completed payment %s has no capture", record.ID), nil)
		}
		if err := s.refund(ctx, tx, record, capture, now); err != nil {
			return false, "", err
		}
		return true, "", nil

	case record.GatewayLinkID != "":
		// The link may have been paid while its webhook is still in flight.
		capture, err := s.gateway.FetchLinkCapture(ctx, record.GatewayLinkID)
		switch {
		case err == nil:
			if err := s.refund(ctx, tx, record, capture, now); err != nil {
				return false, "", err
			}
			return true, "", nil
		case errors.Is(err, providers.ErrNoCapture):
			return false, record.GatewayLinkID, s.markRefunded(ctx, tx, record, now)
		default:
			return false, "", err
		}

	default:
		// Unpaid orders have nothing to deactivate at the gateway.
		return false, "", s.markRefunded(ctx, tx, record, now)
	}
}

func (s *CancellationService) refund(ctx context.Context, tx repositories.Store, record *entities.PaymentRecord, capture string, now time.Time) error {
	refundID, err := s.gateway.Refund(ctx, providers.RefundRequest{
		CaptureID:      capture,
		Amount:         record.Amount,
		Currency:       record.Currency,
		IdempotencyKey: "refund-" + record.ID,
	})
	if err != nil {
		return err
	}
	record.CapturedPaymentID = capture
	record.RefundID = refundID
	return s.markRefunded(ctx, tx, record, now)
}

func (s *CancellationService) markRefunded(ctx context.Context, tx repositories.Store, record *entities.PaymentRecord, now time.Time) error {
	record.Status = entities.PaymentRefunded
	record.UpdatedAt = now
	return tx.Payments().Update(ctx, record)
}

// authorizeActor checks that non-admin actors only touch their own bookings.
func authorizeActor(b *entities.Booking, actor entities.Actor) error {
	switch actor.Role {
	case entities.RoleAdmin, entities.RoleSystem:
		return nil
	case entities.RoleRequester:
		if actor.ID != "" && actor.ID == b.RequesterID {
			return nil
		}
	case entities.RoleProvider:
		if actor.ID != "" && actor.ID == b.ProviderID {
			return nil
		}
	}
	return apperrors.NewForbiddenError("not allowed to change this booking")
}
