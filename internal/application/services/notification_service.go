package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/pkg/retry"
)

// AdminRecipient addresses the operations team that oversees cancellations.
const AdminRecipient = "admins"

// NotificationService hands booking notifications and lifecycle events to
// the event publisher after a change commits. Delivery never fails the
// booking operation that triggered it.
type NotificationService struct {
	publisher providers.EventPublisher
	retry     retry.Config
	dispatch  func(func())
	now       func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(publisher providers.EventPublisher) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		retry:     retry.DeliveryConfig(),
		dispatch:  func(f func()) { go f() },
		now:       time.Now,
	}
}

// Enqueue publishes a single notification.
func (n *NotificationService) Enqueue(ctx context.Context, notification entities.Notification) error {
	event := &entities.BookingEvent{
		ID:           uuid.NewString(),
		Type:         entities.BookingEventNotification,
		BookingID:    notification.BookingID,
		Timestamp:    n.now().UTC(),
		Notification: &notification,
	}
	return retry.DoWithLog(ctx, n.retry, "notifications",
		func() error { return n.publisher.Publish(ctx, event) },
		func(attempt int, err error, nextDelay time.Duration) {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Int("attempt", attempt).Dur("retry_in", nextDelay).
				Str("booking_id", notification.BookingID).
				Msg("Notification publish failed")
		},
	)
}

// BookingCreated tells the requester and provider about a new booking.
func (n *NotificationService) BookingCreated(ctx context.Context, b *entities.Booking, payment *entities.PaymentRecord) {
	message := fmt.Sprintf("Your %s booking for %s at %s is %s.", b.Kind, b.ScheduledDate, b.ScheduledTime, b.Status)
	if payment != nil && payment.GatewayLinkURL != "" {
		message += " Complete payment here: " + payment.GatewayLinkURL
	}
	n.emit(ctx, entities.BookingEventCreated, b,
		notice(b, b.RequesterID, "Booking received", message, entities.NotificationBookingConfirmation),
		notice(b, b.ProviderID, "New booking",
			fmt.Sprintf("%s booked %s at %s.", b.Beneficiary.Name, b.ScheduledDate, b.ScheduledTime),
			entities.NotificationBookingConfirmation),
	)
}

// PaymentConfirmed tells the requester their payment was received.
func (n *NotificationService) PaymentConfirmed(ctx context.Context, b *entities.Booking) {
	n.emit(ctx, entities.BookingEventPaymentConfirmed, b,
		notice(b, b.RequesterID, "Payment received",
			fmt.Sprintf("Payment for your booking on %s at %s is confirmed.", b.ScheduledDate, b.ScheduledTime),
			entities.NotificationPaymentConfirmed),
	)
}

// Cancelled tells the requester, the provider and the admins about a cancellation.
func (n *NotificationService) Cancelled(ctx context.Context, b *entities.Booking, reason string) {
	message := fmt.Sprintf("Booking %s on %s at %s was cancelled.", b.ID, b.ScheduledDate, b.ScheduledTime)
	if reason != "" {
		message += " Reason: " + reason
	}
	n.emit(ctx, entities.BookingEventCancelled, b,
		notice(b, b.RequesterID, "Booking cancelled", message, entities.NotificationCancellation),
		notice(b, b.ProviderID, "Booking cancelled", message, entities.NotificationCancellation),
		notice(b, AdminRecipient, "Booking cancelled", message, entities.NotificationCancellation),
	)
}

// Rescheduled tells both parties about the new slot.
func (n *NotificationService) Rescheduled(ctx context.Context, b *entities.Booking) {
	message := fmt.Sprintf("Your booking moved to %s at %s.", b.ScheduledDate, b.ScheduledTime)
	n.emit(ctx, entities.BookingEventRescheduled, b,
		notice(b, b.RequesterID, "Booking rescheduled", message, entities.NotificationRescheduled),
		notice(b, b.ProviderID, "Booking rescheduled", message, entities.NotificationRescheduled),
	)
}

// StatusChanged tells the requester about a new booking status.
func (n *NotificationService) StatusChanged(ctx context.Context, b *entities.Booking) {
	n.emit(ctx, entities.BookingEventStatusChanged, b,
		notice(b, b.RequesterID, "Booking updated",
			fmt.Sprintf("Your booking on %s is now %s.", b.ScheduledDate, b.Status),
			entities.NotificationStatusChanged),
	)
}

// NoShow tells the requester and provider that the appointment was missed.
func (n *NotificationService) NoShow(ctx context.Context, b *entities.Booking) {
	message := fmt.Sprintf("The appointment on %s at %s was marked as a no-show.", b.ScheduledDate, b.ScheduledTime)
	n.emit(ctx, entities.BookingEventStatusChanged, b,
		notice(b, b.RequesterID, "Missed appointment", message, entities.NotificationNoShow),
		notice(b, b.ProviderID, "Missed appointment", message, entities.NotificationNoShow),
	)
}

func notice(b *entities.Booking, recipient, title, message string, kind entities.NotificationType) entities.Notification {
	return entities.Notification{
		RecipientID: recipient,
		Title:       title,
		Message:     message,
		Type:        kind,
		BookingID:   b.ID,
	}
}

// emit publishes the lifecycle event and each notification off the request path.
func (n *NotificationService) emit(ctx context.Context, eventType entities.BookingEventType, b *entities.Booking, notifications ...entities.Notification) {
	if n == nil || n.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	event := entities.NewBookingEvent(eventType, b, n.now().UTC())

	n.dispatch(func() {
		logger := observability.LoggerFromContext(ctx)
		err := retry.Do(ctx, n.retry, func() error { return n.publisher.Publish(ctx, event) })
		if err != nil {
			logger.Error().Err(err).Str("booking_id", b.ID).Str("event", string(eventType)).Msg("Failed to publish booking event")
		}
		for _, notification := range notifications {
			if err := n.Enqueue(ctx, notification); err != nil {
				logger.Error().Err(err).
					Str("booking_id", b.ID).
					Str("recipient_id", notification.RecipientID).
					Msg("Failed to deliver notification")
			}
		}
	})
}

var _ providers.Notifier = (*NotificationService)(nil)
