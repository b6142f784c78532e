package providers

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// Notifier hands a notification to the delivery collaborator.
type Notifier interface {
	Enqueue(ctx context.Context, n entities.Notification) error
}

// MessageSender delivers a plain text message to a phone number.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) error
}

// ReminderScheduler arranges the slot reminders of a booking.
type ReminderScheduler interface {
	Schedule(ctx context.Context, booking *entities.Booking) error
	Cancel(ctx context.Context, bookingID string) error
}
