package entities

import "time"

// NotificationType represents the notification purpose
type NotificationType string

const (
	NotificationBookingConfirmation NotificationType = "booking_confirmation"
	NotificationPaymentConfirmed    NotificationType = "payment_confirmed"
	NotificationCancellation        NotificationType = "cancellation"
	NotificationRescheduled         NotificationType = "rescheduled"
	NotificationStatusChanged       NotificationType = "status_changed"
	NotificationNoShow              NotificationType = "no_show"
)

// Notification is handed to the notification collaborator. Delivery and
// templating belong to the collaborator.
type Notification struct {
	RecipientID string           `json:"recipient_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	BookingID   string           `json:"booking_id,omitempty"`
}

// ReminderKind is one of the fixed reminder offsets around a slot.
type ReminderKind string

const (
	ReminderBefore30m ReminderKind = "before_30m"
	ReminderAtStart   ReminderKind = "at_start"
	ReminderAtEnd     ReminderKind = "at_end"
)

// ReminderKinds lists every reminder scheduled for a booking.
var ReminderKinds = []ReminderKind{ReminderBefore30m, ReminderAtStart, ReminderAtEnd}

// SendAt returns when a reminder of this kind fires for b.
func (k ReminderKind) SendAt(b *Booking) time.Time {
	switch k {
	case ReminderBefore30m:
		return b.StartsAt.Add(-30 * time.Minute)
	case ReminderAtEnd:
		return b.EndsAt
	default:
		return b.StartsAt
	}
}
