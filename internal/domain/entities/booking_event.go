package entities

import (
	"time"

	"github.com/google/uuid"
)

// BookingEventType represents the type of booking lifecycle event
type BookingEventType string

const (
	BookingEventCreated          BookingEventType = "booking.created"
	BookingEventPaymentConfirmed BookingEventType = "booking.payment_confirmed"
	BookingEventCancelled        BookingEventType = "booking.cancelled"
	BookingEventRescheduled      BookingEventType = "booking.rescheduled"
	BookingEventStatusChanged    BookingEventType = "booking.status_changed"
	BookingEventNotification     BookingEventType = "booking.notification"
)

// BookingEvent is published to the event bus after a booking change commits.
type BookingEvent struct {
	ID           string           `json:"id"`
	Type         BookingEventType `json:"type"`
	BookingID    string           `json:"booking_id"`
	ProviderID   string           `json:"provider_id"`
	Status       BookingStatus    `json:"status"`
	Timestamp    time.Time        `json:"timestamp"`
	Notification *Notification    `json:"notification,omitempty"`
}

// NewBookingEvent creates a new booking event
func NewBookingEvent(eventType BookingEventType, b *Booking, at time.Time) *BookingEvent {
	return &BookingEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		BookingID:  b.ID,
		ProviderID: b.ProviderID,
		Status:     b.Status,
		Timestamp:  at,
	}
}
