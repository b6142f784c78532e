package events

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (LogPublisher) Publish(ctx context.Context, event *entities.BookingEvent) error {
	e := observability.LoggerFromContext(ctx).Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("booking_id", event.BookingID).
		Str("status", string(event.Status))
	if event.Notification != nil {
		e = e.Str("recipient_id", event.Notification.RecipientID).Str("title", event.Notification.Title)
	}
	e.Msg("Booking event")
	return nil
}

func (LogPublisher) Close() error { return nil }

var _ providers.EventPublisher = LogPublisher{}
