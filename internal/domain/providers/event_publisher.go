package providers

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// EventPublisher publishes booking lifecycle events
type EventPublisher interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, event *entities.BookingEvent) error

	// Close releases the underlying connection
	Close() error
}

// Event routing constants
const (
	// EventChannelBookings is the channel carrying every booking event
	EventChannelBookings = "bookings:events"

	// EventChannelProviderPrefix is the prefix for provider-specific channels
	EventChannelProviderPrefix = "bookings:provider:"
)

// GetProviderChannel returns the channel name for a specific provider
func GetProviderChannel(providerID string) string {
	return EventChannelProviderPrefix + providerID
}
