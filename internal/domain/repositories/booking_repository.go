package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// BookingRepository defines the interface for booking data operations
type BookingRepository interface {
	// Create persists a new booking
	Create(ctx context.Context, booking *entities.Booking) error

	// GetByID retrieves a booking by ID
	GetByID(ctx context.Context, id string) (*entities.Booking, error)

	// GetForUpdate retrieves a booking and locks its row until the
	// surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*entities.Booking, error)

	// Update writes status, history, schedule and payment flag changes
	Update(ctx context.Context, booking *entities.Booking) error

	// List retrieves bookings matching the filter, newest first
	List(ctx context.Context, filter BookingFilter) ([]*entities.Booking, error)

	// HasPaidOverlap reports whether another open, paid booking of the
	// provider overlaps [start, end) on date
	HasPaidOverlap(ctx context.Context, providerID, date string, start, end entities.ClockTime, excludeID string) (bool, error)

	// ListEndedScheduled returns scheduled, paid appointments with no
	// outcome artifact that ended at or before endedBefore
	ListEndedScheduled(ctx context.Context, endedBefore time.Time, limit int) ([]*entities.Booking, error)

	// ListUnpaidStarted returns open, unpaid bookings that started at or
	// before startedBefore
	ListUnpaidStarted(ctx context.Context, startedBefore time.Time, limit int) ([]*entities.Booking, error)
}

// BookingFilter defines filters for listing bookings
type BookingFilter struct {
	Kind        entities.BookingKind
	Status      entities.BookingStatus
	ProviderID  string
	RequesterID string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}
