package repositories

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// PaymentRepository defines the interface for payment record operations.
// A booking has at most one payment record.
type PaymentRepository interface {
	Create(ctx context.Context, record *entities.PaymentRecord) error
	GetByBookingID(ctx context.Context, bookingID string) (*entities.PaymentRecord, error)

	// GetByBookingIDForUpdate re-reads the record under a row lock
	GetByBookingIDForUpdate(ctx context.Context, bookingID string) (*entities.PaymentRecord, error)

	// GetByGatewayRefForUpdate finds the record by gateway link id or order id
	GetByGatewayRefForUpdate(ctx context.Context, ref string) (*entities.PaymentRecord, error)

	Update(ctx context.Context, record *entities.PaymentRecord) error

	// ListByBookingIDs batch-loads records; bookings without one are absent
	ListByBookingIDs(ctx context.Context, bookingIDs []string) ([]*entities.PaymentRecord, error)
}
