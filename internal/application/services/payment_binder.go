package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
)

// PaymentBinder attaches the payment obligation to a new booking.
type PaymentBinder struct {
	gateway providers.PaymentGateway
	now     func() time.Time
}

// NewPaymentBinder creates a new payment binder
func NewPaymentBinder(gateway providers.PaymentGateway) *PaymentBinder {
	return &PaymentBinder{gateway: gateway, now: time.Now}
}

// BindRequest names who pays for the booking and how it was created.
type BindRequest struct {
	PayerID     string
	CreatorRole entities.ActorRole
	// Category selects which entitlements can pay for the booking.
	Category string
}

// Bind consumes a usable entitlement or creates a gateway link (provider
// and admin bookings) or order (requester bookings), then persists the
// payment record. The booking must already exist in tx. If the returned
// record carries a gateway link and tx later rolls back, the caller cancels
// the link.
func (p *PaymentBinder) Bind(ctx context.Context, tx repositories.Store, booking *entities.Booking, req BindRequest) (*entities.PaymentRecord, error) {
	now := p.now().UTC()
	record := &entities.PaymentRecord{
		ID:          uuid.New().String(),
		BookingID:   booking.ID,
		CreatorRole: req.CreatorRole,
		Amount:      booking.Amounts.Total,
		Currency:    booking.Amounts.Currency,
		Status:      entities.PaymentCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	entitlement, err := tx.Entitlements().FindUsableForUpdate(ctx, req.PayerID, req.Category, now)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entitlements: %w", err)
	}

	if entitlement != nil {
		entitlement.Remaining--
		entitlement.UpdatedAt = now
		if err := tx.Entitlements().Update(ctx, entitlement); err != nil {
			return nil, fmt.Errorf("failed to consume entitlement: %w", err)
		}
		record.Method = entities.PaymentMethodEntitlement
		record.EntitlementID = entitlement.ID

		booking.PaymentCompleted = true
		booking.UpdatedAt = now
		if err := tx.Bookings().Update(ctx, booking); err != nil {
			return nil, err
		}
	} else {
		charge := providers.ChargeRequest{
			BookingID:   booking.ID,
			Description: fmt.Sprintf("%s booking %s on %s %s", booking.Kind, booking.Resource.Ref(), booking.ScheduledDate, booking.ScheduledTime),
			Amount:      booking.Amounts.Total,
			Currency:    booking.Amounts.Currency,
			PayerID:     req.PayerID,
		}

		if req.CreatorRole == entities.RoleRequester {
			order, err := p.gateway.CreateOrder(ctx, charge)
			if err != nil {
				return nil, err
			}
			record.Method = entities.PaymentMethodOrder
			record.GatewayOrderID = order.ID
		} else {
			link, err := p.gateway.CreateLink(ctx, charge)
			if err != nil {
				return nil, err
			}
			record.Method = entities.PaymentMethodLink
			record.GatewayLinkID = link.ID
			record.GatewayLinkURL = link.URL
		}
	}

	if err := tx.Payments().Create(ctx, record); err != nil {
		p.CompensateLink(ctx, record)
		return nil, fmt.Errorf("failed to save payment record: %w", err)
	}
	return record, nil
}

// CompensateLink deactivates the record's gateway link after the booking
// that created it failed to commit. Failures are logged only.
func (p *PaymentBinder) CompensateLink(ctx context.Context, record *entities.PaymentRecord) {
	if record == nil || record.GatewayLinkID == "" {
		return
	}
	if err := p.gateway.CancelLink(context.WithoutCancel(ctx), record.GatewayLinkID); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("booking_id", record.BookingID).
			Str("link_id", record.GatewayLinkID).
			Msg("Failed to cancel payment link of rolled back booking")
	}
}
