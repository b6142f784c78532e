package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const paymentsTable = "payment_records"

var paymentColumns = []interface{}{
	"id", "booking_id", "creator_role", "method", "entitlement_id",
	"gateway_link_id", "gateway_link_url", "gateway_order_id",
	"captured_payment_id", "refund_id", "amount", "currency", "status",
	"created_at", "updated_at",
}

// PaymentAdapter implements the PaymentRepository interface
type PaymentAdapter struct {
	db sqlx.ExtContext
}

// NewPaymentAdapter creates a payment adapter
func NewPaymentAdapter(db sqlx.ExtContext) repositories.PaymentRepository {
	return &PaymentAdapter{db: db}
}

// Create inserts the payment record of a booking
func (a *PaymentAdapter) Create(ctx context.Context, record *entities.PaymentRecord) error {
	query, args, err := dialect.Insert(paymentsTable).Prepared(true).Rows(goqu.Record{
		"id":                  record.ID,
		"booking_id":          record.BookingID,
		"creator_role":        string(record.CreatorRole),
		"method":              string(record.Method),
		"entitlement_id":      record.EntitlementID,
		"gateway_link_id":     record.GatewayLinkID,
		"gateway_link_url":    record.GatewayLinkURL,
		"gateway_order_id":    record.GatewayOrderID,
		"captured_payment_id": record.CapturedPaymentID,
		"refund_id":           record.RefundID,
		"amount":              record.Amount,
		"currency":            record.Currency,
		"status":              string(record.Status),
		"created_at":          record.CreatedAt,
		"updated_at":          record.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("booking %s already has a payment record", record.BookingID))
		}
		return apperrors.NewInternalError("failed to create payment record", err)
	}
	return nil
}

// GetByBookingID retrieves the payment record of a booking
func (a *PaymentAdapter) GetByBookingID(ctx context.Context, bookingID string) (*entities.PaymentRecord, error) {
	ds := dialect.From(paymentsTable).Where(goqu.C("booking_id").Eq(bookingID))
	return a.getOne(ctx, ds, "booking "+bookingID)
}

// GetByBookingIDForUpdate retrieves and locks the payment record of a booking
func (a *PaymentAdapter) GetByBookingIDForUpdate(ctx context.Context, bookingID string) (*entities.PaymentRecord, error) {
	ds := dialect.From(paymentsTable).Where(goqu.C("booking_id").Eq(bookingID)).ForUpdate(exp.Wait)
	return a.getOne(ctx, ds, "booking "+bookingID)
}

// GetByGatewayRefForUpdate retrieves and locks a record by link or order id
func (a *PaymentAdapter) GetByGatewayRefForUpdate(ctx context.Context, ref string) (*entities.PaymentRecord, error) {
	if ref == "" {
		return nil, apperrors.NewValidationError("gateway reference is required")
	}
	ds := dialect.From(paymentsTable).
		Where(goqu.Or(
			goqu.C("gateway_link_id").Eq(ref),
			goqu.C("gateway_order_id").Eq(ref),
		)).
		ForUpdate(exp.Wait)
	return a.getOne(ctx, ds, "gateway reference "+ref)
}

func (a *PaymentAdapter) getOne(ctx context.Context, ds *goqu.SelectDataset, what string) (*entities.PaymentRecord, error) {
	query, args, err := ds.Prepared(true).Select(paymentColumns...).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var record entities.PaymentRecord
	if err := sqlx.GetContext(ctx, a.db, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment record for %s not found", what))
		}
		return nil, apperrors.NewInternalError("failed to get payment record", err)
	}
	return &record, nil
}

// Update writes status and gateway references
func (a *PaymentAdapter) Update(ctx context.Context, record *entities.PaymentRecord) error {
	query, args, err := dialect.Update(paymentsTable).Prepared(true).
		Set(goqu.Record{
			"method":              string(record.Method),
			"entitlement_id":      record.EntitlementID,
			"gateway_link_id":     record.GatewayLinkID,
			"gateway_link_url":    record.GatewayLinkURL,
			"gateway_order_id":    record.GatewayOrderID,
			"captured_payment_id": record.CapturedPaymentID,
			"refund_id":           record.RefundID,
			"status":              string(record.Status),
			"updated_at":          record.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(record.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update payment record", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("payment record %s not found", record.ID))
	}
	return nil
}

// ListByBookingIDs batch-loads payment records
func (a *PaymentAdapter) ListByBookingIDs(ctx context.Context, bookingIDs []string) ([]*entities.PaymentRecord, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}

	query, args, err := dialect.From(paymentsTable).Prepared(true).
		Select(paymentColumns...).
		Where(goqu.C("booking_id").In(bookingIDs)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var records []*entities.PaymentRecord
	if err := sqlx.SelectContext(ctx, a.db, &records, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list payment records", err)
	}
	return records, nil
}
