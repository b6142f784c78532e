package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const entitlementsTable = "entitlements"

var entitlementColumns = []interface{}{
	"id", "payer_id", "category", "remaining", "expires_at", "created_at", "updated_at",
}

// EntitlementAdapter implements the EntitlementRepository interface
type EntitlementAdapter struct {
	db sqlx.ExtContext
}

// NewEntitlementAdapter creates an entitlement adapter
func NewEntitlementAdapter(db sqlx.ExtContext) repositories.EntitlementRepository {
	return &EntitlementAdapter{db: db}
}

// Create stores a new entitlement
func (a *EntitlementAdapter) Create(ctx context.Context, e *entities.Entitlement) error {
	query, args, err := dialect.Insert(entitlementsTable).Prepared(true).Rows(goqu.Record{
		"id":         e.ID,
		"payer_id":   e.PayerID,
		"category":   e.Category,
		"remaining":  e.Remaining,
		"expires_at": e.ExpiresAt,
		"created_at": e.CreatedAt,
		"updated_at": e.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create entitlement", err)
	}
	return nil
}

// FindUsableForUpdate locks the oldest usable entitlement of the payer
func (a *EntitlementAdapter) FindUsableForUpdate(ctx context.Context, payerID, category string, now time.Time) (*entities.Entitlement, error) {
	query, args, err := dialect.From(entitlementsTable).Prepared(true).
		Select(entitlementColumns...).
		Where(
			goqu.C("payer_id").Eq(payerID),
			goqu.C("category").Eq(category),
			goqu.C("remaining").Gt(0),
			goqu.Or(
				goqu.C("expires_at").IsNull(),
				goqu.C("expires_at").Gt(now),
			),
		).
		Order(goqu.C("created_at").Asc()).
		Limit(1).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var e entities.Entitlement
	if err := sqlx.GetContext(ctx, a.db, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewInternalError("failed to find entitlement", err)
	}
	return &e, nil
}

// GetForUpdate retrieves and locks an entitlement
func (a *EntitlementAdapter) GetForUpdate(ctx context.Context, id string) (*entities.Entitlement, error) {
	query, args, err := dialect.From(entitlementsTable).Prepared(true).
		Select(entitlementColumns...).
		Where(goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var e entities.Entitlement
	if err := sqlx.GetContext(ctx, a.db, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("entitlement with id %s not found", id))
		}
		return nil, apperrors.NewInternalError("failed to get entitlement", err)
	}
	return &e, nil
}

// Update writes the remaining count
func (a *EntitlementAdapter) Update(ctx context.Context, e *entities.Entitlement) error {
	query, args, err := dialect.Update(entitlementsTable).Prepared(true).
		Set(goqu.Record{
			"remaining":  e.Remaining,
			"expires_at": e.ExpiresAt,
			"updated_at": e.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(e.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update entitlement", err)
	}
	return nil
}
