package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const slotCountersTable = "slot_counters"

// SlotCounterAdapter keeps capacity counters with conditional upserts
type SlotCounterAdapter struct {
	db sqlx.ExtContext
}

// NewSlotCounterAdapter creates a slot counter adapter
func NewSlotCounterAdapter(db sqlx.ExtContext) repositories.SlotCounterRepository {
	return &SlotCounterAdapter{db: db}
}

// Reserve increments the slot counter in a single statement. When the
// counter already reached max the conflict update matches no row and
// nothing is returned.
func (a *SlotCounterAdapter) Reserve(ctx context.Context, key entities.SlotKey, max int) (bool, error) {
	if max <= 0 {
		return false, nil
	}

	query, args, err := dialect.Insert(slotCountersTable).Prepared(true).
		Rows(goqu.Record{
			"provider_id": key.ProviderID,
			"slot_date":   key.Date,
			"slot_minute": int(key.Time),
			"booked":      1,
		}).
		OnConflict(goqu.DoUpdate("provider_id, slot_date, slot_minute",
			goqu.Record{"booked": goqu.L("slot_counters.booked + 1")},
		).Where(goqu.I("slot_counters.booked").Lt(max))).
		Returning("booked").
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build reserve query", err)
	}

	var booked int
	if err := sqlx.GetContext(ctx, a.db, &booked, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.NewInternalError("failed to reserve slot", err)
	}
	return true, nil
}

// Release decrements the slot counter, never below zero
func (a *SlotCounterAdapter) Release(ctx context.Context, key entities.SlotKey) error {
	query, args, err := dialect.Update(slotCountersTable).Prepared(true).
		Set(goqu.Record{"booked": goqu.L("booked - 1")}).
		Where(
			goqu.C("provider_id").Eq(key.ProviderID),
			goqu.C("slot_date").Eq(key.Date),
			goqu.C("slot_minute").Eq(int(key.Time)),
			goqu.C("booked").Gt(0),
		).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build release query", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to release slot", err)
	}
	return nil
}

// Counts returns booked counts for a provider's day
func (a *SlotCounterAdapter) Counts(ctx context.Context, providerID, date string) (map[entities.ClockTime]int, error) {
	query, args, err := dialect.From(slotCountersTable).Prepared(true).
		Select("slot_minute", "booked").
		Where(
			goqu.C("provider_id").Eq(providerID),
			goqu.C("slot_date").Eq(date),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build counts query", err)
	}

	var rows []struct {
		Minute int `db:"slot_minute"`
		Booked int `db:"booked"`
	}
	if err := sqlx.SelectContext(ctx, a.db, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to load slot counters", err)
	}

	counts := make(map[entities.ClockTime]int, len(rows))
	for _, r := range rows {
		counts[entities.ClockTime(r.Minute)] = r.Booked
	}
	return counts, nil
}
