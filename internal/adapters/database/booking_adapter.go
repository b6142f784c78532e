package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const bookingsTable = "bookings"

var bookingColumns = []interface{}{
	"id", "kind", "requester_id", "beneficiary", "provider_id",
	"service_id", "test_id", "package_id",
	"scheduled_date", "scheduled_minute", "duration_minutes", "starts_at", "ends_at",
	"modality", "home_collection", "location",
	"amount_base", "amount_surcharge", "amount_discount", "amount_total", "currency",
	"status", "status_history", "payment_completed", "created_at", "updated_at",
}

// bookingRow is the flat storage shape of a booking
type bookingRow struct {
	ID               string          `db:"id"`
	Kind             string          `db:"kind"`
	RequesterID      string          `db:"requester_id"`
	Beneficiary      string          `db:"beneficiary"`
	ProviderID       string          `db:"provider_id"`
	ServiceID        string          `db:"service_id"`
	TestID           string          `db:"test_id"`
	PackageID        string          `db:"package_id"`
	ScheduledDate    time.Time       `db:"scheduled_date"`
	ScheduledMinute  int             `db:"scheduled_minute"`
	DurationMinutes  int             `db:"duration_minutes"`
	StartsAt         time.Time       `db:"starts_at"`
	EndsAt           time.Time       `db:"ends_at"`
	Modality         string          `db:"modality"`
	HomeCollection   bool            `db:"home_collection"`
	Location         string          `db:"location"`
	AmountBase       decimal.Decimal `db:"amount_base"`
	AmountSurcharge  decimal.Decimal `db:"amount_surcharge"`
	AmountDiscount   decimal.Decimal `db:"amount_discount"`
	AmountTotal      decimal.Decimal `db:"amount_total"`
	Currency         string          `db:"currency"`
	Status           string          `db:"status"`
	StatusHistory    string          `db:"status_history"`
	PaymentCompleted bool            `db:"payment_completed"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func toBookingRow(b *entities.Booking) (*bookingRow, error) {
	date, err := time.Parse(entities.DateLayout, b.ScheduledDate)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid scheduled date %q", b.ScheduledDate))
	}
	beneficiary, err := json.Marshal(b.Beneficiary)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode beneficiary", err)
	}
	history, err := json.Marshal(b.StatusHistory)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode status history", err)
	}

	return &bookingRow{
		ID:               b.ID,
		Kind:             string(b.Kind),
		RequesterID:      b.RequesterID,
		Beneficiary:      string(beneficiary),
		ProviderID:       b.ProviderID,
		ServiceID:        b.Resource.ServiceID,
		TestID:           b.Resource.TestID,
		PackageID:        b.Resource.PackageID,
		ScheduledDate:    date,
		ScheduledMinute:  int(b.ScheduledTime),
		DurationMinutes:  b.DurationMinutes,
		StartsAt:         b.StartsAt,
		EndsAt:           b.EndsAt,
		Modality:         string(b.Modality),
		HomeCollection:   b.HomeCollection,
		Location:         b.Location,
		AmountBase:       b.Amounts.Base,
		AmountSurcharge:  b.Amounts.Surcharge,
		AmountDiscount:   b.Amounts.Discount,
		AmountTotal:      b.Amounts.Total,
		Currency:         b.Amounts.Currency,
		Status:           string(b.Status),
		StatusHistory:    string(history),
		PaymentCompleted: b.PaymentCompleted,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}, nil
}

func (r *bookingRow) toEntity() (*entities.Booking, error) {
	b := &entities.Booking{
		ID:          r.ID,
		Kind:        entities.BookingKind(r.Kind),
		RequesterID: r.RequesterID,
		ProviderID:  r.ProviderID,
		Resource: entities.ResourceRef{
			ServiceID: r.ServiceID,
			TestID:    r.TestID,
			PackageID: r.PackageID,
		},
		ScheduledDate:   r.ScheduledDate.Format(entities.DateLayout),
		ScheduledTime:   entities.ClockTime(r.ScheduledMinute),
		DurationMinutes: r.DurationMinutes,
		StartsAt:        r.StartsAt,
		EndsAt:          r.EndsAt,
		Modality:        entities.Modality(r.Modality),
		HomeCollection:  r.HomeCollection,
		Location:        r.Location,
		Amounts: entities.Amounts{
			Base:      r.AmountBase,
			Surcharge: r.AmountSurcharge,
			Discount:  r.AmountDiscount,
			Total:     r.AmountTotal,
			Currency:  r.Currency,
		},
		Status:           entities.BookingStatus(r.Status),
		PaymentCompleted: r.PaymentCompleted,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}

	if err := json.Unmarshal([]byte(r.Beneficiary), &b.Beneficiary); err != nil {
		return nil, apperrors.NewInternalError("failed to decode beneficiary", err)
	}
	if err := json.Unmarshal([]byte(r.StatusHistory), &b.StatusHistory); err != nil {
		return nil, apperrors.NewInternalError("failed to decode status history", err)
	}
	if len(b.StatusHistory) == 0 || b.StatusHistory[len(b.StatusHistory)-1].Status != b.Status {
		return nil, apperrors.NewInvariantError(fmt.Sprintf("booking %s history does not end in its status", r.ID), nil)
	}
	return b, nil
}

// BookingAdapter implements the BookingRepository interface
type BookingAdapter struct {
	db sqlx.ExtContext
}

// NewBookingAdapter creates a booking adapter over a connection or transaction
func NewBookingAdapter(db sqlx.ExtContext) repositories.BookingRepository {
	return &BookingAdapter{db: db}
}

// Create creates a new booking
func (a *BookingAdapter) Create(ctx context.Context, booking *entities.Booking) error {
	row, err := toBookingRow(booking)
	if err != nil {
		return err
	}

	query, args, err := dialect.Insert(bookingsTable).Prepared(true).Rows(*row).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("booking %s already exists", booking.ID))
		}
		return apperrors.NewInternalError("failed to create booking", err)
	}
	return nil
}

// GetByID retrieves a booking by ID
func (a *BookingAdapter) GetByID(ctx context.Context, id string) (*entities.Booking, error) {
	return a.getOne(ctx, dialect.From(bookingsTable).Where(goqu.C("id").Eq(id)), id)
}

// GetForUpdate retrieves a booking by ID and locks the row
func (a *BookingAdapter) GetForUpdate(ctx context.Context, id string) (*entities.Booking, error) {
	return a.getOne(ctx, dialect.From(bookingsTable).Where(goqu.C("id").Eq(id)).ForUpdate(exp.Wait), id)
}

func (a *BookingAdapter) getOne(ctx context.Context, ds *goqu.SelectDataset, id string) (*entities.Booking, error) {
	query, args, err := ds.Prepared(true).Select(bookingColumns...).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row bookingRow
	if err := sqlx.GetContext(ctx, a.db, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("booking with id %s not found", id))
		}
		return nil, apperrors.NewInternalError("failed to get booking", err)
	}
	return row.toEntity()
}

// Update updates the mutable parts of a booking
func (a *BookingAdapter) Update(ctx context.Context, booking *entities.Booking) error {
	row, err := toBookingRow(booking)
	if err != nil {
		return err
	}

	query, args, err := dialect.Update(bookingsTable).Prepared(true).
		Set(goqu.Record{
			"scheduled_date":    row.ScheduledDate,
			"scheduled_minute":  row.ScheduledMinute,
			"starts_at":         row.StartsAt,
			"ends_at":           row.EndsAt,
			"status":            row.Status,
			"status_history":    row.StatusHistory,
			"payment_completed": row.PaymentCompleted,
			"updated_at":        row.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(booking.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update booking", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("booking with id %s not found", booking.ID))
	}
	return nil
}

// List retrieves bookings matching the filter
func (a *BookingAdapter) List(ctx context.Context, filter repositories.BookingFilter) ([]*entities.Booking, error) {
	ds := dialect.From(bookingsTable)

	if filter.Kind != "" {
		ds = ds.Where(goqu.C("kind").Eq(string(filter.Kind)))
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(filter.Status)))
	}
	if filter.ProviderID != "" {
		ds = ds.Where(goqu.C("provider_id").Eq(filter.ProviderID))
	}
	if filter.RequesterID != "" {
		ds = ds.Where(goqu.C("requester_id").Eq(filter.RequesterID))
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("starts_at").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("starts_at").Lt(*filter.To))
	}

	ds = ds.Order(goqu.C("created_at").Desc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.selectMany(ctx, ds)
}

// HasPaidOverlap reports whether a paid, capacity-holding booking overlaps the range
func (a *BookingAdapter) HasPaidOverlap(ctx context.Context, providerID, date string, start, end entities.ClockTime, excludeID string) (bool, error) {
	ds := dialect.From(bookingsTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C("provider_id").Eq(providerID),
			goqu.C("scheduled_date").Eq(date),
			goqu.C("payment_completed").IsTrue(),
			goqu.C("status").NotIn(statusValues(entities.CapacityReleasingStatuses())...),
			goqu.C("scheduled_minute").Lt(int(end)),
			goqu.L("scheduled_minute + duration_minutes").Gt(int(start)),
		)
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build overlap query", err)
	}

	var count int
	if err := sqlx.GetContext(ctx, a.db, &count, query, args...); err != nil {
		return false, apperrors.NewInternalError("failed to check overlapping bookings", err)
	}
	return count > 0, nil
}

// ListEndedScheduled returns scheduled, paid appointments without an outcome
// that ended before the cutoff
func (a *BookingAdapter) ListEndedScheduled(ctx context.Context, endedBefore time.Time, limit int) ([]*entities.Booking, error) {
	attended := dialect.From(goqu.T(outcomesTable).As("o")).
		Select(goqu.L("1")).
		Where(goqu.I("o.booking_id").Eq(goqu.I(bookingsTable + ".id")))

	ds := dialect.From(bookingsTable).
		Where(
			goqu.C("kind").Eq(string(entities.BookingKindAppointment)),
			goqu.C("status").Eq(string(entities.StatusScheduled)),
			goqu.C("payment_completed").IsTrue(),
			goqu.C("ends_at").Lte(endedBefore),
			goqu.L("NOT EXISTS ?", attended),
		).
		Order(goqu.C("ends_at").Asc()).
		Limit(uint(limit))
	return a.selectMany(ctx, ds)
}

// ListUnpaidStarted returns open, unpaid bookings whose start has passed
func (a *BookingAdapter) ListUnpaidStarted(ctx context.Context, startedBefore time.Time, limit int) ([]*entities.Booking, error) {
	ds := dialect.From(bookingsTable).
		Where(
			goqu.C("payment_completed").IsFalse(),
			goqu.C("status").NotIn(statusValues(entities.TerminalStatuses())...),
			goqu.C("starts_at").Lte(startedBefore),
		).
		Order(goqu.C("starts_at").Asc()).
		Limit(uint(limit))
	return a.selectMany(ctx, ds)
}

func (a *BookingAdapter) selectMany(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Booking, error) {
	query, args, err := ds.Prepared(true).Select(bookingColumns...).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []bookingRow
	if err := sqlx.SelectContext(ctx, a.db, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list bookings", err)
	}

	bookings := make([]*entities.Booking, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}
