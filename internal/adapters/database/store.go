package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// repoSet builds every repository over one connection or transaction.
type repoSet struct {
	db sqlx.ExtContext
}

func (r repoSet) Bookings() repositories.BookingRepository {
	return NewBookingAdapter(r.db)
}

func (r repoSet) Payments() repositories.PaymentRepository {
	return NewPaymentAdapter(r.db)
}

func (r repoSet) Schedules() repositories.ScheduleRepository {
	return NewScheduleAdapter(r.db)
}

func (r repoSet) SlotCounters() repositories.SlotCounterRepository {
	return NewSlotCounterAdapter(r.db)
}

func (r repoSet) Entitlements() repositories.EntitlementRepository {
	return NewEntitlementAdapter(r.db)
}

func (r repoSet) Outcomes() repositories.OutcomeRepository {
	return NewOutcomeAdapter(r.db)
}

// Store is the PostgreSQL unit of work
type Store struct {
	repoSet
	client *postgres.Client
}

// NewStore creates a PostgreSQL backed store
func NewStore(client *postgres.Client) *Store {
	return &Store{repoSet: repoSet{db: client.DB()}, client: client}
}

// WithinTx runs fn in a transaction and commits when fn returns nil
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) (err error) {
	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, repoSet{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", fmt.Errorf("commit: %w", err))
	}
	return nil
}

var _ repositories.UnitOfWork = (*Store)(nil)
