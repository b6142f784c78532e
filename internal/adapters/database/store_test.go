package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/clients/postgres"
)

func TestStore_WithinTxCommits(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(postgres.NewFromDB(db.DB))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "slot_counters"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Store) error {
		return tx.SlotCounters().Release(ctx, testSlot)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(postgres.NewFromDB(db.DB))

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("refund failed")
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Store) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
