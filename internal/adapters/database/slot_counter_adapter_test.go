package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

var testSlot = entities.SlotKey{ProviderID: "prov-1", Date: "2024-06-10", Time: entities.MustClock("09:00")}

func TestSlotCounterAdapter_Reserve(t *testing.T) {
	tests := []struct {
		name     string
		rows     *sqlmock.Rows
		expected bool
	}{
		{
			name:     "counter below max",
			rows:     sqlmock.NewRows([]string{"booked"}).AddRow(3),
			expected: true,
		},
		{
			name:     "counter at max returns no row",
			rows:     sqlmock.NewRows([]string{"booked"}),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectQuery(`INSERT INTO "slot_counters" .+ ON CONFLICT \(provider_id, slot_date, slot_minute\) DO UPDATE SET .+ RETURNING "booked"`).
				WillReturnRows(tt.rows)

			ok, err := NewSlotCounterAdapter(db).Reserve(context.Background(), testSlot, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSlotCounterAdapter_ReserveZeroCapacity(t *testing.T) {
	db, mock := setupMockDB(t)

	ok, err := NewSlotCounterAdapter(db).Reserve(context.Background(), testSlot, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotCounterAdapter_ReleaseNeverGoesNegative(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec(`UPDATE "slot_counters" SET "booked"=booked - 1 WHERE .+"booked" > \$4`).
		WithArgs("prov-1", "2024-06-10", 540, 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewSlotCounterAdapter(db).Release(context.Background(), testSlot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotCounterAdapter_Counts(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT "slot_minute", "booked" FROM "slot_counters"`).
		WithArgs("prov-1", "2024-06-10").
		WillReturnRows(sqlmock.NewRows([]string{"slot_minute", "booked"}).
			AddRow(540, 5).
			AddRow(570, 2))

	counts, err := NewSlotCounterAdapter(db).Counts(context.Background(), "prov-1", "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, map[entities.ClockTime]int{540: 5, 570: 2}, counts)
}
