package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
)

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	key := entities.SlotKey{ProviderID: "p", Date: "2024-06-10", Time: 540}

	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		ok, err := tx.SlotCounters().Reserve(ctx, key, 5)
		require.True(t, ok)
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)

	counts, err := store.SlotCounters().Counts(ctx, "p", "2024-06-10")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStore_ConcurrentReservationsRespectMax(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	key := entities.SlotKey{ProviderID: "p", Date: "2024-06-10", Time: 540}

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
				ok, err := tx.SlotCounters().Reserve(ctx, key, 5)
				if err != nil || !ok {
					return errors.New("full")
				}
				mu.Lock()
				granted++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
	counts, _ := store.SlotCounters().Counts(ctx, "p", "2024-06-10")
	assert.Equal(t, 5, counts[540])
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	b := &entities.Booking{ID: "b-1", Kind: entities.BookingKindAppointment, ScheduledDate: "2024-06-10"}
	b.Open(entities.SystemActor, "", time.Now())
	require.NoError(t, store.Bookings().Create(ctx, b))

	got, err := store.Bookings().GetByID(ctx, "b-1")
	require.NoError(t, err)
	require.NoError(t, got.Transition(entities.StatusCancelled, entities.SystemActor, "", time.Now()))

	again, _ := store.Bookings().GetByID(ctx, "b-1")
	assert.Equal(t, entities.StatusScheduled, again.Status)
	assert.Len(t, again.StatusHistory, 1)
}
