package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/adapters/cache"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) SweepNoShows(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSweeper) SweepUnpaid(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestScheduler_RunOnce(t *testing.T) {
	t.Run("runs both sweeps", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("SweepNoShows", mock.Anything).Return(2, nil).Once()
		sweeper.On("SweepUnpaid", mock.Anything).Return(1, nil).Once()

		s := NewScheduler(sweeper, cache.NewLocalAdapter(10, time.Minute), "@every 1m", time.Minute, nil)
		assert.True(t, s.RunOnce(context.Background()))
		sweeper.AssertExpectations(t)
	})

	t.Run("a failing sweep does not stop the other", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("SweepNoShows", mock.Anything).Return(0, errors.New("db down")).Once()
		sweeper.On("SweepUnpaid", mock.Anything).Return(3, nil).Once()

		s := NewScheduler(sweeper, cache.NewLocalAdapter(10, time.Minute), "@every 1m", time.Minute, nil)
		assert.True(t, s.RunOnce(context.Background()))
		sweeper.AssertExpectations(t)
	})

	t.Run("skips while another instance holds the lock", func(t *testing.T) {
		locker := cache.NewLocalAdapter(10, time.Minute)
		release, ok, err := locker.Acquire(context.Background(), sweepLockKey, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		sweeper := new(MockSweeper)
		s := NewScheduler(sweeper, locker, "@every 1m", time.Minute, nil)
		assert.False(t, s.RunOnce(context.Background()))
		sweeper.AssertNotCalled(t, "SweepNoShows", mock.Anything)

		require.NoError(t, release(context.Background()))
		sweeper.On("SweepNoShows", mock.Anything).Return(0, nil)
		sweeper.On("SweepUnpaid", mock.Anything).Return(0, nil)
		assert.True(t, s.RunOnce(context.Background()))
	})
}

func TestScheduler_RunRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(new(MockSweeper), cache.NewLocalAdapter(10, time.Minute), "every minute", time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Error(t, s.Run(ctx))
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("SweepNoShows", mock.Anything).Return(0, nil).Maybe()
	sweeper.On("SweepUnpaid", mock.Anything).Return(0, nil).Maybe()

	s := NewScheduler(sweeper, cache.NewLocalAdapter(10, time.Minute), "@every 1s", time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
