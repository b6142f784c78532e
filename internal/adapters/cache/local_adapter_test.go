package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAdapter_LockIsExclusiveUntilReleased(t *testing.T) {
	a := NewLocalAdapter(10, time.Hour)
	ctx := context.Background()

	release, ok, err := a.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = a.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, _ = a.Acquire(ctx, "sweep", time.Minute)
	assert.True(t, ok)
}

func TestLocalAdapter_LockExpires(t *testing.T) {
	a := NewLocalAdapter(10, time.Hour)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	ctx := context.Background()

	staleRelease, ok, _ := a.Acquire(ctx, "sweep", time.Minute)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = a.Acquire(ctx, "sweep", time.Minute)
	require.True(t, ok)

	// The expired holder must not free the new holder's lease.
	require.NoError(t, staleRelease(ctx))
	_, ok, _ = a.Acquire(ctx, "sweep", time.Minute)
	assert.False(t, ok)
}

func TestLocalAdapter_MarkSeen(t *testing.T) {
	a := NewLocalAdapter(10, time.Hour)
	ctx := context.Background()

	first, err := a.MarkSeen(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, _ := a.MarkSeen(ctx, "evt_1", time.Hour)
	assert.False(t, again)

	require.NoError(t, a.Forget(ctx, "evt_1"))
	retried, _ := a.MarkSeen(ctx, "evt_1", time.Hour)
	assert.True(t, retried)
}
