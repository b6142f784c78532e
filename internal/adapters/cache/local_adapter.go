package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
)

// LocalAdapter is the single-process counterpart of RedisAdapter, used when
// Redis is not configured.
type LocalAdapter struct {
	mu    sync.Mutex
	locks map[string]time.Time
	seen  *expirable.LRU[string, struct{}]
	now   func() time.Time
}

// NewLocalAdapter keeps at most size idempotency keys for ttl.
func NewLocalAdapter(size int, ttl time.Duration) *LocalAdapter {
	return &LocalAdapter{
		locks: make(map[string]time.Time),
		seen:  expirable.NewLRU[string, struct{}](size, nil, ttl),
		now:   time.Now,
	}
}

func (a *LocalAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if until, held := a.locks[key]; held && now.Before(until) {
		return nil, false, nil
	}
	expiry := now.Add(ttl)
	a.locks[key] = expiry

	release := func(context.Context) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.locks[key].Equal(expiry) {
			delete(a.locks, key)
		}
		return nil
	}
	return release, true, nil
}

// MarkSeen ignores ttl; entries expire after the adapter-wide ttl.
func (a *LocalAdapter) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seen.Contains(key) {
		return false, nil
	}
	a.seen.Add(key, struct{}{})
	return true, nil
}

func (a *LocalAdapter) Forget(ctx context.Context, key string) error {
	a.seen.Remove(key)
	return nil
}

var (
	_ providers.Locker           = (*LocalAdapter)(nil)
	_ providers.IdempotencyStore = (*LocalAdapter)(nil)
)
