package providers

import (
	"context"
	"time"
)

// Locker provides a cluster-wide lease on a key.
type Locker interface {
	// Acquire returns a release func when the lease was obtained, or
	// ok=false when another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// IdempotencyStore remembers processed keys for a period.
type IdempotencyStore interface {
	// MarkSeen records key and reports whether this is its first sighting.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget removes key so a failed delivery can be retried.
	Forget(ctx context.Context, key string) error
}
