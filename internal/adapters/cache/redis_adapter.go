package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/carebook/backend/internal/infrastructure/clients/redis"
)

const (
	lockPrefix       = "lock:"
	idempotentPrefix = "seen:"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisAdapter implements Locker and IdempotencyStore on Redis SET NX.
type RedisAdapter struct {
	client *redisclient.Client
}

// NewRedisAdapter creates a new Redis coordination adapter
func NewRedisAdapter(client *redisclient.Client) *RedisAdapter {
	return &RedisAdapter{
		client: client,
	}
}

// Acquire takes the lease on key for ttl.
func (a *RedisAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := a.client.Client().SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, a.client.Client(), []string{lockPrefix + key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// MarkSeen records key and reports whether it was new
func (a *RedisAdapter) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := a.client.Client().SetNX(ctx, idempotentPrefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", key, err)
	}
	return ok, nil
}

// Forget removes a value recorded by MarkSeen
func (a *RedisAdapter) Forget(ctx context.Context, key string) error {
	if err := a.client.Client().Del(ctx, idempotentPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

var (
	_ providers.Locker           = (*RedisAdapter)(nil)
	_ providers.IdempotencyStore = (*RedisAdapter)(nil)
)
