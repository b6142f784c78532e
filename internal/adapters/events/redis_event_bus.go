package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/carebook/backend/internal/infrastructure/clients/redis"
)

// RedisEventBus publishes booking events over Redis Pub/Sub, once on the
// shared bookings channel and once on the provider's channel.
type RedisEventBus struct {
	client *redisclient.Client
}

// NewRedisEventBus creates a new Redis-based event publisher
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	return &RedisEventBus{client: client}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, event *entities.BookingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := b.client.Client().Pipeline()
	pipe.Publish(ctx, providers.EventChannelBookings, data)
	if event.ProviderID != "" {
		pipe.Publish(ctx, providers.GetProviderChannel(event.ProviderID), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Str("booking_id", event.BookingID).
		Msg("Published booking event")
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisEventBus) Close() error {
	return nil
}

var _ providers.EventPublisher = (*RedisEventBus)(nil)
