// Package bootstrap wires configuration into adapters and services for the
// binaries under cmd/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carebook/backend/internal/adapters/cache"
	"github.com/zatekoja/carebook/backend/internal/adapters/database"
	"github.com/zatekoja/carebook/backend/internal/adapters/events"
	"github.com/zatekoja/carebook/backend/internal/adapters/memory"
	"github.com/zatekoja/carebook/backend/internal/adapters/providers/catalog"
	"github.com/zatekoja/carebook/backend/internal/adapters/providers/payments"
	"github.com/zatekoja/carebook/backend/internal/adapters/reminders"
	"github.com/zatekoja/carebook/backend/internal/adapters/storage"
	"github.com/zatekoja/carebook/backend/internal/api/routes"
	"github.com/zatekoja/carebook/backend/internal/application/services"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/zatekoja/carebook/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/pkg/config"
)

// Infra holds the connections shared by the services.
type Infra struct {
	Store     repositories.UnitOfWork
	Redis     *redisclient.Client
	Publisher providers.EventPublisher
	Locker    providers.Locker
	Seen      providers.IdempotencyStore

	pg      *postgres.Client
	closers []func() error
}

// OpenInfra connects the store, Redis and the event publisher. Redis is
// optional; without it locks and dedupe fall back to this process only.
func OpenInfra(ctx context.Context, cfg *config.Config) (*Infra, error) {
	infra := &Infra{}
	var err error

	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("STORE_DRIVER=memory, bookings are not persisted")
		infra.Store = memory.NewStore()
	default:
		var pgClient *postgres.Client
		pgClient, err = postgres.NewClient(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
		}
		infra.pg = pgClient
		infra.closers = append(infra.closers, pgClient.Close)
		if cfg.Database.AutoMigrate {
			if err := database.MigrateUp(ctx, pgClient.DB().DB); err != nil {
				_ = infra.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations applied")
		}
		infra.Store = database.NewStore(pgClient)
	}

	var redisClient *redisclient.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable")
		}
	}
	if redisClient == nil {
		// Continue without Redis; single-instance deployments still work.
		log.Warn().Msg("Using in-process locks and webhook dedupe")
		local := cache.NewLocalAdapter(100_000, cfg.Payments.WebhookDedupeTTL)
		infra.Locker, infra.Seen = local, local
	} else {
		infra.Redis = redisClient
		infra.closers = append(infra.closers, redisClient.Close)
		adapter := cache.NewRedisAdapter(redisClient)
		infra.Locker, infra.Seen = adapter, adapter
	}

	switch {
	case cfg.Events.AMQPURL != "":
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		infra.Publisher = publisher
	case infra.Redis != nil:
		infra.Publisher = events.NewRedisEventBus(infra.Redis)
	default:
		log.Warn().Msg("No event transport configured, booking events are only logged")
		infra.Publisher = events.NewLogPublisher()
	}
	infra.closers = append(infra.closers, infra.Publisher.Close)

	return infra, nil
}

// HealthChecks returns a ping per connected backend.
func (i *Infra) HealthChecks() map[string]routes.HealthCheck {
	checks := make(map[string]routes.HealthCheck)
	if i.pg != nil {
		checks["postgres"] = i.pg.Ping
	}
	if i.Redis != nil {
		checks["redis"] = i.Redis.Ping
	}
	return checks
}

// AsynqOpt returns the asynq connection for the configured Redis.
func AsynqOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// Close releases connections in reverse order of opening.
func (i *Infra) Close() error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

// Services is the application layer built on Infra.
type Services struct {
	Bookings       *services.BookingService
	Confirmations  *services.PaymentConfirmationService
	Reconciliation *services.ReconciliationService
	Schedules      *services.ScheduleService
	Reminders      providers.ReminderScheduler
}

// BuildServices wires gateway, catalog, artifact storage and reminders
// into the booking services.
func BuildServices(cfg *config.Config, infra *Infra, metrics *observability.Metrics) (*Services, error) {
	slots, err := services.SlotConfigFrom(cfg.Booking)
	if err != nil {
		return nil, err
	}
	loc := cfg.Booking.Location()

	gateway, parser, err := payments.NewPaymentGateway(cfg.Payments, metrics)
	if err != nil {
		return nil, err
	}
	if cfg.Payments.DirectSigningSecret == "" {
		log.Warn().Msg("PAYMENT_SIGNING_SECRET not set, direct payment confirmation is disabled")
	}

	var artifacts providers.ArtifactStore
	if cfg.Storage.CloudinaryURL != "" {
		cld, err := storage.NewCloudinaryStore(cfg.Storage.CloudinaryURL, cfg.Storage.Folder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
		}
		artifacts = cld
	} else {
		log.Warn().Msg("CLOUDINARY_URL not set, outcome artifacts are kept in memory")
		artifacts = storage.NewMemoryStore()
	}

	var reminderScheduler providers.ReminderScheduler = reminders.NoopScheduler{}
	if cfg.Reminders.Enabled && infra.Redis != nil {
		scheduler := reminders.NewScheduler(AsynqOpt(cfg), cfg.Reminders.Queue)
		infra.closers = append(infra.closers, scheduler.Close)
		reminderScheduler = scheduler
	} else if cfg.Reminders.Enabled {
		log.Warn().Msg("Reminders need Redis, reminders are disabled")
	}

	notifications := services.NewNotificationService(infra.Publisher)
	allocator := services.NewSlotAllocator(slots, infra.Store, metrics)
	cancellations := services.NewCancellationService(infra.Store, gateway, allocator, reminderScheduler,
		notifications, metrics, cfg.Booking.CancellationCutoff)

	bookings := services.NewBookingService(services.BookingServiceDeps{
		Store:         infra.Store,
		Catalog:       catalog.NewCatalogProvider(cfg, metrics),
		Resolver:      services.NewAvailabilityResolver(loc),
		Allocator:     allocator,
		Binder:        services.NewPaymentBinder(gateway),
		Cancellations: cancellations,
		Artifacts:     artifacts,
		Reminders:     reminderScheduler,
		Notifications: notifications,
		Metrics:       metrics,
	}, services.BookingSettings{
		Location:           loc,
		Currency:           cfg.Payments.Currency,
		CancellationCutoff: cfg.Booking.CancellationCutoff,
	})

	return &Services{
		Bookings: bookings,
		Confirmations: services.NewPaymentConfirmationService(infra.Store, parser, gateway, infra.Seen,
			notifications, metrics, services.PaymentConfirmationConfig{
				SigningSecret: cfg.Payments.DirectSigningSecret,
				DedupeTTL:     cfg.Payments.WebhookDedupeTTL,
			}),
		Reconciliation: services.NewReconciliationService(infra.Store, gateway, allocator, reminderScheduler,
			notifications, metrics, cfg.Booking.NoShowGrace),
		Schedules: services.NewScheduleService(infra.Store),
		Reminders: reminderScheduler,
	}, nil
}

// ShutdownTimeout bounds graceful shutdown of the binaries.
const ShutdownTimeout = 10 * time.Second
