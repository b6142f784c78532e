package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carebook/backend/internal/adapters/reminders"
	"github.com/zatekoja/carebook/backend/internal/bootstrap"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/notifications"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/internal/jobs"
	"github.com/zatekoja/carebook/backend/pkg/config"
	"golang.org/x/sync/errgroup"
)

// The worker runs the reconciliation sweeps and delivers reminders.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-worker", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	infra, err := bootstrap.OpenInfra(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize infrastructure")
	}
	defer func() {
		if err := infra.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing connections")
		}
	}()

	svc, err := bootstrap.BuildServices(cfg, infra, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	g, gctx := errgroup.WithContext(ctx)

	scheduler := jobs.NewScheduler(svc.Reconciliation, infra.Locker, cfg.Sweeps.Schedule, cfg.Sweeps.LockTTL, cfg.Booking.Location())
	g.Go(func() error { return scheduler.Run(gctx) })

	if cfg.Reminders.Enabled && infra.Redis != nil {
		var sender providers.MessageSender
		whatsapp, err := notifications.NewWhatsAppCloudSender(cfg.Messaging)
		if err != nil {
			log.Warn().Err(err).Msg("WhatsApp not configured, reminders are logged only")
			sender = notifications.LogSender{}
		} else {
			sender = whatsapp
		}

		server := asynq.NewServer(bootstrap.AsynqOpt(cfg), asynq.Config{
			Concurrency: cfg.Reminders.Concurrency,
			Queues:      map[string]int{cfg.Reminders.Queue: 1},
		})
		mux := asynq.NewServeMux()
		reminders.NewHandler(infra.Store.Bookings(), sender).Register(mux)

		g.Go(func() error {
			log.Info().Str("queue", cfg.Reminders.Queue).Msg("Reminder worker starting")
			if err := server.Start(mux); err != nil {
				return err
			}
			<-gctx.Done()
			server.Shutdown()
			return nil
		})
	} else {
		log.Warn().Msg("Reminder worker disabled")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
		return
	}
	log.Info().Msg("Worker stopped")
}
