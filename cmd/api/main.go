package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carebook/backend/internal/api/handlers"
	"github.com/zatekoja/carebook/backend/internal/api/middleware"
	"github.com/zatekoja/carebook/backend/internal/api/routes"
	"github.com/zatekoja/carebook/backend/internal/bootstrap"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/pkg/config"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-api", cfg.Env)

	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
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
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if cfg.Env != "development" {
			log.Fatal().Msg("JWT_SECRET must be set outside development")
		}
		log.Warn().Msg("JWT_SECRET not set, using an insecure development secret")
		jwtSecret = "development-only-secret"
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

	signatureHeader := "Stripe-Signature"
	if cfg.Payments.Provider != "stripe" {
		signatureHeader = "X-Webhook-Signature"
	}

	router := routes.NewRouter(routes.RouterDeps{
		BookingHandler:  handlers.NewBookingHandler(svc.Bookings),
		AdminHandler:    handlers.NewAdminHandler(svc.Bookings),
		PaymentHandler:  handlers.NewPaymentHandler(svc.Confirmations, signatureHeader),
		ScheduleHandler: handlers.NewScheduleHandler(svc.Schedules),
		Auth:            middleware.NewAuthenticator(jwtSecret),
		RateLimiter:     middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Payments:        infra.Store.Payments(),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Metrics:         metrics,
		HealthChecks:    infra.HealthChecks(),
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}
