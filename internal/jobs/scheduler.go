package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
)

const sweepLockKey = "carebook:locks:reconciliation"

// Sweeper runs the reconciliation passes.
type Sweeper interface {
	SweepNoShows(ctx context.Context) (int, error)
	SweepUnpaid(ctx context.Context) (int, error)
}

// Scheduler runs reconciliation sweeps on a cron schedule. Only the
// instance holding the lock sweeps in a given tick.
type Scheduler struct {
	sweeper  Sweeper
	locker   providers.Locker
	spec     string
	lockTTL  time.Duration
	location *time.Location
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler for spec, a standard cron expression
// or descriptor such as "@every 1m".
func NewScheduler(sweeper Sweeper, locker providers.Locker, spec string, lockTTL time.Duration, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &Scheduler{
		sweeper:  sweeper,
		locker:   locker,
		spec:     spec,
		lockTTL:  lockTTL,
		location: loc,
		logger:   log.With().Str("component", "reconciliation").Logger(),
	}
}

// Run blocks until ctx is cancelled, waiting for a running sweep to finish
// before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}

	s.logger.Info().Str("schedule", s.spec).Msg("Starting reconciliation scheduler")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("Reconciliation scheduler stopped")
	return nil
}

// RunOnce runs both sweeps if the lock can be taken. It reports whether
// this instance ran them.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	release, ok, err := s.locker.Acquire(ctx, sweepLockKey, s.lockTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to acquire sweep lock")
		return false
	}
	if !ok {
		s.logger.Debug().Msg("Sweep lock held elsewhere, skipping")
		return false
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release sweep lock")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	start := time.Now()
	noShows, err := s.sweeper.SweepNoShows(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("moved", noShows).Msg("No-show sweep failed")
	}
	expired, err := s.sweeper.SweepUnpaid(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("moved", expired).Msg("Unpaid sweep failed")
	}

	if noShows > 0 || expired > 0 {
		s.logger.Info().
			Int("no_shows", noShows).
			Int("unpaid_expired", expired).
			Dur("duration", time.Since(start)).
			Msg("Reconciliation sweep completed")
	}
	return true
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
