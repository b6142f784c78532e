package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	MaxTotalTimeout time.Duration
}

// DefaultConfig returns a default retry configuration with 1 minute max timeout
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     10,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 60 * time.Second,
	}
}

// DeliveryConfig is used for best-effort notification and messaging delivery.
func DeliveryConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 10 * time.Second,
	}
}

// Permanent wraps err so that Do stops retrying immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (cfg Config) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialDelay
	exp.MaxInterval = cfg.MaxDelay
	exp.Multiplier = cfg.BackoffFactor
	exp.RandomizationFactor = 0.1
	// The total budget is enforced through ctx.
	exp.MaxElapsedTime = 0

	var b backoff.BackOff = exp
	if cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Do executes the given function with exponential backoff retry logic
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoWithLog(ctx, cfg, "", fn, nil)
}

// DoWithLog executes the function with retry and logs each failed attempt
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	if cfg.MaxTotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxTotalTimeout)
		defer cancel()
	}

	attempt := 0
	var lastErr error
	op := func() error {
		attempt++
		lastErr = fn()
		return lastErr
	}
	notify := func(err error, next time.Duration) {
		if logFn != nil {
			logFn(attempt, err, next)
		}
	}

	err := backoff.RetryNotify(op, cfg.policy(ctx), notify)
	if err == nil {
		return nil
	}

	prefix := "retry"
	if serviceName != "" {
		prefix = serviceName
	}
	if ctx.Err() != nil && lastErr != nil && err == ctx.Err() {
		return fmt.Errorf("%s: aborted after %d attempts: %w (last error: %v)", prefix, attempt, ctx.Err(), lastErr)
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", prefix, attempt, err)
}
