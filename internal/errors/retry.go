package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"finbench/internal/logging"
)

// RetryConfig bounds exponential backoff. MaxAttempts counts retries after
// the first call.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	JitterFactor float64       `mapstructure:"jitter_factor" yaml:"jitter_factor"`
}

// DefaultRetryConfig retries three times from 1s up to 30s with ±25% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out.
func Retry(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error) error {
	_, err := RetryWithResultAndLog(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, nil)
	return err
}

// RetryWithResult is Retry for functions returning a value.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithResultAndLog(ctx, config, fn, nil)
}

// RetryWithResultAndLog is RetryWithResult with attempt logging. Only
// transient errors are retried; exhaustion wraps the last error.
func RetryWithResultAndLog[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)
	var zero T
	attempts := max(config.MaxAttempts, 0) + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("succeeded on attempt %d/%d", attempt, attempts)
			}
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := backoff(attempt-1, config)
		logger.Debug("attempt %d/%d failed (%v), retrying in %s", attempt, attempts, err, delay.Round(time.Millisecond))
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	logger.Warn("giving up after %d attempts: %v", attempts, lastErr)
	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// backoff returns BaseDelay·2^n capped at MaxDelay, then jittered.
func backoff(n int, config RetryConfig) time.Duration {
	delay := config.BaseDelay << min(n, 30)
	if delay <= 0 || (config.MaxDelay > 0 && delay > config.MaxDelay) {
		delay = config.MaxDelay
	}
	if config.JitterFactor <= 0 {
		return delay
	}
	spread := float64(delay) * config.JitterFactor
	jittered := time.Duration(float64(delay) + (rand.Float64()*2-1)*spread)
	if jittered <= 0 {
		return config.BaseDelay
	}
	if config.MaxDelay > 0 && jittered > config.MaxDelay {
		return config.MaxDelay
	}
	return jittered
}
