// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"
)

// Config holds configuration for retry logic.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each wait by up to this fraction of the delay, in
	// either direction. 0 disables it.
	Jitter float64

	// ShouldRetry decides whether an error is transient.
	// Nil retries every error except context cancellation.
	ShouldRetry func(error) bool
}

// DefaultConfig returns a sensible default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Do executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, or MaxAttempts is reached.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.wait(delay)):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

// wait returns delay spread by the configured jitter.
func (c Config) wait(delay time.Duration) time.Duration {
	if c.Jitter <= 0 || delay <= 0 {
		return delay
	}
	j := c.Jitter
	if j > 1 {
		j = 1
	}
	spread := (rand.Float64()*2 - 1) * j
	return time.Duration(float64(delay) * (1 + spread))
}

// IsRetryableHTTPStatus returns true if the HTTP status code is retryable.
func IsRetryableHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		statusCode >= 500
}
