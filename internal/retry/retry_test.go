package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("always")
	})
	require.EqualError(t, err, "always")
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	cfg := fastConfig()
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.InitialDelay = time.Hour

	err := Do(ctx, cfg, func(ctx context.Context) error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	assert.True(t, IsRetryableHTTPStatus(429))
	assert.True(t, IsRetryableHTTPStatus(503))
	assert.True(t, IsRetryableHTTPStatus(408))
	assert.False(t, IsRetryableHTTPStatus(400))
	assert.False(t, IsRetryableHTTPStatus(401))
	assert.False(t, IsRetryableHTTPStatus(200))
}

func TestWaitJitter(t *testing.T) {
	cfg := fastConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.wait(100*time.Millisecond))

	cfg.Jitter = 0.2
	for i := 0; i < 200; i++ {
		d := cfg.wait(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
	assert.Equal(t, 0.2, DefaultConfig().Jitter)
}
