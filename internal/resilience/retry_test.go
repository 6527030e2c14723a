package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     1.5,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastRetry(3), "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &TransientError{Err: eris.New("status 503")}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetry(3), "test", func(context.Context) (string, error) {
		calls++
		return "", eris.New("status 400: bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetry(3), "test", func(context.Context) (string, error) {
		calls++
		return "", &TransientError{Err: eris.New("timeout")}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, fastRetry(5), "test", func(context.Context) (string, error) {
		calls++
		cancel()
		return "", &TransientError{Err: eris.New("timeout")}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
	}
	assert.Equal(t, 100*time.Millisecond, backoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, backoff(1, cfg))
	assert.Equal(t, time.Second, backoff(10, cfg))
}
