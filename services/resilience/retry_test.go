package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasanthk84/oi-analyzer/services/upstreams"
	"go.uber.org/zap"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
}

func transportErr() error {
	return upstreams.NewUpstreamError("executor", "connection", "connection refused", 0, true, nil)
}

func applicationErr() error {
	return upstreams.NewUpstreamError("executor", "rejected", "insufficient margin", 422, false, nil)
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	invoked := 0
	err := Retry(context.Background(), fastRetryConfig(), zap.NewNop(), func(context.Context) error {
		invoked++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, invoked)
}

func TestRetry_RetriesTransportFailures(t *testing.T) {
	invoked := 0
	err := Retry(context.Background(), fastRetryConfig(), zap.NewNop(), func(context.Context) error {
		invoked++
		if invoked < 3 {
			return transportErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, invoked)
}

func TestRetry_DoesNotRetryApplicationErrors(t *testing.T) {
	appErr := applicationErr()

	invoked := 0
	err := Retry(context.Background(), fastRetryConfig(), zap.NewNop(), func(context.Context) error {
		invoked++
		return appErr
	})

	assert.Equal(t, 1, invoked, "application errors must surface immediately")
	assert.Equal(t, appErr, err)
}

func TestRetry_ExhaustionReturnsLastErrorUnchanged(t *testing.T) {
	errs := []error{transportErr(), transportErr(), transportErr()}

	invoked := 0
	err := Retry(context.Background(), fastRetryConfig(), zap.NewNop(), func(context.Context) error {
		e := errs[invoked]
		invoked++
		return e
	})

	assert.Equal(t, 3, invoked)
	assert.Equal(t, errs[2], err, "the last error must propagate unchanged")
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())

	invoked := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, cfg, zap.NewNop(), func(context.Context) error {
			invoked++
			return transportErr()
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, invoked, "cancellation must stop further attempts")
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetry_ZeroMaxAttemptsUsesDefault(t *testing.T) {
	invoked := 0
	_ = Retry(context.Background(), RetryConfig{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, zap.NewNop(), func(context.Context) error {
		invoked++
		return transportErr()
	})

	assert.Equal(t, DefaultRetryConfig().MaxAttempts, invoked)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"first retry", 0, 250 * time.Millisecond},
		{"second retry", 1, 500 * time.Millisecond},
		{"third retry", 2, time.Second},
		{"capped", 3, 2 * time.Second},
		{"deep attempt stays capped", 10, 2 * time.Second},
		{"overflow guard", 63, 2 * time.Second},
		{"negative attempt", -1, 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Backoff(cfg, tt.attempt))
		})
	}
}
