package resilience

import (
	"context"
	"time"

	"github.com/vasanthk84/oi-analyzer/services/upstreams"
	"go.uber.org/zap"
)

// RetryConfig holds configuration for retry-with-backoff.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Retry runs op up to MaxAttempts times, sleeping a capped exponential
// backoff between attempts. Only transport-level failures are retried
// (upstreams.IsRetryable); application errors surface immediately. On
// exhaustion the last error is returned unchanged. Compose inside a breaker:
// the breaker then sees one failure per exhausted logical call, so a single
// transient blip never trips it.
func Retry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, op func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !upstreams.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := Backoff(cfg, attempt)
		logger.Debug("transient upstream failure, backing off",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// Backoff returns the wait before the attempt after the given one:
// min(BaseDelay * 2^attempt, MaxDelay). Negative attempts get BaseDelay.
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	if attempt < 0 {
		return cfg.BaseDelay
	}

	// 2^30 already overshoots any sane MaxDelay; cap early to avoid overflow.
	if attempt > 30 {
		return cfg.MaxDelay
	}

	backoff := cfg.BaseDelay * time.Duration(1<<attempt)

	if backoff > cfg.MaxDelay {
		return cfg.MaxDelay
	}

	return backoff
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
