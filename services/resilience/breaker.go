package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/vasanthk84/oi-analyzer/services"
	"go.uber.org/zap"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, reject requests
	StateHalfOpen              // Single probe in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds configuration for creating a circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker is a single-trial-recovery circuit breaker guarding one upstream.
// Closed passes calls through and counts consecutive failures; hitting the
// threshold opens the circuit until the reset timeout elapses. The first call
// after the timeout becomes the single HalfOpen probe: its success closes the
// circuit, its failure re-arms the open window. While the probe is in flight
// every other caller is rejected, so at most one request reaches a suspect
// upstream. Thread-safe for concurrent use.
type Breaker struct {
	name   string
	config BreakerConfig
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	failures    int
	nextAttempt time.Time
}

// NewBreaker creates a circuit breaker for the named upstream.
func NewBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	return &Breaker{
		name:   name,
		config: cfg,
		logger: logger,
		state:  StateClosed,
	}
}

// Name returns the upstream name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs op through the breaker. When the circuit is open (or the
// single HalfOpen probe is already in flight) it returns a breaker-open
// domain error without invoking op. Any error from op counts as a failure,
// transport or not — callers that want application errors excluded must
// pre-filter.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}

	b.recordSuccess()
	return nil
}

// allow decides whether a call may proceed, lazily entering HalfOpen when the
// open window has elapsed. Exactly one caller wins the HalfOpen transition.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		now := time.Now()
		if now.Before(b.nextAttempt) {
			return b.rejection()
		}
		// Reset window elapsed: this caller becomes the probe.
		b.state = StateHalfOpen
		b.logger.Info("circuit breaker transitioning to HALF_OPEN",
			zap.String("breaker", b.name))
		return nil

	case StateHalfOpen:
		// Probe already in flight, nobody else gets through.
		return b.rejection()

	default:
		return b.rejection()
	}
}

// recordSuccess resets the consecutive-failure count and closes the circuit
// if a probe just succeeded. Any success from any state zeroes the counter.
func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.logger.Info("circuit breaker CLOSED (probe recovered)",
			zap.String("breaker", b.name))
	}
	b.state = StateClosed
	b.failures = 0
}

// recordFailure counts a failure, tripping the circuit at the threshold or
// re-arming the open window when the HalfOpen probe fails.
func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.trip("failures exceeded threshold")
		}

	case StateHalfOpen:
		b.trip("probe failed")

	case StateOpen:
		// A straggler from a call admitted before the trip; window already armed.
	}
}

// trip opens the circuit and arms the next-attempt window. Caller holds the lock.
func (b *Breaker) trip(reason string) {
	b.state = StateOpen
	b.nextAttempt = time.Now().Add(b.config.ResetTimeout)
	b.logger.Warn("circuit breaker OPEN",
		zap.String("breaker", b.name),
		zap.String("reason", reason),
		zap.Int("consecutive_failures", b.failures),
		zap.Time("next_attempt", b.nextAttempt))
}

// rejection builds the breaker-open error. Caller holds the lock.
func (b *Breaker) rejection() error {
	return services.NewDomainError(services.ErrorTypeBreakerOpen, "circuit breaker open", nil).
		WithDetail("upstream", b.name).
		WithDetail("next_attempt", b.nextAttempt)
}

// State returns the current state (for monitoring).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset forces the breaker to closed state (for testing/admin).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.logger.Info("circuit breaker RESET", zap.String("breaker", b.name))
}
