package upstreams

import (
	"context"
	"errors"
	"time"

	"github.com/vasanthk84/oi-analyzer/models"
)

// Client is the minimal surface every upstream backend exposes
type Client interface {
	// Name returns the upstream name (e.g. "analytics", "executor")
	Name() string

	// Target returns the configured identity of this upstream
	Target() models.UpstreamTarget

	// Ping probes the upstream with a cheap request. The caller bounds the
	// probe with the context deadline; Ping must respect it.
	Ping(ctx context.Context) error
}

// PositionsSource is an upstream that can serve live positions.
// Implementations normalize at the boundary: the returned positions are
// canonical models.Position records, never raw upstream shapes.
type PositionsSource interface {
	Client

	// FetchPositions returns the current normalized position list
	FetchPositions(ctx context.Context) ([]models.Position, error)
}

// AnalyticsSource is an upstream that serves the option-chain analytics surface
type AnalyticsSource interface {
	PositionsSource

	// FetchAnalysis returns the live analysis report
	FetchAnalysis(ctx context.Context) (*models.AnalysisReport, error)

	// FetchHistoricalAnalysis returns historical daily context
	FetchHistoricalAnalysis(ctx context.Context, days int) (*models.HistoricalAnalysis, error)

	// UpdateDailyOHLC pushes daily bars into the upstream's OHLC store
	UpdateDailyOHLC(ctx context.Context, rows []models.OHLCRow) error
}

// StrangleExecutor is an upstream that can place a strangle
type StrangleExecutor interface {
	Client

	// ExecuteStrangle places both legs of a short strangle
	ExecuteStrangle(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResult, error)
}

// PositionCloser is an upstream that can close positions
type PositionCloser interface {
	Client

	// ClosePosition closes (part of) one position
	ClosePosition(ctx context.Context, req models.CloseRequest) (*models.ExecutionResult, error)

	// CloseAllPositions closes every open position
	CloseAllPositions(ctx context.Context) (*models.CloseAllResult, error)
}

// ClientConfig holds common configuration for upstream clients
type ClientConfig struct {
	// BaseURL of the upstream
	BaseURL string

	// Timeout for a single request
	Timeout time.Duration

	// RequestsPerSecond caps the call rate against the upstream; zero
	// disables the limiter
	RequestsPerSecond float64

	// Burst for the rate limiter
	Burst int

	// Headers added to every request
	Headers map[string]string
}

// DefaultClientConfig returns a sensible default configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		Headers:           make(map[string]string),
	}
}

// UpstreamError represents an error from an upstream backend
type UpstreamError struct {
	// Upstream that generated the error
	Upstream string

	// Code is the error code ("timeout", "connection", "http_error",
	// "decode_error", "rejected")
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if one was received)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// NewUpstreamError creates a new upstream error
func NewUpstreamError(upstream, code, message string, statusCode int, retryable bool, cause error) *UpstreamError {
	return &UpstreamError{
		Upstream:   upstream,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable. Only transport-level failures
// qualify; upstream business rejections (4xx) never do.
func IsRetryable(err error) bool {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Retryable
	}
	return false
}

// RetryableStatus reports whether an HTTP status should be treated as a
// transient transport failure (retryable) rather than an application error.
func RetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == 429
}
