package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound              ErrorType = "not_found"
	ErrorTypeValidation            ErrorType = "validation"
	ErrorTypeUnauthorized          ErrorType = "unauthorized"
	ErrorTypeTransport             ErrorType = "transport"
	ErrorTypeBreakerOpen           ErrorType = "breaker_open"
	ErrorTypeUpstreamApplication   ErrorType = "upstream_application"
	ErrorTypeCapabilityUnavailable ErrorType = "capability_unavailable"
	ErrorTypeAllSourcesExhausted   ErrorType = "all_sources_exhausted"
	ErrorTypeInternal              ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrTradeNotFound    = NewDomainError(ErrorTypeNotFound, "trade not found", nil)
	ErrUpstreamNotFound = NewDomainError(ErrorTypeNotFound, "upstream not found", nil)
	ErrSnapshotNotFound = NewDomainError(ErrorTypeNotFound, "no positions snapshot available", nil)

	// Validation Errors
	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidStrikes  = NewDomainError(ErrorTypeValidation, "invalid strike pair", nil)
	ErrInvalidQuantity = NewDomainError(ErrorTypeValidation, "quantity must be a positive lot multiple", nil)
	ErrInvalidSymbol   = NewDomainError(ErrorTypeValidation, "invalid trading symbol", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)

	// Transport Errors
	ErrUpstreamTimeout     = NewDomainError(ErrorTypeTransport, "upstream request timed out", nil)
	ErrUpstreamUnreachable = NewDomainError(ErrorTypeTransport, "upstream unreachable", nil)

	// Breaker Errors
	ErrBreakerOpen = NewDomainError(ErrorTypeBreakerOpen, "circuit breaker open", nil)

	// Upstream Application Errors
	ErrUpstreamRejected = NewDomainError(ErrorTypeUpstreamApplication, "upstream rejected the request", nil)
	ErrMalformedPayload = NewDomainError(ErrorTypeUpstreamApplication, "upstream returned a malformed payload", nil)

	// Capability Errors
	ErrExecutionUnavailable    = NewDomainError(ErrorTypeCapabilityUnavailable, "no enabled upstream supports execution", nil)
	ErrPositionMgmtUnavailable = NewDomainError(ErrorTypeCapabilityUnavailable, "no enabled upstream supports position management", nil)
	ErrAnalyticsUnavailable    = NewDomainError(ErrorTypeCapabilityUnavailable, "no enabled upstream supports analytics", nil)

	// Exhaustion Errors
	ErrAllSourcesExhausted = NewDomainError(ErrorTypeAllSourcesExhausted, "all position sources failed including cache", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrJournalError      = NewDomainError(ErrorTypeInternal, "journal operation failed", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnauthorized
	}
	return false
}

// IsTransportError checks if an error is a transport-level upstream error
func IsTransportError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeTransport
	}
	return false
}

// IsBreakerOpenError checks if an error means the breaker skipped the call
func IsBreakerOpenError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeBreakerOpen
	}
	return false
}

// IsUpstreamApplicationError checks if an error is an upstream business failure
func IsUpstreamApplicationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUpstreamApplication
	}
	return false
}

// IsCapabilityUnavailableError checks if an error means no upstream can serve the operation
func IsCapabilityUnavailableError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCapabilityUnavailable
	}
	return false
}

// IsAllSourcesExhaustedError checks if every position source failed, cache included
func IsAllSourcesExhaustedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeAllSourcesExhausted
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapTransport wraps an error as a transport error
func WrapTransport(message string, err error) error {
	return NewDomainError(ErrorTypeTransport, message, err)
}

// WrapUpstreamApplication wraps an error as an upstream business failure
func WrapUpstreamApplication(message string, err error) error {
	return NewDomainError(ErrorTypeUpstreamApplication, message, err)
}
