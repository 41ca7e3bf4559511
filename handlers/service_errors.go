package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/services"
	"github.com/vasanthk84/oi-analyzer/utils"
)

// HandleServiceError maps domain errors to HTTP responses. The taxonomy is
// deliberate: breaker rejections and exhausted fallback chains are 503 so the
// UI treats them as "try again later", while upstream failures the gateway
// merely relayed are 502.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err):
		if err := utils.WriteNotFound(w, err.Error()); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsUnauthorizedError(err):
		if err := utils.WriteUnauthorized(w, err.Error()); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}

	case services.IsCapabilityUnavailableError(err):
		if err := utils.WriteNotImplemented(w, err.Error(), details); err != nil {
			logger.Error("failed to write capability unavailable response", zap.Error(err))
		}

	case services.IsBreakerOpenError(err):
		// The breaker rejection carries its next probe time; surface it as
		// Retry-After so well-behaved clients back off until then.
		if err := utils.WriteServiceUnavailable(w, err.Error(), retryAfterFrom(details), details); err != nil {
			logger.Error("failed to write breaker open response", zap.Error(err))
		}

	case services.IsAllSourcesExhaustedError(err):
		if err := utils.WriteServiceUnavailable(w, err.Error(), 0, details); err != nil {
			logger.Error("failed to write sources exhausted response", zap.Error(err))
		}

	case services.IsTransportError(err):
		if err := utils.WriteBadGateway(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad gateway response", zap.Error(err))
		}

	case services.IsUpstreamApplicationError(err):
		if err := utils.WriteBadGateway(w, err.Error(), details); err != nil {
			logger.Error("failed to write upstream error response", zap.Error(err))
		}

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// retryAfterFrom pulls the breaker's next probe time out of the error details.
// Returns 0 when absent or already past, which suppresses the header.
func retryAfterFrom(details map[string]interface{}) time.Duration {
	if details == nil {
		return 0
	}
	next, ok := details["next_attempt"].(time.Time)
	if !ok {
		return 0
	}
	wait := time.Until(next)
	if wait < 0 {
		return 0
	}
	return wait
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
