package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/utils"
)

// StatusService defines the interface for system status reporting
type StatusService interface {
	SystemStatus(ctx context.Context) *models.SystemStatus
}

// StatusHandler handles system status HTTP requests
type StatusHandler struct {
	service StatusService
	logger  *zap.Logger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(service StatusService, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGetStatus handles GET /api/status. Status never fails: an upstream
// that cannot be probed simply reports unavailable.
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	status := h.service.SystemStatus(ctx)

	if err := utils.WriteOK(w, status); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
