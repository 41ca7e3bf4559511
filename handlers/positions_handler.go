package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services"
	"github.com/vasanthk84/oi-analyzer/utils"
)

// PositionsService defines the interface for positions operations
type PositionsService interface {
	FetchPositions(ctx context.Context) (models.PositionsSnapshot, error)
}

// PositionsHandler handles positions-related HTTP requests
type PositionsHandler struct {
	service PositionsService
	logger  *zap.Logger
}

// NewPositionsHandler creates a new PositionsHandler
func NewPositionsHandler(service PositionsService, logger *zap.Logger) *PositionsHandler {
	return &PositionsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGetPositions handles GET /api/positions. The snapshot is always well
// formed — source and reliability tell the UI how much to trust it. When every
// source failed, the empty snapshot still goes out, as 503, so the UI can
// render "no data" instead of parsing an error shape.
func (h *PositionsHandler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	snapshot, err := h.service.FetchPositions(ctx)
	if err != nil {
		if services.IsAllSourcesExhaustedError(err) {
			h.logger.Warn("positions unavailable from every source",
				zap.String("request_id", requestID),
				zap.Error(err))
			// Same envelope as the 200 path so the UI parses one shape.
			body := utils.SuccessResponse{Data: snapshot, Message: err.Error()}
			if werr := utils.WriteJSON(w, http.StatusServiceUnavailable, body); werr != nil {
				h.logger.Error("failed to write response",
					zap.String("request_id", requestID),
					zap.Error(werr))
			}
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	if snapshot.Reliability == models.ReliabilityDegraded {
		h.logger.Info("serving degraded positions snapshot",
			zap.String("request_id", requestID),
			zap.String("source", string(snapshot.Source)),
			zap.Duration("age", snapshot.Age()))
	}

	if err := utils.WriteOK(w, snapshot); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
