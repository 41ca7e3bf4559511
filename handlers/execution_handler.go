package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/utils"
)

// ExecutionService defines the interface for execution operations
type ExecutionService interface {
	ExecuteStrangle(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResult, error)
	ClosePosition(ctx context.Context, req models.CloseRequest) (*models.ExecutionResult, error)
	CloseAllPositions(ctx context.Context) (*models.CloseAllResult, error)
}

// ExecutionHandler handles order placement and closing HTTP requests
type ExecutionHandler struct {
	service ExecutionService
	logger  *zap.Logger
}

// NewExecutionHandler creates a new ExecutionHandler
func NewExecutionHandler(service ExecutionService, logger *zap.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		service: service,
		logger:  logger,
	}
}

// HandleExecuteStrangle handles POST /api/execute-strangle
func (h *ExecutionHandler) HandleExecuteStrangle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	if req.PutStrike >= req.CallStrike {
		_ = utils.WriteBadRequest(w, "put_strike must be below call_strike", map[string]interface{}{
			"call_strike": req.CallStrike,
			"put_strike":  req.PutStrike,
		})
		return
	}

	result, err := h.service.ExecuteStrangle(ctx, req)
	if err != nil {
		h.logger.Error("strangle execution failed",
			zap.String("request_id", requestID),
			zap.Float64("call_strike", req.CallStrike),
			zap.Float64("put_strike", req.PutStrike),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("strangle execution completed",
		zap.String("request_id", requestID),
		zap.Bool("success", result.Success),
		zap.Int("orders", len(result.Orders)))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleClosePosition handles POST /api/close-position
func (h *ExecutionHandler) HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.ClosePosition(ctx, req)
	if err != nil {
		h.logger.Error("position close failed",
			zap.String("request_id", requestID),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("position close completed",
		zap.String("request_id", requestID),
		zap.String("symbol", req.Symbol),
		zap.Bool("success", result.Success))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleCloseAllPositions handles POST /api/close-all-positions
func (h *ExecutionHandler) HandleCloseAllPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	result, err := h.service.CloseAllPositions(ctx)
	if err != nil {
		h.logger.Error("close-all failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("close-all completed",
		zap.String("request_id", requestID),
		zap.Bool("success", result.Success),
		zap.Int("closed_count", result.ClosedCount))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
