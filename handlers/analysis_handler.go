package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/utils"
)

const defaultHistoricalDays = 30

// AnalysisService defines the interface for analysis operations
type AnalysisService interface {
	FetchAnalysis(ctx context.Context) (*models.AnalysisReport, error)
	FetchHistoricalAnalysis(ctx context.Context, days int) (*models.HistoricalAnalysis, error)
	UpdateDailyOHLC(ctx context.Context, rows []models.OHLCRow) error
}

// OHLCUpdateRequest carries the daily bars pushed to the analytics store
type OHLCUpdateRequest struct {
	Rows []models.OHLCRow `json:"rows" validate:"required,min=1,dive"`
}

// AnalysisHandler handles analysis-related HTTP requests
type AnalysisHandler struct {
	service AnalysisService
	logger  *zap.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(service AnalysisService, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGetAnalysis handles GET /api/analysis
func (h *AnalysisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	report, err := h.service.FetchAnalysis(ctx)
	if err != nil {
		h.logger.Warn("analysis fetch failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, report); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleGetHistorical handles GET /api/historical-analysis?days=N
func (h *AnalysisHandler) HandleGetHistorical(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	days, err := queryInt(r, "days", defaultHistoricalDays)
	if err != nil {
		_ = utils.WriteBadRequest(w, "days must be a positive integer", nil)
		return
	}

	hist, err := h.service.FetchHistoricalAnalysis(ctx, days)
	if err != nil {
		h.logger.Warn("historical analysis fetch failed",
			zap.String("request_id", requestID),
			zap.Int("days", days),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, hist); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleUpdateOHLC handles POST /api/update-ohlc
func (h *AnalysisHandler) HandleUpdateOHLC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req OHLCUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.UpdateDailyOHLC(ctx, req.Rows); err != nil {
		h.logger.Warn("daily OHLC update failed",
			zap.String("request_id", requestID),
			zap.Int("rows", len(req.Rows)),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("daily OHLC updated",
		zap.String("request_id", requestID),
		zap.Int("rows", len(req.Rows)))

	if err := utils.WriteOK(w, map[string]interface{}{"updated": len(req.Rows)}); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// queryInt parses an optional positive integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
