package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/utils"
)

// JournalService defines the interface for trade journal operations
type JournalService interface {
	RecordEntry(ctx context.Context, req models.JournalEntryRequest) (*models.TradeRecord, error)
	CloseTrade(ctx context.Context, req models.JournalExitRequest) (*models.TradeRecord, error)
	Trade(ctx context.Context, tradeID uuid.UUID) (*models.TradeRecord, error)
	OpenTrades(ctx context.Context) ([]*models.TradeRecord, error)
	AddLesson(ctx context.Context, req models.LessonRequest) (*models.Lesson, error)
	RecentLessons(ctx context.Context, limit int) ([]*models.Lesson, error)
	Performance(ctx context.Context, days int) (*models.PerformanceSummary, error)
	SyncPositions(ctx context.Context, snapshot models.PositionsSnapshot) (*models.SyncResult, error)
}

// JournalHandler handles trade journal HTTP requests. Sync needs a live
// positions snapshot, so the handler also carries the positions service.
type JournalHandler struct {
	service   JournalService
	positions PositionsService
	logger    *zap.Logger
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(service JournalService, positions PositionsService, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{
		service:   service,
		positions: positions,
		logger:    logger,
	}
}

// HandleRecordEntry handles POST /api/journal/entry
func (h *JournalHandler) HandleRecordEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.JournalEntryRequest
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

	trade, err := h.service.RecordEntry(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, trade); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleRecordExit handles POST /api/journal/exit
func (h *JournalHandler) HandleRecordExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.JournalExitRequest
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

	trade, err := h.service.CloseTrade(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, trade); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleGetTrade handles GET /api/journal/trades/{tradeID}
func (h *JournalHandler) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	tradeID, err := utils.ParseUUID(chi.URLParam(r, "tradeID"), "trade_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	trade, err := h.service.Trade(ctx, tradeID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, trade); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleOpenTrades handles GET /api/journal/open
func (h *JournalHandler) HandleOpenTrades(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	trades, err := h.service.OpenTrades(ctx)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, trades); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleAddLesson handles POST /api/journal/lessons
func (h *JournalHandler) HandleAddLesson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.LessonRequest
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

	lesson, err := h.service.AddLesson(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, lesson); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleRecentLessons handles GET /api/journal/lessons?limit=N
func (h *JournalHandler) HandleRecentLessons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, "limit must be a positive integer", nil)
		return
	}

	lessons, err := h.service.RecentLessons(ctx, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, lessons); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleGetPerformance handles GET /api/journal/performance?days=N
func (h *JournalHandler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	days, err := queryInt(r, "days", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, "days must be a positive integer", nil)
		return
	}

	summary, err := h.service.Performance(ctx, days)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, summary); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleSyncPositions handles POST /api/journal/sync. The snapshot comes from
// the live fallback chain, not the request body — syncing against
// client-supplied positions would let a stale UI rewrite the journal.
func (h *JournalHandler) HandleSyncPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	snapshot, err := h.positions.FetchPositions(ctx)
	if err != nil {
		h.logger.Warn("positions fetch for sync failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	result, err := h.service.SyncPositions(ctx, snapshot)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("journal synced with live positions",
		zap.String("request_id", requestID),
		zap.Int("added", result.Added),
		zap.Int("closed", result.Closed))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
