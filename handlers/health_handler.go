package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/services/health"
	"github.com/vasanthk84/oi-analyzer/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles liveness and readiness HTTP requests
type HealthHandler struct {
	db      *sql.DB
	monitor *health.Monitor
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil when the journal is
// disabled.
func NewHealthHandler(db *sql.DB, monitor *health.Monitor, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		monitor: monitor,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Basic liveness check - always returns 200 if the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz. Only the gateway's own dependencies
// gate readiness: a broken journal store is 503, but unreachable upstreams are
// reported in the checks without failing the probe — staying up while the
// upstreams are down is the point of the gateway.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["journal"] = "disabled"
	} else if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("journal store health check failed", zap.Error(err))
		checks["journal"] = "unhealthy"
		allHealthy = false
	} else {
		checks["journal"] = "healthy"
	}

	if h.monitor != nil {
		for _, status := range h.monitor.ProbeAll(ctx) {
			if status.Available {
				checks["upstream_"+status.Name] = "reachable"
			} else {
				checks["upstream_"+status.Name] = "unreachable"
			}
		}
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase verifies the journal store answers queries, not just pings
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return err
	}

	return nil
}
