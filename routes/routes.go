package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vasanthk84/oi-analyzer/app"
	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/utils"
)

// SetupRoutes configures all gateway routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)

	// CORS middleware. Retry-After must be exposed or the UI cannot read the
	// breaker's back-off hint from a 503.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// The websocket lives outside the timeout group: a snapshot stream is
		// supposed to outlive any request deadline.
		r.Get("/ws", deps.StreamHandler.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))

			// Analytics surface
			r.Get("/analysis", deps.AnalysisHandler.HandleGetAnalysis)
			r.Get("/historical-analysis", deps.AnalysisHandler.HandleGetHistorical)
			r.Post("/update-ohlc", deps.AnalysisHandler.HandleUpdateOHLC)

			// Positions and status
			r.Get("/positions", deps.PositionsHandler.HandleGetPositions)
			r.Get("/status", deps.StatusHandler.HandleGetStatus)

			// Execution routes; bearer auth when configured
			r.Group(func(r chi.Router) {
				if deps.AuthMiddleware != nil {
					r.Use(deps.AuthMiddleware.RequireAuth)
				}
				r.Post("/execute-strangle", deps.ExecutionHandler.HandleExecuteStrangle)
				r.Post("/close-position", deps.ExecutionHandler.HandleClosePosition)
				r.Post("/close-all-positions", deps.ExecutionHandler.HandleCloseAllPositions)
			})

			// Trade journal, only when the store is enabled
			if deps.JournalHandler != nil {
				r.Route("/journal", func(r chi.Router) {
					r.Post("/entry", deps.JournalHandler.HandleRecordEntry)
					r.Post("/exit", deps.JournalHandler.HandleRecordExit)
					r.Post("/sync", deps.JournalHandler.HandleSyncPositions)
					r.Get("/open", deps.JournalHandler.HandleOpenTrades)
					r.Get("/trades/{tradeID}", deps.JournalHandler.HandleGetTrade)
					r.Post("/lessons", deps.JournalHandler.HandleAddLesson)
					r.Get("/lessons", deps.JournalHandler.HandleRecentLessons)
					r.Get("/performance", deps.JournalHandler.HandleGetPerformance)
				})
			}
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
