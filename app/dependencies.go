package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vasanthk84/oi-analyzer/auth"
	"github.com/vasanthk84/oi-analyzer/config"
	"github.com/vasanthk84/oi-analyzer/handlers"
	"github.com/vasanthk84/oi-analyzer/middleware"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/repositories/sqlite"
	"github.com/vasanthk84/oi-analyzer/services/health"
	"github.com/vasanthk84/oi-analyzer/services/journal"
	"github.com/vasanthk84/oi-analyzer/services/positions"
	"github.com/vasanthk84/oi-analyzer/services/resilience"
	"github.com/vasanthk84/oi-analyzer/services/router"
	"github.com/vasanthk84/oi-analyzer/services/stream"
	"github.com/vasanthk84/oi-analyzer/services/upstreams"
	"github.com/vasanthk84/oi-analyzer/services/upstreams/analytics"
	"github.com/vasanthk84/oi-analyzer/services/upstreams/executor"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Journal storage; nil when the journal is disabled
	JournalDB *sqlite.DB
	Journal   *journal.Service

	// Upstreams
	Registry *upstreams.Registry

	// Resilience core
	Cache  *positions.SnapshotCache
	Router *router.Service

	// Health probing and the positions stream
	Monitor     *health.Monitor
	Broadcaster *stream.Broadcaster
	Poller      *stream.Poller

	// Auth; nil when the execution routes are open
	AuthMiddleware *middleware.AuthMiddleware

	// HTTP handlers
	AnalysisHandler  *handlers.AnalysisHandler
	PositionsHandler *handlers.PositionsHandler
	ExecutionHandler *handlers.ExecutionHandler
	StatusHandler    *handlers.StatusHandler
	JournalHandler   *handlers.JournalHandler
	StreamHandler    *handlers.StreamHandler
	HealthHandler    *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
// Upstream clients are constructed but never probed here: an unreachable
// backend must not stop the gateway from starting.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initJournalStore(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize journal store: %w", err)
	}

	if err := deps.initUpstreams(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize upstreams: %w", err)
	}

	deps.initHealth()
	deps.initRouter(cfg)
	deps.initStream(cfg)
	deps.initAuth(cfg)
	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initJournalStore opens the embedded journal database and builds the journal
// service on top of it
func (d *Dependencies) initJournalStore(cfg *config.Config) error {
	if !cfg.Journal.Enabled {
		d.Logger.Info("trade journal disabled")
		return nil
	}

	db, err := sqlite.NewDB(cfg.Journal.Path, d.Logger)
	if err != nil {
		return err
	}

	d.JournalDB = db
	d.Journal = journal.NewService(sqlite.NewJournalRepository(db, d.Logger), d.Logger)
	return nil
}

// initUpstreams builds one client per enabled upstream declaration
func (d *Dependencies) initUpstreams(cfg *config.Config) error {
	registry := upstreams.NewRegistry()

	for _, u := range cfg.Upstreams {
		if !u.IsEnabled() {
			d.Logger.Info("upstream disabled", zap.String("upstream", u.Name))
			continue
		}

		if err := registry.Register(newUpstreamClient(u)); err != nil {
			return err
		}

		d.Logger.Info("upstream registered",
			zap.String("upstream", u.Name),
			zap.String("base_url", u.BaseURL),
			zap.Strings("capabilities", u.Capabilities))
	}

	if registry.Count() == 0 {
		// Not fatal: the gateway still serves cached and empty snapshots.
		d.Logger.Warn("no upstreams enabled, all routes will run degraded")
	}

	d.Registry = registry
	return nil
}

// newUpstreamClient picks the wire dialect by capability: a target that serves
// analytics speaks the analytics backend's protocol, everything else speaks
// the executor's.
func newUpstreamClient(u config.UpstreamConfig) upstreams.Client {
	clientCfg := upstreams.ClientConfig{
		BaseURL:           u.BaseURL,
		Timeout:           u.Timeout(),
		RequestsPerSecond: u.RequestsPerSecond,
		Burst:             u.Burst,
	}

	target := u.Target()
	if target.Capabilities.Has(models.CapabilityAnalytics) {
		return analytics.NewClient(target, clientCfg)
	}
	return executor.NewClient(target, clientCfg)
}

func (d *Dependencies) initHealth() {
	d.Monitor = health.NewMonitor(d.Registry, d.Logger, 0)
}

// initRouter builds the snapshot cache and the routing service with the
// configured breaker and retry settings, applying per-upstream breaker
// overrides where declared
func (d *Dependencies) initRouter(cfg *config.Config) {
	d.Cache = positions.NewSnapshotCache()

	routerCfg := router.Config{
		Breaker: resilience.BreakerConfig{
			FailureThreshold: cfg.Resilience.FailureThreshold,
			ResetTimeout:     cfg.Resilience.ResetTimeout,
		},
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.Resilience.MaxAttempts,
			BaseDelay:   cfg.Resilience.BaseDelay,
			MaxDelay:    cfg.Resilience.MaxDelay,
		},
		StalenessCutoff: cfg.Cache.StalenessCutoff,
	}

	overrides := make(map[string]resilience.BreakerConfig)
	for _, u := range cfg.Upstreams {
		if u.Resilience == nil {
			continue
		}
		override := routerCfg.Breaker
		if u.Resilience.FailureThreshold > 0 {
			override.FailureThreshold = u.Resilience.FailureThreshold
		}
		if u.Resilience.ResetTimeoutSeconds > 0 {
			override.ResetTimeout = time.Duration(u.Resilience.ResetTimeoutSeconds) * time.Second
		}
		overrides[u.Name] = override
		d.Logger.Info("breaker override applied",
			zap.String("upstream", u.Name),
			zap.Int("failure_threshold", override.FailureThreshold),
			zap.Duration("reset_timeout", override.ResetTimeout))
	}
	if len(overrides) > 0 {
		routerCfg.BreakerOverrides = overrides
	}

	// An untyped nil keeps the recorder interface nil when the journal is off.
	var recorder router.JournalRecorder
	if d.Journal != nil {
		recorder = d.Journal
	}

	d.Router = router.NewService(d.Registry, d.Cache, recorder, d.Monitor, d.Logger, routerCfg)
}

func (d *Dependencies) initStream(cfg *config.Config) {
	d.Broadcaster = stream.NewBroadcaster(d.Logger)
	d.Poller = stream.NewPoller(d.Router, d.Broadcaster, d.Logger, cfg.Stream.PollInterval)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if !cfg.Auth.Enabled {
		d.Logger.Info("execution auth disabled, execution routes are open")
		return
	}

	validator := auth.NewValidator(cfg.Auth.Secret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("execution auth enabled", zap.String("issuer", cfg.Auth.Issuer))
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	var journalDB *sql.DB
	if d.JournalDB != nil {
		journalDB = d.JournalDB.DB
	}

	d.AnalysisHandler = handlers.NewAnalysisHandler(d.Router, d.Logger)
	d.PositionsHandler = handlers.NewPositionsHandler(d.Router, d.Logger)
	d.ExecutionHandler = handlers.NewExecutionHandler(d.Router, d.Logger)
	d.StatusHandler = handlers.NewStatusHandler(d.Router, d.Logger)
	if d.Journal != nil {
		d.JournalHandler = handlers.NewJournalHandler(d.Journal, d.Router, d.Logger)
	}
	d.StreamHandler = handlers.NewStreamHandler(d.Broadcaster, cfg.CORS.AllowedOrigins, cfg.Stream.SendBufferSize, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(journalDB, d.Monitor, d.Logger)
}

// Close gracefully shuts down all dependencies. The stream poller and probe
// worker are stopped by the caller before Close runs.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.JournalDB != nil {
		if err := d.JournalDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close journal database: %w", err))
		} else {
			d.Logger.Info("journal database closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
