// Package router is the resilience core of the gateway. It owns exactly one
// circuit breaker per upstream for the process lifetime, composes retry
// inside each breaker call, and walks the positions fallback chain
// (executor, analytics, cache, explicit empty) so that callers always get a
// typed result, never a panic or a raw transport error.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services"
	"github.com/vasanthk84/oi-analyzer/services/health"
	"github.com/vasanthk84/oi-analyzer/services/positions"
	"github.com/vasanthk84/oi-analyzer/services/resilience"
	"github.com/vasanthk84/oi-analyzer/services/upstreams"
	"go.uber.org/zap"
)

// RoutingNone is reported as the active routing choice when no source has
// served positions yet, or the last fetch fell through every source.
const RoutingNone = "none"

// RoutingCache is reported when the last positions fetch was served from cache.
const RoutingCache = "cache"

// Config holds router tuning
type Config struct {
	// Breaker applies to every upstream breaker
	Breaker resilience.BreakerConfig

	// BreakerOverrides replaces the shared breaker settings for the named
	// upstreams, so a flaky executor can run a tighter threshold without
	// touching the analytics breaker.
	BreakerOverrides map[string]resilience.BreakerConfig

	// Retry applies inside each breaker call
	Retry resilience.RetryConfig

	// StalenessCutoff bounds how old a cached snapshot may be and still be
	// served as a degraded result. Zero serves any age.
	StalenessCutoff time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Breaker:         resilience.DefaultBreakerConfig(),
		Retry:           resilience.DefaultRetryConfig(),
		StalenessCutoff: 15 * time.Minute,
	}
}

// JournalRecorder receives best-effort notifications after successful
// execution-side operations. Implementations must tolerate partial market
// context; recording failures are logged, never surfaced to the trading path.
type JournalRecorder interface {
	RecordExecution(ctx context.Context, req models.ExecutionRequest, result *models.ExecutionResult, mkt *models.MarketContext) error
	RecordExit(ctx context.Context, req models.CloseRequest, result *models.ExecutionResult) error
	RecordCloseAll(ctx context.Context, result *models.CloseAllResult) error
}

// Service routes gateway operations to upstreams through breaker and retry
type Service struct {
	registry *upstreams.Registry
	cache    *positions.SnapshotCache
	journal  JournalRecorder
	monitor  *health.Monitor
	logger   *zap.Logger
	config   Config

	mu            sync.Mutex
	breakers      map[string]*resilience.Breaker
	lastAnalysis  *models.AnalysisReport
	activeRouting string
}

// NewService creates a router over the registered upstreams. One breaker per
// registered upstream is created here and lives as long as the process.
func NewService(registry *upstreams.Registry, cache *positions.SnapshotCache, journal JournalRecorder, monitor *health.Monitor, logger *zap.Logger, config Config) *Service {
	s := &Service{
		registry:      registry,
		cache:         cache,
		journal:       journal,
		monitor:       monitor,
		logger:        logger,
		config:        config,
		breakers:      make(map[string]*resilience.Breaker),
		activeRouting: RoutingNone,
	}

	for _, name := range registry.Names() {
		s.breakers[name] = resilience.NewBreaker(name, config.breakerConfigFor(name), logger)
	}

	return s
}

func (c Config) breakerConfigFor(name string) resilience.BreakerConfig {
	if override, ok := c.BreakerOverrides[name]; ok {
		return override
	}
	return c.Breaker
}

// FetchAnalysis returns the live analysis report from the analytics upstream.
// Single source, no fallback, no cache: analysis is only meaningful live.
func (s *Service) FetchAnalysis(ctx context.Context) (*models.AnalysisReport, error) {
	source, err := s.analyticsSource()
	if err != nil {
		return nil, err
	}

	var report *models.AnalysisReport
	err = s.callUpstream(ctx, source.Name(), func(ctx context.Context) error {
		r, err := source.FetchAnalysis(ctx)
		if err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, s.classifyUpstreamError(err, "analysis fetch failed")
	}

	s.rememberAnalysis(report)

	return report, nil
}

// FetchHistoricalAnalysis returns historical daily context from the
// analytics upstream. Same no-fallback semantics as FetchAnalysis.
func (s *Service) FetchHistoricalAnalysis(ctx context.Context, days int) (*models.HistoricalAnalysis, error) {
	source, err := s.analyticsSource()
	if err != nil {
		return nil, err
	}

	var hist *models.HistoricalAnalysis
	err = s.callUpstream(ctx, source.Name(), func(ctx context.Context) error {
		h, err := source.FetchHistoricalAnalysis(ctx, days)
		if err != nil {
			return err
		}
		hist = h
		return nil
	})
	if err != nil {
		return nil, s.classifyUpstreamError(err, "historical analysis fetch failed")
	}

	return hist, nil
}

// UpdateDailyOHLC pushes daily bars to the analytics upstream
func (s *Service) UpdateDailyOHLC(ctx context.Context, rows []models.OHLCRow) error {
	source, err := s.analyticsSource()
	if err != nil {
		return err
	}

	err = s.callUpstream(ctx, source.Name(), func(ctx context.Context) error {
		return source.UpdateDailyOHLC(ctx, rows)
	})
	if err != nil {
		return s.classifyUpstreamError(err, "daily OHLC update failed")
	}

	return nil
}

// FetchPositions walks the positions fallback chain: each enabled positions
// source in registration order through its own breaker+retry, then the cache
// (if fresh enough), then an explicit empty snapshot. A successful live fetch
// overwrites the cache. The returned snapshot is always well formed; the
// error (when non-nil) classifies why only a degraded or empty snapshot was
// available.
func (s *Service) FetchPositions(ctx context.Context) (models.PositionsSnapshot, error) {
	var lastErr error

	for i, source := range s.positionSources() {
		var fetched []models.Position
		err := s.callUpstream(ctx, source.Name(), func(ctx context.Context) error {
			p, err := source.FetchPositions(ctx)
			if err != nil {
				return err
			}
			fetched = p
			return nil
		})
		if err != nil {
			lastErr = err
			s.logger.Warn("positions source failed, trying next",
				zap.String("upstream", source.Name()),
				zap.Error(err))
			continue
		}

		sourceTag := models.SourcePrimary
		if i > 0 {
			sourceTag = models.SourceFallback
		}

		snapshot := models.NewPositionsSnapshot(fetched, sourceTag, models.ReliabilityLive)
		s.cache.Put(snapshot)
		s.setActiveRouting(source.Name())

		return snapshot, nil
	}

	if cached, ok := s.cache.Get(); ok {
		if s.withinCutoff(cached) {
			s.setActiveRouting(RoutingCache)
			s.logger.Warn("serving cached positions snapshot",
				zap.Duration("age", cached.Age()),
				zap.Error(lastErr))
			return cached.WithSource(models.SourceCache, models.ReliabilityDegraded), nil
		}
		s.logger.Warn("cached positions snapshot too stale to serve",
			zap.Duration("age", cached.Age()),
			zap.Duration("cutoff", s.config.StalenessCutoff))
	}

	s.setActiveRouting(RoutingNone)

	exhausted := services.NewDomainError(
		services.ErrorTypeAllSourcesExhausted,
		"all position sources failed including cache",
		lastErr,
	)

	return models.EmptySnapshot(), exhausted
}

// ExecuteStrangle places a strangle through the upstream configured for
// execution. There is no cross-backend fallback here: order placement
// retried against a different backend risks double execution, so only
// transport-level retries against the one chosen upstream are allowed.
func (s *Service) ExecuteStrangle(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResult, error) {
	client, err := s.registry.FirstWithCapability(models.CapabilityExecution)
	if err != nil {
		return nil, services.NewDomainError(
			services.ErrorTypeCapabilityUnavailable,
			"no enabled upstream supports execution",
			err,
		).WithDetail("capability", string(models.CapabilityExecution))
	}

	executor, ok := client.(upstreams.StrangleExecutor)
	if !ok {
		return nil, services.NewDomainError(
			services.ErrorTypeCapabilityUnavailable,
			"configured execution upstream cannot place strangles",
			nil,
		).WithDetail("upstream", client.Name())
	}

	s.logger.Info("executing strangle",
		zap.String("upstream", client.Name()),
		zap.Float64("call_strike", req.CallStrike),
		zap.Float64("put_strike", req.PutStrike),
		zap.Int("quantity", req.Quantity),
		zap.String("profile", string(req.Profile)))

	var result *models.ExecutionResult
	err = s.callUpstream(ctx, client.Name(), func(ctx context.Context) error {
		r, err := executor.ExecuteStrangle(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, s.classifyUpstreamError(err, "strangle execution failed")
	}

	if result.Success {
		s.recordExecution(ctx, req, result)
	}

	return result, nil
}

// ClosePosition closes (part of) one position through the upstream
// configured for position management.
func (s *Service) ClosePosition(ctx context.Context, req models.CloseRequest) (*models.ExecutionResult, error) {
	closer, err := s.positionCloser()
	if err != nil {
		return nil, err
	}

	s.logger.Info("closing position",
		zap.String("upstream", closer.Name()),
		zap.String("symbol", req.Symbol),
		zap.Int("quantity", req.Quantity))

	var result *models.ExecutionResult
	err = s.callUpstream(ctx, closer.Name(), func(ctx context.Context) error {
		r, err := closer.ClosePosition(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, s.classifyUpstreamError(err, "position close failed")
	}

	if result.Success && s.journal != nil {
		if jerr := s.journal.RecordExit(ctx, req, result); jerr != nil {
			s.logger.Warn("journal exit recording failed",
				zap.String("symbol", req.Symbol),
				zap.Error(jerr))
		}
	}

	return result, nil
}

// CloseAllPositions closes every open position through the upstream
// configured for position management.
func (s *Service) CloseAllPositions(ctx context.Context) (*models.CloseAllResult, error) {
	closer, err := s.positionCloser()
	if err != nil {
		return nil, err
	}

	s.logger.Info("closing all positions", zap.String("upstream", closer.Name()))

	var result *models.CloseAllResult
	err = s.callUpstream(ctx, closer.Name(), func(ctx context.Context) error {
		r, err := closer.CloseAllPositions(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, s.classifyUpstreamError(err, "close-all failed")
	}

	if result.Success && s.journal != nil {
		if jerr := s.journal.RecordCloseAll(ctx, result); jerr != nil {
			s.logger.Warn("journal close-all recording failed", zap.Error(jerr))
		}
	}

	return result, nil
}

// SystemStatus probes every registered upstream through the monitor and
// derives the feature flags. Probes bypass the breakers: status must observe
// an upstream's recovery before the breaker's reset window admits live
// traffic. Breaker states are reported alongside each probe result.
func (s *Service) SystemStatus(ctx context.Context) *models.SystemStatus {
	statuses := s.monitor.ProbeAll(ctx)

	available := make(map[string]bool, len(statuses))
	for i, st := range statuses {
		statuses[i].BreakerState = s.breakerFor(st.Name).State().String()
		available[st.Name] = st.Available
	}

	return &models.SystemStatus{
		Upstreams:     statuses,
		ActiveRouting: s.ActiveRouting(),
		Features:      s.deriveFeatures(available),
		GeneratedAt:   time.Now(),
	}
}

// ActiveRouting reports which source served the most recent positions fetch
func (s *Service) ActiveRouting() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRouting
}

// LatestAnalysis returns the most recent successfully fetched analysis
// report, or nil if none has been fetched yet.
func (s *Service) LatestAnalysis() *models.AnalysisReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnalysis
}

// BreakerStates reports the current state of every upstream breaker
func (s *Service) BreakerStates() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make(map[string]string, len(s.breakers))
	for name, breaker := range s.breakers {
		states[name] = breaker.State().String()
	}
	return states
}

// callUpstream runs op against the named upstream: retry composes inside the
// breaker, so the breaker records one failure per exhausted logical call and
// a single transient blip never trips it.
func (s *Service) callUpstream(ctx context.Context, name string, op func(context.Context) error) error {
	breaker := s.breakerFor(name)
	return breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, s.config.Retry, s.logger, op)
	})
}

func (s *Service) breakerFor(name string) *resilience.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	breaker, exists := s.breakers[name]
	if !exists {
		breaker = resilience.NewBreaker(name, s.config.breakerConfigFor(name), s.logger)
		s.breakers[name] = breaker
	}
	return breaker
}

// classifyUpstreamError maps a failed upstream call onto the DomainError
// taxonomy. Breaker rejections pass through untouched; upstream errors split
// on retryability: transport-level failures vs application rejections, with
// the upstream's own detail preserved underneath.
func (s *Service) classifyUpstreamError(err error, message string) error {
	if services.IsBreakerOpenError(err) {
		return err
	}

	var upErr *upstreams.UpstreamError
	if errors.As(err, &upErr) {
		if upErr.Retryable {
			return services.NewDomainError(services.ErrorTypeTransport, message, err).
				WithDetail("upstream", upErr.Upstream)
		}
		domainErr := services.NewDomainError(services.ErrorTypeUpstreamApplication, message, err).
			WithDetail("upstream", upErr.Upstream).
			WithDetail("upstream_message", upErr.Message)
		if upErr.StatusCode != 0 {
			domainErr = domainErr.WithDetail("status_code", upErr.StatusCode)
		}
		return domainErr
	}

	return services.NewDomainError(services.ErrorTypeTransport, message, err)
}

// positionSources returns every enabled upstream that can serve positions,
// in registration order. The first is the primary; the rest are fallbacks.
func (s *Service) positionSources() []upstreams.PositionsSource {
	var sources []upstreams.PositionsSource
	for _, client := range s.registry.All() {
		if !client.Target().Enabled {
			continue
		}
		if source, ok := client.(upstreams.PositionsSource); ok {
			sources = append(sources, source)
		}
	}
	return sources
}

func (s *Service) analyticsSource() (upstreams.AnalyticsSource, error) {
	client, err := s.registry.FirstWithCapability(models.CapabilityAnalytics)
	if err != nil {
		return nil, services.NewDomainError(
			services.ErrorTypeCapabilityUnavailable,
			"no enabled upstream supports analytics",
			err,
		).WithDetail("capability", string(models.CapabilityAnalytics))
	}

	source, ok := client.(upstreams.AnalyticsSource)
	if !ok {
		return nil, services.NewDomainError(
			services.ErrorTypeCapabilityUnavailable,
			"configured analytics upstream does not serve analysis",
			nil,
		).WithDetail("upstream", client.Name())
	}

	return source, nil
}

func (s *Service) positionCloser() (upstreams.PositionCloser, error) {
	client, err := s.registry.FirstWithCapability(models.CapabilityPositionManagement)
	if err != nil {
		return nil, services.NewDomainError(
			services.ErrorTypeCapabilityUnavailable,
			"no enabled upstream supports position management",
			err,
		).WithDetail("capability", string(models.CapabilityPositionManagement))
	}

	closer, ok := client.(upstreams.PositionCloser)
	if !ok {
		return nil, services.NewDomainError(
			services.ErrorTypeCapabilityUnavailable,
			"configured position management upstream cannot close positions",
			nil,
		).WithDetail("upstream", client.Name())
	}

	return closer, nil
}

// deriveFeatures gates every execution-side flag on the execution upstream:
// the capability must be declared, the target enabled, and the probe green.
func (s *Service) deriveFeatures(available map[string]bool) models.FeatureFlags {
	var features models.FeatureFlags

	if client, err := s.registry.FirstWithCapability(models.CapabilityAnalytics); err == nil {
		features.Analytics = available[client.Name()]
	}

	client, err := s.registry.FirstWithCapability(models.CapabilityExecution)
	if err != nil {
		return features
	}

	up := available[client.Name()]
	target := client.Target()
	features.Execution = up
	features.PositionManagement = up && target.Supports(models.CapabilityPositionManagement)
	features.RiskManagement = up && target.Supports(models.CapabilityRiskManagement)
	features.AutoTrading = up && target.Supports(models.CapabilityAutoTrading)

	return features
}

func (s *Service) rememberAnalysis(report *models.AnalysisReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAnalysis = report
}

func (s *Service) setActiveRouting(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRouting = source
}

func (s *Service) marketContext() *models.MarketContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastAnalysis == nil {
		return nil
	}
	return &models.MarketContext{
		Spot:    s.lastAnalysis.Spot,
		PCR:     s.lastAnalysis.Metrics.PCR,
		MaxPain: s.lastAnalysis.Metrics.MaxPain,
	}
}

func (s *Service) recordExecution(ctx context.Context, req models.ExecutionRequest, result *models.ExecutionResult) {
	if s.journal == nil {
		return
	}

	if err := s.journal.RecordExecution(ctx, req, result, s.marketContext()); err != nil {
		s.logger.Warn("journal execution recording failed",
			zap.Float64("call_strike", req.CallStrike),
			zap.Float64("put_strike", req.PutStrike),
			zap.Error(err))
	}
}

func (s *Service) withinCutoff(snapshot models.PositionsSnapshot) bool {
	if s.config.StalenessCutoff <= 0 {
		return true
	}
	return snapshot.Age() <= s.config.StalenessCutoff
}
