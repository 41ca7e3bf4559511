// Package journal keeps the local trade journal: every entry and exit the
// gateway sees, plus the behavioural analytics built on top of them. The
// journal is strictly an observer — recording failures never block trading.
package journal

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/repositories"
	"github.com/vasanthk84/oi-analyzer/services"
	"go.uber.org/zap"
)

const (
	defaultPerformanceDays = 30
	defaultLessonLimit     = 10
)

// Service implements journaling on top of a JournalRepository. Entry-time
// fields (weekday, hour) are derived in exchange time, not host time.
type Service struct {
	repo     repositories.JournalRepository
	logger   *zap.Logger
	exchange *time.Location
}

// NewService creates a new journal service
func NewService(repo repositories.JournalRepository, logger *zap.Logger) *Service {
	exchange, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		exchange = time.FixedZone("IST", 5*3600+30*60)
	}
	return &Service{
		repo:     repo,
		logger:   logger,
		exchange: exchange,
	}
}

// RecordEntry journals a new trade entry. Session IDs link the legs of a
// multi-leg structure; one is generated when the caller does not supply it.
func (s *Service) RecordEntry(ctx context.Context, req models.JournalEntryRequest) (*models.TradeRecord, error) {
	now := time.Now().In(s.exchange)

	source := req.Source
	if source == "" {
		source = models.TradeSourceUnknown
	}
	sessionID := uuid.New()
	if req.SessionID != nil {
		sessionID = *req.SessionID
	}

	instrumentType, strike, expiryTag := parseSymbol(req.Symbol)
	dte := req.Context.DTE

	trade := &models.TradeRecord{
		TradeID:        uuid.New(),
		SessionID:      sessionID,
		Source:         source,
		Symbol:         req.Symbol,
		InstrumentType: instrumentType,
		Strike:         strike,
		ExpiryTag:      expiryTag,
		Quantity:       req.Quantity,
		EntryTime:      now,
		EntryPrice:     req.EntryPrice,
		EntryOrderID:   req.OrderID,
		SpotAtEntry:    req.Context.Spot,
		VIXAtEntry:     req.Context.VIX,
		IVRankAtEntry:  req.Context.IVRank,
		DTEAtEntry:     dte,
		DeltaAtEntry:   req.Context.Delta,
		GammaAtEntry:   req.Context.Gamma,
		ThetaAtEntry:   req.Context.Theta,
		DayOfWeek:      now.Weekday().String(),
		IsExpiryDay:    dte < 1,
		IsZeroDTE:      dte == 0,
		HourOfEntry:    now.Hour(),
		WasPlanned:     strings.HasPrefix(string(source), "app"),
		UpdatedAt:      now,
	}

	if err := s.repo.InsertTrade(ctx, trade); err != nil {
		return nil, services.WrapInternal("failed to record trade entry", err)
	}

	s.logger.Info("trade entry journaled",
		zap.String("trade_id", trade.TradeID.String()),
		zap.String("symbol", trade.Symbol),
		zap.Float64("entry_price", trade.EntryPrice),
		zap.String("source", string(source)))
	return trade, nil
}

// CloseTrade journals the exit side of an open trade by id
func (s *Service) CloseTrade(ctx context.Context, req models.JournalExitRequest) (*models.TradeRecord, error) {
	trade, err := s.repo.GetTrade(ctx, req.TradeID)
	if err != nil {
		if errors.Is(err, repositories.ErrTradeNotFound) {
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "trade not found", nil).
				WithDetail("trade_id", req.TradeID.String())
		}
		return nil, services.WrapInternal("failed to load trade", err)
	}
	if !trade.IsOpen() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "trade already closed", nil).
			WithDetail("trade_id", req.TradeID.String())
	}

	reason := req.Reason
	if reason == "" {
		reason = models.ExitReasonManual
	}

	trade.MarkClosed(req.ExitPrice, req.OrderID, reason, req.Context, time.Now().In(s.exchange))
	if err := s.repo.CloseTrade(ctx, trade); err != nil {
		return nil, services.WrapInternal("failed to record trade exit", err)
	}

	if req.EmotionalState != "" || req.Notes != "" {
		if err := s.repo.UpdateTradeNotes(ctx, trade.TradeID, req.EmotionalState, req.Notes); err != nil {
			s.logger.Warn("trade closed but review notes not saved",
				zap.String("trade_id", trade.TradeID.String()),
				zap.Error(err))
		} else {
			state, notes := req.EmotionalState, req.Notes
			if state != "" {
				trade.EmotionalState = &state
			}
			if notes != "" {
				trade.Notes = &notes
			}
		}
	}

	s.logger.Info("trade exit journaled",
		zap.String("trade_id", trade.TradeID.String()),
		zap.String("symbol", trade.Symbol),
		zap.String("reason", string(reason)),
		zap.Float64("realized_pnl", *trade.RealizedPnL))
	return trade, nil
}

// Trade returns one journaled trade by id
func (s *Service) Trade(ctx context.Context, tradeID uuid.UUID) (*models.TradeRecord, error) {
	trade, err := s.repo.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, repositories.ErrTradeNotFound) {
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "trade not found", nil).
				WithDetail("trade_id", tradeID.String())
		}
		return nil, services.WrapInternal("failed to load trade", err)
	}
	return trade, nil
}

// TrackTick records one position snapshot for max profit/loss tracking
func (s *Service) TrackTick(ctx context.Context, tradeID uuid.UUID, ltp, unrealizedPnL, delta float64) error {
	if err := s.repo.RecordTick(ctx, tradeID, ltp, unrealizedPnL, delta); err != nil {
		return services.WrapInternal("failed to record position tick", err)
	}
	return nil
}

// OpenTrades returns all journal trades without an exit, newest first
func (s *Service) OpenTrades(ctx context.Context) ([]*models.TradeRecord, error) {
	trades, err := s.repo.OpenTrades(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to load open trades", err)
	}
	return trades, nil
}

// AddLesson records a trading lesson
func (s *Service) AddLesson(ctx context.Context, req models.LessonRequest) (*models.Lesson, error) {
	severity := req.Severity
	if severity == "" {
		severity = models.LessonSeverityMinor
	}

	now := time.Now().In(s.exchange)
	lesson := &models.Lesson{
		Date:      now,
		TradeID:   req.TradeID,
		Category:  req.Category,
		Lesson:    req.Lesson,
		Severity:  severity,
		CreatedAt: now,
	}
	if req.ActionPlan != "" {
		plan := req.ActionPlan
		lesson.ActionPlan = &plan
	}

	if err := s.repo.InsertLesson(ctx, lesson); err != nil {
		return nil, services.WrapInternal("failed to record lesson", err)
	}
	return lesson, nil
}

// RecentLessons returns the newest lessons, at most limit of them
func (s *Service) RecentLessons(ctx context.Context, limit int) ([]*models.Lesson, error) {
	if limit <= 0 {
		limit = defaultLessonLimit
	}
	lessons, err := s.repo.RecentLessons(ctx, limit)
	if err != nil {
		return nil, services.WrapInternal("failed to load lessons", err)
	}
	return lessons, nil
}

// Performance assembles the behavioural analytics view over a lookback window
func (s *Service) Performance(ctx context.Context, days int) (*models.PerformanceSummary, error) {
	if days <= 0 {
		days = defaultPerformanceDays
	}

	overall, err := s.repo.OverallStats(ctx, days)
	if err != nil {
		return nil, services.WrapInternal("failed to aggregate performance", err)
	}
	byDay, err := s.repo.BreakdownByDayOfWeek(ctx, days)
	if err != nil {
		return nil, services.WrapInternal("failed to aggregate day-of-week breakdown", err)
	}
	byExpiry, err := s.repo.BreakdownByExpiryDay(ctx, days)
	if err != nil {
		return nil, services.WrapInternal("failed to aggregate expiry-day breakdown", err)
	}
	byEmotion, err := s.repo.BreakdownByEmotion(ctx, days)
	if err != nil {
		return nil, services.WrapInternal("failed to aggregate emotional breakdown", err)
	}
	byVIX, err := s.repo.BreakdownByVIXBand(ctx, days)
	if err != nil {
		return nil, services.WrapInternal("failed to aggregate vix breakdown", err)
	}

	winRate := 0.0
	if overall.TotalTrades > 0 {
		winRate = float64(overall.WinningTrades) * 100 / float64(overall.TotalTrades)
	}

	return &models.PerformanceSummary{
		Days:              days,
		Overall:           *overall,
		WinRate:           winRate,
		ByDayOfWeek:       byDay,
		ExpiryDayAnalysis: byExpiry,
		EmotionalAnalysis: byEmotion,
		VIXCorrelation:    byVIX,
	}, nil
}

// SyncPositions reconciles the journal's open trades against a live positions
// snapshot. Live positions with no journal row are recorded as broker-side
// trades; open journal rows whose position has disappeared are closed flat
// with reason sync_lost. Only live snapshots may drive the reconciliation —
// cached or empty data says nothing about what the broker actually holds.
func (s *Service) SyncPositions(ctx context.Context, snapshot models.PositionsSnapshot) (*models.SyncResult, error) {
	if snapshot.Reliability != models.ReliabilityLive {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "positions sync requires a live snapshot", nil).
			WithDetail("source", string(snapshot.Source)).
			WithDetail("reliability", string(snapshot.Reliability))
	}

	open, err := s.repo.OpenTrades(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to load open trades", err)
	}

	journaled := make(map[string]bool, len(open))
	for _, trade := range open {
		journaled[trade.Symbol] = true
	}

	result := &models.SyncResult{}

	live := make(map[string]bool, len(snapshot.Positions))
	for _, pos := range snapshot.Positions {
		if pos.Quantity == 0 {
			continue
		}
		live[pos.Symbol] = true
		if journaled[pos.Symbol] {
			continue
		}

		// A position we never saw enter: opened directly at the broker.
		// Greeks are unknown here; DTE 1 keeps the expiry-day flags unset.
		if _, err := s.RecordEntry(ctx, models.JournalEntryRequest{
			Symbol:     pos.Symbol,
			Quantity:   math.Abs(pos.Quantity),
			EntryPrice: pos.AveragePrice,
			Source:     models.TradeSourceBroker,
			Context:    models.MarketContext{DTE: 1},
		}); err != nil {
			return result, err
		}
		result.Added++
	}

	now := time.Now().In(s.exchange)
	for _, trade := range open {
		if live[trade.Symbol] {
			continue
		}

		// The journal thinks this is open but no source reports it anymore.
		// The real exit price was never observed, so close it flat.
		trade.MarkClosed(trade.EntryPrice, "", models.ExitReasonSyncLost, models.MarketContext{}, now)
		if err := s.repo.CloseTrade(ctx, trade); err != nil {
			return result, services.WrapInternal("failed to close lost trade", err)
		}
		s.logger.Warn("open journal trade no longer reported by any source, closed flat",
			zap.String("trade_id", trade.TradeID.String()),
			zap.String("symbol", trade.Symbol))
		result.Closed++
	}

	if result.Added > 0 || result.Closed > 0 {
		s.logger.Info("positions reconciled with journal",
			zap.Int("added", result.Added),
			zap.Int("closed", result.Closed))
	}
	return result, nil
}
