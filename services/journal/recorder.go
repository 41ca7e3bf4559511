package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services"
	"go.uber.org/zap"
)

// Router-side recording hooks. These run after a successful upstream
// execution; the router logs any error and carries on, so nothing here may
// block or fail the trading path.

// RecordExecution journals one entry per filled leg, linked by a shared
// session id. A nil market context is tolerated — the fields stay zero.
func (s *Service) RecordExecution(ctx context.Context, req models.ExecutionRequest, result *models.ExecutionResult, mkt *models.MarketContext) error {
	if result == nil || len(result.Orders) == 0 {
		return nil
	}

	mktCtx := models.MarketContext{}
	if mkt != nil {
		mktCtx = *mkt
	}

	source := models.TradeSourceAppManual
	if req.AutoTrade {
		source = models.TradeSourceAppAuto
	}

	sessionID := uuid.New()
	for _, leg := range result.Orders {
		if _, err := s.RecordEntry(ctx, models.JournalEntryRequest{
			Symbol:     leg.Symbol,
			Quantity:   float64(req.Quantity),
			EntryPrice: leg.FillPrice,
			OrderID:    leg.OrderID,
			Source:     source,
			SessionID:  &sessionID,
			Context:    mktCtx,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RecordExit closes the newest open journal trade for the symbol. The fill
// price from the close order is used when present; without one the trade is
// closed flat. A symbol with no open journal trade is not an error.
func (s *Service) RecordExit(ctx context.Context, req models.CloseRequest, result *models.ExecutionResult) error {
	trade, err := s.newestOpenBySymbol(ctx, req.Symbol)
	if err != nil {
		return err
	}
	if trade == nil {
		s.logger.Debug("no open journal trade for closed symbol", zap.String("symbol", req.Symbol))
		return nil
	}

	exitPrice := trade.EntryPrice
	orderID := ""
	if result != nil && len(result.Orders) > 0 {
		if result.Orders[0].FillPrice > 0 {
			exitPrice = result.Orders[0].FillPrice
		}
		orderID = result.Orders[0].OrderID
	}

	trade.MarkClosed(exitPrice, orderID, models.ExitReasonManual, models.MarketContext{}, time.Now().In(s.exchange))
	if err := s.repo.CloseTrade(ctx, trade); err != nil {
		return services.WrapInternal("failed to record trade exit", err)
	}

	s.logger.Info("trade exit journaled",
		zap.String("trade_id", trade.TradeID.String()),
		zap.String("symbol", trade.Symbol))
	return nil
}

// RecordCloseAll closes every open journal trade flat. The upstream reports
// only a count, not per-symbol fills, so exit prices are unknown here.
func (s *Service) RecordCloseAll(ctx context.Context, result *models.CloseAllResult) error {
	open, err := s.repo.OpenTrades(ctx)
	if err != nil {
		return services.WrapInternal("failed to load open trades", err)
	}

	now := time.Now().In(s.exchange)
	for _, trade := range open {
		trade.MarkClosed(trade.EntryPrice, "", models.ExitReasonManual, models.MarketContext{}, now)
		if err := s.repo.CloseTrade(ctx, trade); err != nil {
			return services.WrapInternal("failed to record close-all exit", err)
		}
	}

	if len(open) > 0 {
		upstreamClosed := 0
		if result != nil {
			upstreamClosed = result.ClosedCount
		}
		s.logger.Info("close-all journaled",
			zap.Int("journal_trades", len(open)),
			zap.Int("upstream_closed", upstreamClosed))
	}
	return nil
}

func (s *Service) newestOpenBySymbol(ctx context.Context, symbol string) (*models.TradeRecord, error) {
	open, err := s.repo.OpenTrades(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to load open trades", err)
	}
	for _, trade := range open {
		if trade.Symbol == symbol {
			return trade, nil // open trades are ordered newest first
		}
	}
	return nil, nil
}
