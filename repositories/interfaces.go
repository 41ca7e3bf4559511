// Package repositories defines the persistence contracts for the trade
// journal. The journal is the only durable state the gateway owns; position
// and analysis data always come from the upstreams.
package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vasanthk84/oi-analyzer/models"
)

// ErrTradeNotFound is returned when a lookup matches no trade
var ErrTradeNotFound = errors.New("trade not found")

// JournalRepository handles trade, tick, lesson and daily summary persistence
type JournalRepository interface {
	// InsertTrade writes a new trade entry row
	InsertTrade(ctx context.Context, trade *models.TradeRecord) error

	// CloseTrade writes the exit side of an existing trade and refreshes
	// that day's summary row in a single transaction
	CloseTrade(ctx context.Context, trade *models.TradeRecord) error

	// GetTrade retrieves one trade by id
	GetTrade(ctx context.Context, tradeID uuid.UUID) (*models.TradeRecord, error)

	// FindOpenTrade matches the newest open trade with this symbol and
	// entry price, for reconciling broker positions against the journal
	FindOpenTrade(ctx context.Context, symbol string, entryPrice float64) (*models.TradeRecord, error)

	// OpenTrades returns every trade without an exit, newest entry first
	OpenTrades(ctx context.Context) ([]*models.TradeRecord, error)

	// RecordTick appends a tracking row and raises the trade's
	// profit/loss high-water marks
	RecordTick(ctx context.Context, tradeID uuid.UUID, ltp, unrealizedPnL, delta float64) error

	// UpdateTradeNotes sets the post-trade review fields
	UpdateTradeNotes(ctx context.Context, tradeID uuid.UUID, emotionalState, notes string) error

	// InsertLesson writes one lesson row
	InsertLesson(ctx context.Context, lesson *models.Lesson) error

	// RecentLessons returns the newest lessons up to limit
	RecentLessons(ctx context.Context, limit int) ([]*models.Lesson, error)

	// OverallStats aggregates closed trades over the lookback window
	OverallStats(ctx context.Context, days int) (*models.OverallStats, error)

	// BreakdownByDayOfWeek groups closed trades by entry weekday
	BreakdownByDayOfWeek(ctx context.Context, days int) ([]models.BreakdownRow, error)

	// BreakdownByExpiryDay splits closed trades by expiry-day entries
	BreakdownByExpiryDay(ctx context.Context, days int) ([]models.BreakdownRow, error)

	// BreakdownByEmotion groups closed trades by recorded emotional state
	BreakdownByEmotion(ctx context.Context, days int) ([]models.BreakdownRow, error)

	// BreakdownByVIXBand groups closed trades by VIX band at entry
	BreakdownByVIXBand(ctx context.Context, days int) ([]models.BreakdownRow, error)
}
