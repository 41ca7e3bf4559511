package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeSource records how a trade got into the book
type TradeSource string

const (
	TradeSourceAppAuto   TradeSource = "app_auto"
	TradeSourceAppManual TradeSource = "app_manual"
	TradeSourceBroker    TradeSource = "broker"
	TradeSourceUnknown   TradeSource = "unknown"
)

// ExitReason classifies why a trade was closed
type ExitReason string

const (
	ExitReasonManual     ExitReason = "manual"
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonTarget     ExitReason = "target"
	ExitReasonRoll       ExitReason = "roll"
	ExitReasonEndOfDay   ExitReason = "eod"
	ExitReasonGammaPanic ExitReason = "gamma_panic"
	ExitReasonSyncLost   ExitReason = "sync_lost"
)

// MarketContext is the market state captured alongside a trade event
type MarketContext struct {
	Spot    float64 `json:"spot"`
	VIX     float64 `json:"vix"`
	IVRank  float64 `json:"iv_rank"`
	DTE     float64 `json:"dte"`
	Delta   float64 `json:"delta"`
	Gamma   float64 `json:"gamma"`
	Theta   float64 `json:"theta"`
	PCR     float64 `json:"pcr,omitempty"`
	MaxPain float64 `json:"max_pain,omitempty"`
}

// TradeRecord is one journaled trade leg, entry through exit. SessionID links
// the legs of a multi-leg structure (both legs of a strangle share one).
type TradeRecord struct {
	TradeID        uuid.UUID   `json:"trade_id" db:"trade_id"`
	SessionID      uuid.UUID   `json:"session_id" db:"session_id"`
	Source         TradeSource `json:"source" db:"source"`
	Symbol         string      `json:"symbol" db:"symbol"`
	InstrumentType string      `json:"instrument_type" db:"instrument_type"` // CE or PE
	Strike         float64     `json:"strike" db:"strike"`
	ExpiryTag      string      `json:"expiry_tag" db:"expiry_tag"` // e.g. 25NOV

	Quantity     float64   `json:"quantity" db:"quantity"`
	EntryTime    time.Time `json:"entry_time" db:"entry_time"`
	EntryPrice   float64   `json:"entry_price" db:"entry_price"`
	EntryOrderID string    `json:"entry_order_id,omitempty" db:"entry_order_id"`

	SpotAtEntry   float64 `json:"spot_at_entry" db:"spot_at_entry"`
	VIXAtEntry    float64 `json:"vix_at_entry" db:"vix_at_entry"`
	IVRankAtEntry float64 `json:"iv_rank_at_entry" db:"iv_rank_at_entry"`
	DTEAtEntry    float64 `json:"dte_at_entry" db:"dte_at_entry"`
	DeltaAtEntry  float64 `json:"delta_at_entry" db:"delta_at_entry"`
	GammaAtEntry  float64 `json:"gamma_at_entry" db:"gamma_at_entry"`
	ThetaAtEntry  float64 `json:"theta_at_entry" db:"theta_at_entry"`

	DayOfWeek   string `json:"day_of_week" db:"day_of_week"`
	IsExpiryDay bool   `json:"is_expiry_day" db:"is_expiry_day"`
	IsZeroDTE   bool   `json:"is_zero_dte" db:"is_zero_dte"`
	HourOfEntry int    `json:"hour_of_entry" db:"hour_of_entry"`
	WasPlanned  bool   `json:"was_planned" db:"was_planned"`

	ExitTime       *time.Time  `json:"exit_time,omitempty" db:"exit_time"`
	ExitPrice      *float64    `json:"exit_price,omitempty" db:"exit_price"`
	ExitOrderID    *string     `json:"exit_order_id,omitempty" db:"exit_order_id"`
	ExitReason     *ExitReason `json:"exit_reason,omitempty" db:"exit_reason"`
	RealizedPnL    *float64    `json:"realized_pnl,omitempty" db:"realized_pnl"`
	RealizedPnLPct *float64    `json:"realized_pnl_pct,omitempty" db:"realized_pnl_pct"`

	SpotAtExit  *float64 `json:"spot_at_exit,omitempty" db:"spot_at_exit"`
	VIXAtExit   *float64 `json:"vix_at_exit,omitempty" db:"vix_at_exit"`
	DeltaAtExit *float64 `json:"delta_at_exit,omitempty" db:"delta_at_exit"`
	HoldMinutes *int     `json:"hold_minutes,omitempty" db:"hold_duration_minutes"`

	MaxProfit float64 `json:"max_profit" db:"max_profit"`
	MaxLoss   float64 `json:"max_loss" db:"max_loss"`

	EmotionalState *string   `json:"emotional_state,omitempty" db:"emotional_state"`
	Notes          *string   `json:"notes,omitempty" db:"notes"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the TradeRecord model
func (TradeRecord) TableName() string {
	return "trades"
}

// IsOpen reports whether the trade has not been exited yet
func (tr *TradeRecord) IsOpen() bool {
	return tr.ExitTime == nil
}

// MarkClosed fills in the exit side of the record. Short option legs profit
// when price drops, so realized P&L is (entry - exit) * quantity.
func (tr *TradeRecord) MarkClosed(exitPrice float64, orderID string, reason ExitReason, ctx MarketContext, at time.Time) {
	pnl := (tr.EntryPrice - exitPrice) * tr.Quantity
	pct := 0.0
	if tr.EntryPrice > 0 {
		pct = (tr.EntryPrice - exitPrice) / tr.EntryPrice * 100
	}
	hold := int(at.Sub(tr.EntryTime).Minutes())

	tr.ExitTime = &at
	tr.ExitPrice = &exitPrice
	if orderID != "" {
		tr.ExitOrderID = &orderID
	}
	tr.ExitReason = &reason
	tr.RealizedPnL = &pnl
	tr.RealizedPnLPct = &pct
	tr.SpotAtExit = &ctx.Spot
	tr.VIXAtExit = &ctx.VIX
	tr.DeltaAtExit = &ctx.Delta
	tr.HoldMinutes = &hold
	tr.UpdatedAt = at
}

// LessonCategory buckets a lesson for later review
type LessonCategory string

const (
	LessonCategoryEntry     LessonCategory = "entry"
	LessonCategoryExit      LessonCategory = "exit"
	LessonCategoryRiskMgmt  LessonCategory = "risk_mgmt"
	LessonCategoryEmotional LessonCategory = "emotional"
	LessonCategoryStrategy  LessonCategory = "strategy"
)

// LessonSeverity grades how costly the lesson was
type LessonSeverity string

const (
	LessonSeverityMinor    LessonSeverity = "minor"
	LessonSeverityMajor    LessonSeverity = "major"
	LessonSeverityCritical LessonSeverity = "critical"
)

// Lesson is one recorded trading lesson, optionally linked to a trade
type Lesson struct {
	ID         int64          `json:"id" db:"id"`
	Date       time.Time      `json:"date" db:"date"`
	TradeID    *uuid.UUID     `json:"trade_id,omitempty" db:"trade_id"`
	Category   LessonCategory `json:"category" db:"category"`
	Lesson     string         `json:"lesson" db:"lesson"`
	Severity   LessonSeverity `json:"severity" db:"severity"`
	ActionPlan *string        `json:"action_plan,omitempty" db:"action_plan"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Lesson model
func (Lesson) TableName() string {
	return "lessons_learned"
}

// JournalEntryRequest records a trade entry from outside the execution path,
// e.g. a position opened directly at the broker.
type JournalEntryRequest struct {
	Symbol     string        `json:"symbol" validate:"required"`
	Quantity   float64       `json:"quantity" validate:"required,gt=0"`
	EntryPrice float64       `json:"entry_price" validate:"required,gt=0"`
	OrderID    string        `json:"order_id,omitempty"`
	Source     TradeSource   `json:"source,omitempty"`
	SessionID  *uuid.UUID    `json:"session_id,omitempty"`
	Context    MarketContext `json:"context"`
}

// JournalExitRequest closes a journaled trade by id
type JournalExitRequest struct {
	TradeID        uuid.UUID     `json:"trade_id" validate:"required"`
	ExitPrice      float64       `json:"exit_price" validate:"required,gt=0"`
	OrderID        string        `json:"order_id,omitempty"`
	Reason         ExitReason    `json:"reason,omitempty"`
	EmotionalState string        `json:"emotional_state,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	Context        MarketContext `json:"context"`
}

// LessonRequest records a new lesson
type LessonRequest struct {
	TradeID    *uuid.UUID     `json:"trade_id,omitempty"`
	Category   LessonCategory `json:"category" validate:"required"`
	Lesson     string         `json:"lesson" validate:"required"`
	Severity   LessonSeverity `json:"severity,omitempty"`
	ActionPlan string         `json:"action_plan,omitempty"`
}

// SyncResult reports what a journal/positions reconciliation changed
type SyncResult struct {
	Added  int `json:"added"`
	Closed int `json:"closed"`
}

// OverallStats is the headline performance block
type OverallStats struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	TotalPnL       float64 `json:"total_pnl"`
	AvgPnL         float64 `json:"avg_pnl"`
	LargestWin     float64 `json:"largest_win"`
	LargestLoss    float64 `json:"largest_loss"`
	AvgHoldMinutes float64 `json:"avg_hold_minutes"`
	AvgPnLPct      float64 `json:"avg_pnl_pct"`
}

// BreakdownRow is one grouped performance row (by day of week, VIX band, etc.)
type BreakdownRow struct {
	Label   string  `json:"label"`
	Trades  int     `json:"trades"`
	AvgPnL  float64 `json:"avg_pnl"`
	WinRate float64 `json:"win_rate"`
}

// PerformanceSummary is the full analytics view over a lookback window
type PerformanceSummary struct {
	Days              int            `json:"days"`
	Overall           OverallStats   `json:"overall"`
	WinRate           float64        `json:"win_rate"`
	ByDayOfWeek       []BreakdownRow `json:"by_day_of_week"`
	ExpiryDayAnalysis []BreakdownRow `json:"expiry_day_analysis"`
	EmotionalAnalysis []BreakdownRow `json:"emotional_analysis"`
	VIXCorrelation    []BreakdownRow `json:"vix_correlation"`
}

// DailySummary is one day's aggregated trading results
type DailySummary struct {
	Date          time.Time `json:"date" db:"date"`
	TotalTrades   int       `json:"total_trades" db:"total_trades"`
	WinningTrades int       `json:"winning_trades" db:"winning_trades"`
	LosingTrades  int       `json:"losing_trades" db:"losing_trades"`
	TotalPnL      float64   `json:"total_pnl" db:"total_pnl"`
	LargestWin    float64   `json:"largest_win" db:"largest_win"`
	LargestLoss   float64   `json:"largest_loss" db:"largest_loss"`
	AvgVIX        float64   `json:"avg_vix" db:"avg_vix"`
	AvgIVRank     float64   `json:"avg_iv_rank" db:"avg_iv_rank"`
	TradesInFear  int       `json:"trades_in_fear" db:"trades_in_fear"`
	TradesInGreed int       `json:"trades_in_greed" db:"trades_in_greed"`
	PanicExits    int       `json:"panic_exits" db:"panic_exits"`
}

// TableName returns the table name for the DailySummary model
func (DailySummary) TableName() string {
	return "daily_summary"
}
