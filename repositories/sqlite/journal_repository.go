package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/repositories"
	"go.uber.org/zap"
)

// Timestamps are stored as UTC RFC3339 text so that string comparison in SQL
// matches chronological order.
const tradeColumns = `trade_id, session_id, source, symbol, instrument_type, strike, expiry_tag,
	quantity, entry_time, entry_price, entry_order_id,
	spot_at_entry, vix_at_entry, iv_rank_at_entry, dte_at_entry,
	delta_at_entry, gamma_at_entry, theta_at_entry,
	day_of_week, is_expiry_day, is_zero_dte, hour_of_entry, was_planned,
	exit_time, exit_price, exit_order_id, exit_reason,
	realized_pnl, realized_pnl_pct, spot_at_exit, vix_at_exit, delta_at_exit,
	hold_duration_minutes, max_profit, max_loss, emotional_state, notes, updated_at`

// JournalRepository implements the repositories.JournalRepository interface
type JournalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *DB, logger *zap.Logger) repositories.JournalRepository {
	return &JournalRepository{
		db:     db,
		logger: logger,
	}
}

// InsertTrade inserts a new trade entry row
func (r *JournalRepository) InsertTrade(ctx context.Context, trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (
			trade_id, session_id, source, symbol, instrument_type, strike, expiry_tag,
			quantity, entry_time, entry_price, entry_order_id,
			spot_at_entry, vix_at_entry, iv_rank_at_entry, dte_at_entry,
			delta_at_entry, gamma_at_entry, theta_at_entry,
			day_of_week, is_expiry_day, is_zero_dte, hour_of_entry, was_planned,
			max_profit, max_loss, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		trade.TradeID.String(),
		trade.SessionID.String(),
		string(trade.Source),
		trade.Symbol,
		trade.InstrumentType,
		trade.Strike,
		trade.ExpiryTag,
		trade.Quantity,
		trade.EntryTime.UTC(),
		trade.EntryPrice,
		trade.EntryOrderID,
		trade.SpotAtEntry,
		trade.VIXAtEntry,
		trade.IVRankAtEntry,
		trade.DTEAtEntry,
		trade.DeltaAtEntry,
		trade.GammaAtEntry,
		trade.ThetaAtEntry,
		trade.DayOfWeek,
		trade.IsExpiryDay,
		trade.IsZeroDTE,
		trade.HourOfEntry,
		trade.WasPlanned,
		trade.MaxProfit,
		trade.MaxLoss,
		trade.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	r.logger.Debug("trade entry recorded",
		zap.String("trade_id", trade.TradeID.String()),
		zap.String("symbol", trade.Symbol))
	return nil
}

// CloseTrade writes the exit side of an existing trade and refreshes that
// day's summary row in a single transaction.
func (r *JournalRepository) CloseTrade(ctx context.Context, trade *models.TradeRecord) error {
	if trade.ExitTime == nil {
		return fmt.Errorf("trade %s has no exit to record", trade.TradeID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE trades SET
			exit_time = ?, exit_price = ?, exit_order_id = ?, exit_reason = ?,
			realized_pnl = ?, realized_pnl_pct = ?,
			spot_at_exit = ?, vix_at_exit = ?, delta_at_exit = ?,
			hold_duration_minutes = ?, updated_at = ?
		WHERE trade_id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		trade.ExitTime.UTC(),
		trade.ExitPrice,
		trade.ExitOrderID,
		trade.ExitReason,
		trade.RealizedPnL,
		trade.RealizedPnLPct,
		trade.SpotAtExit,
		trade.VIXAtExit,
		trade.DeltaAtExit,
		trade.HoldMinutes,
		trade.UpdatedAt.UTC(),
		trade.TradeID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to close trade: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read close result: %w", err)
	}
	if affected == 0 {
		return repositories.ErrTradeNotFound
	}

	// Summaries group by entry day, same as manual review does.
	if err := refreshDailySummary(ctx, tx, trade.EntryTime); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade close: %w", err)
	}

	r.logger.Debug("trade exit recorded",
		zap.String("trade_id", trade.TradeID.String()),
		zap.String("symbol", trade.Symbol))
	return nil
}

// GetTrade retrieves one trade by id
func (r *JournalRepository) GetTrade(ctx context.Context, tradeID uuid.UUID) (*models.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = ?`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, tradeID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrTradeNotFound
		}
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return trade, nil
}

// FindOpenTrade matches the newest open trade with this symbol and entry price
func (r *JournalRepository) FindOpenTrade(ctx context.Context, symbol string, entryPrice float64) (*models.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE symbol = ? AND entry_price = ? AND exit_time IS NULL
		ORDER BY entry_time DESC
		LIMIT 1
	`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, symbol, entryPrice))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrTradeNotFound
		}
		return nil, fmt.Errorf("failed to find open trade: %w", err)
	}
	return trade, nil
}

// OpenTrades returns every trade without an exit, newest entry first
func (r *JournalRepository) OpenTrades(ctx context.Context) ([]*models.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE exit_time IS NULL
		ORDER BY entry_time DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*models.TradeRecord, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan open trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open trades: %w", err)
	}
	return trades, nil
}

// RecordTick appends a tracking row and raises the trade's profit/loss
// high-water marks.
func (r *JournalRepository) RecordTick(ctx context.Context, tradeID uuid.UUID, ltp, unrealizedPnL, delta float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO position_tracking (trade_id, timestamp, ltp, unrealized_pnl, delta)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insert, tradeID.String(), time.Now().UTC(), ltp, unrealizedPnL, delta); err != nil {
		return fmt.Errorf("failed to insert position tick: %w", err)
	}

	update := `
		UPDATE trades SET
			max_profit = MAX(max_profit, ?),
			max_loss = MIN(max_loss, ?),
			updated_at = ?
		WHERE trade_id = ?
	`
	if _, err := tx.ExecContext(ctx, update,
		math.Max(unrealizedPnL, 0),
		math.Min(unrealizedPnL, 0),
		time.Now().UTC(),
		tradeID.String(),
	); err != nil {
		return fmt.Errorf("failed to update trade high-water marks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit position tick: %w", err)
	}
	return nil
}

// UpdateTradeNotes sets the post-trade review fields
func (r *JournalRepository) UpdateTradeNotes(ctx context.Context, tradeID uuid.UUID, emotionalState, notes string) error {
	// Empty strings become NULL so unreviewed trades stay out of the
	// emotional-state breakdown.
	query := `UPDATE trades SET emotional_state = NULLIF(?, ''), notes = NULLIF(?, ''), updated_at = ? WHERE trade_id = ?`

	result, err := r.db.ExecContext(ctx, query, emotionalState, notes, time.Now().UTC(), tradeID.String())
	if err != nil {
		return fmt.Errorf("failed to update trade notes: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read notes update result: %w", err)
	}
	if affected == 0 {
		return repositories.ErrTradeNotFound
	}
	return nil
}

// InsertLesson inserts one lesson row
func (r *JournalRepository) InsertLesson(ctx context.Context, lesson *models.Lesson) error {
	query := `
		INSERT INTO lessons_learned (date, trade_id, category, lesson, severity, action_plan, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		lesson.Date.Format("2006-01-02"),
		lesson.TradeID,
		string(lesson.Category),
		lesson.Lesson,
		string(lesson.Severity),
		lesson.ActionPlan,
		lesson.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lesson: %w", err)
	}

	r.logger.Debug("lesson recorded", zap.String("category", string(lesson.Category)))
	return nil
}

// RecentLessons returns the newest lessons up to limit
func (r *JournalRepository) RecentLessons(ctx context.Context, limit int) ([]*models.Lesson, error) {
	query := `
		SELECT id, date, trade_id, category, lesson, severity, action_plan, created_at
		FROM lessons_learned
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	lessons := make([]*models.Lesson, 0, limit)
	for rows.Next() {
		var (
			lesson     models.Lesson
			date       string
			tradeID    sql.NullString
			category   sql.NullString
			severity   sql.NullString
			actionPlan sql.NullString
			createdAt  string
		)

		if err := rows.Scan(&lesson.ID, &date, &tradeID, &category, &lesson.Lesson, &severity, &actionPlan, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}

		lesson.Date, _ = time.Parse("2006-01-02", date)
		lesson.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		lesson.Category = models.LessonCategory(category.String)
		lesson.Severity = models.LessonSeverity(severity.String)
		if tradeID.Valid {
			if id, err := uuid.Parse(tradeID.String); err == nil {
				lesson.TradeID = &id
			}
		}
		if actionPlan.Valid {
			lesson.ActionPlan = &actionPlan.String
		}

		lessons = append(lessons, &lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}
	return lessons, nil
}

// OverallStats aggregates closed trades over the lookback window
func (r *JournalRepository) OverallStats(ctx context.Context, days int) (*models.OverallStats, error) {
	query := `
		SELECT
			COUNT(*) as total_trades,
			COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0) as winning_trades,
			COALESCE(SUM(CASE WHEN realized_pnl < 0 THEN 1 ELSE 0 END), 0) as losing_trades,
			COALESCE(SUM(realized_pnl), 0) as total_pnl,
			COALESCE(AVG(realized_pnl), 0) as avg_pnl,
			COALESCE(MAX(realized_pnl), 0) as largest_win,
			COALESCE(MIN(realized_pnl), 0) as largest_loss,
			COALESCE(AVG(hold_duration_minutes), 0) as avg_hold_minutes,
			COALESCE(AVG(realized_pnl_pct), 0) as avg_pnl_pct
		FROM trades
		WHERE exit_time >= ?
	`

	stats := &models.OverallStats{}
	err := r.db.QueryRowContext(ctx, query, lookbackCutoff(days)).Scan(
		&stats.TotalTrades,
		&stats.WinningTrades,
		&stats.LosingTrades,
		&stats.TotalPnL,
		&stats.AvgPnL,
		&stats.LargestWin,
		&stats.LargestLoss,
		&stats.AvgHoldMinutes,
		&stats.AvgPnLPct,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate performance: %w", err)
	}
	return stats, nil
}

// BreakdownByDayOfWeek groups closed trades by entry weekday
func (r *JournalRepository) BreakdownByDayOfWeek(ctx context.Context, days int) ([]models.BreakdownRow, error) {
	query := `
		SELECT
			day_of_week as label,
			COUNT(*) as trades,
			AVG(realized_pnl) as avg_pnl,
			SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END) * 100.0 / COUNT(*) as win_rate
		FROM trades
		WHERE exit_time >= ?
		GROUP BY day_of_week
	`
	return r.breakdown(ctx, query, days)
}

// BreakdownByExpiryDay splits closed trades by expiry-day entries
func (r *JournalRepository) BreakdownByExpiryDay(ctx context.Context, days int) ([]models.BreakdownRow, error) {
	query := `
		SELECT
			CASE WHEN is_expiry_day THEN 'Expiry day' ELSE 'Non-expiry' END as label,
			COUNT(*) as trades,
			AVG(realized_pnl) as avg_pnl,
			SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END) * 100.0 / COUNT(*) as win_rate
		FROM trades
		WHERE exit_time >= ?
		GROUP BY is_expiry_day
	`
	return r.breakdown(ctx, query, days)
}

// BreakdownByEmotion groups closed trades by recorded emotional state
func (r *JournalRepository) BreakdownByEmotion(ctx context.Context, days int) ([]models.BreakdownRow, error) {
	query := `
		SELECT
			emotional_state as label,
			COUNT(*) as trades,
			AVG(realized_pnl) as avg_pnl,
			SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END) * 100.0 / COUNT(*) as win_rate
		FROM trades
		WHERE exit_time >= ? AND emotional_state IS NOT NULL
		GROUP BY emotional_state
	`
	return r.breakdown(ctx, query, days)
}

// BreakdownByVIXBand groups closed trades by VIX band at entry
func (r *JournalRepository) BreakdownByVIXBand(ctx context.Context, days int) ([]models.BreakdownRow, error) {
	query := `
		SELECT
			CASE
				WHEN vix_at_entry < 12 THEN 'Low (<12)'
				WHEN vix_at_entry < 15 THEN 'Normal (12-15)'
				WHEN vix_at_entry < 18 THEN 'Elevated (15-18)'
				ELSE 'High (>18)'
			END as label,
			COUNT(*) as trades,
			AVG(realized_pnl) as avg_pnl,
			SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END) * 100.0 / COUNT(*) as win_rate
		FROM trades
		WHERE exit_time >= ?
		GROUP BY label
	`
	return r.breakdown(ctx, query, days)
}

func (r *JournalRepository) breakdown(ctx context.Context, query string, days int) ([]models.BreakdownRow, error) {
	rows, err := r.db.QueryContext(ctx, query, lookbackCutoff(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query breakdown: %w", err)
	}
	defer rows.Close()

	out := make([]models.BreakdownRow, 0)
	for rows.Next() {
		var (
			row   models.BreakdownRow
			label sql.NullString
		)
		if err := rows.Scan(&label, &row.Trades, &row.AvgPnL, &row.WinRate); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		row.Label = label.String
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breakdown rows: %w", err)
	}
	return out, nil
}

// refreshDailySummary recomputes the summary row for the trade's entry day.
// Days without any trades never get a row.
func refreshDailySummary(ctx context.Context, tx *sql.Tx, day time.Time) error {
	date := day.UTC().Format("2006-01-02")

	query := `
		SELECT
			COUNT(*) as total_trades,
			COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0) as winning_trades,
			COALESCE(SUM(CASE WHEN realized_pnl < 0 THEN 1 ELSE 0 END), 0) as losing_trades,
			COALESCE(SUM(realized_pnl), 0) as total_pnl,
			COALESCE(MAX(realized_pnl), 0) as largest_win,
			COALESCE(MIN(realized_pnl), 0) as largest_loss,
			COALESCE(AVG(vix_at_entry), 0) as avg_vix,
			COALESCE(AVG(iv_rank_at_entry), 0) as avg_iv_rank,
			COALESCE(SUM(CASE WHEN emotional_state = 'fearful' THEN 1 ELSE 0 END), 0) as trades_in_fear,
			COALESCE(SUM(CASE WHEN emotional_state = 'greedy' THEN 1 ELSE 0 END), 0) as trades_in_greed,
			COALESCE(SUM(CASE WHEN exit_reason = 'gamma_panic' THEN 1 ELSE 0 END), 0) as panic_exits
		FROM trades
		WHERE DATE(entry_time) = ?
	`

	var summary models.DailySummary
	err := tx.QueryRowContext(ctx, query, date).Scan(
		&summary.TotalTrades,
		&summary.WinningTrades,
		&summary.LosingTrades,
		&summary.TotalPnL,
		&summary.LargestWin,
		&summary.LargestLoss,
		&summary.AvgVIX,
		&summary.AvgIVRank,
		&summary.TradesInFear,
		&summary.TradesInGreed,
		&summary.PanicExits,
	)
	if err != nil {
		return fmt.Errorf("failed to compute daily summary: %w", err)
	}

	if summary.TotalTrades == 0 {
		return nil
	}

	upsert := `
		INSERT OR REPLACE INTO daily_summary (
			date, total_trades, winning_trades, losing_trades, total_pnl,
			largest_win, largest_loss, avg_vix, avg_iv_rank,
			trades_in_fear, trades_in_greed, panic_exits
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, upsert,
		date,
		summary.TotalTrades,
		summary.WinningTrades,
		summary.LosingTrades,
		summary.TotalPnL,
		summary.LargestWin,
		summary.LargestLoss,
		summary.AvgVIX,
		summary.AvgIVRank,
		summary.TradesInFear,
		summary.TradesInGreed,
		summary.PanicExits,
	); err != nil {
		return fmt.Errorf("failed to upsert daily summary: %w", err)
	}
	return nil
}

func lookbackCutoff(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.TradeRecord, error) {
	var (
		trade     models.TradeRecord
		tradeID   string
		sessionID string
		source    string
		entryTime string
		updatedAt string

		exitTime       sql.NullString
		exitPrice      sql.NullFloat64
		exitOrderID    sql.NullString
		exitReason     sql.NullString
		realizedPnL    sql.NullFloat64
		realizedPnLPct sql.NullFloat64
		spotAtExit     sql.NullFloat64
		vixAtExit      sql.NullFloat64
		deltaAtExit    sql.NullFloat64
		holdMinutes    sql.NullInt64
		emotionalState sql.NullString
		notes          sql.NullString
	)

	err := row.Scan(
		&tradeID, &sessionID, &source, &trade.Symbol, &trade.InstrumentType, &trade.Strike, &trade.ExpiryTag,
		&trade.Quantity, &entryTime, &trade.EntryPrice, &trade.EntryOrderID,
		&trade.SpotAtEntry, &trade.VIXAtEntry, &trade.IVRankAtEntry, &trade.DTEAtEntry,
		&trade.DeltaAtEntry, &trade.GammaAtEntry, &trade.ThetaAtEntry,
		&trade.DayOfWeek, &trade.IsExpiryDay, &trade.IsZeroDTE, &trade.HourOfEntry, &trade.WasPlanned,
		&exitTime, &exitPrice, &exitOrderID, &exitReason,
		&realizedPnL, &realizedPnLPct, &spotAtExit, &vixAtExit, &deltaAtExit,
		&holdMinutes, &trade.MaxProfit, &trade.MaxLoss, &emotionalState, &notes, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	trade.TradeID, err = uuid.Parse(tradeID)
	if err != nil {
		return nil, fmt.Errorf("invalid trade id %q: %w", tradeID, err)
	}
	trade.SessionID, err = uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	trade.Source = models.TradeSource(source)

	trade.EntryTime, err = time.Parse(time.RFC3339, entryTime)
	if err != nil {
		return nil, fmt.Errorf("invalid entry time %q: %w", entryTime, err)
	}
	trade.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if exitTime.Valid {
		t, err := time.Parse(time.RFC3339, exitTime.String)
		if err != nil {
			return nil, fmt.Errorf("invalid exit time %q: %w", exitTime.String, err)
		}
		trade.ExitTime = &t
	}
	if exitPrice.Valid {
		trade.ExitPrice = &exitPrice.Float64
	}
	if exitOrderID.Valid {
		trade.ExitOrderID = &exitOrderID.String
	}
	if exitReason.Valid {
		reason := models.ExitReason(exitReason.String)
		trade.ExitReason = &reason
	}
	if realizedPnL.Valid {
		trade.RealizedPnL = &realizedPnL.Float64
	}
	if realizedPnLPct.Valid {
		trade.RealizedPnLPct = &realizedPnLPct.Float64
	}
	if spotAtExit.Valid {
		trade.SpotAtExit = &spotAtExit.Float64
	}
	if vixAtExit.Valid {
		trade.VIXAtExit = &vixAtExit.Float64
	}
	if deltaAtExit.Valid {
		trade.DeltaAtExit = &deltaAtExit.Float64
	}
	if holdMinutes.Valid {
		hold := int(holdMinutes.Int64)
		trade.HoldMinutes = &hold
	}
	if emotionalState.Valid {
		trade.EmotionalState = &emotionalState.String
	}
	if notes.Valid {
		trade.Notes = &notes.String
	}

	return &trade, nil
}
