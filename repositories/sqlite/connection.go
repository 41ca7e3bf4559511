// Package sqlite implements the journal repository on an embedded SQLite
// database. The driver is pure Go, so the gateway builds without CGo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,

    trade_id   TEXT UNIQUE NOT NULL,
    session_id TEXT NOT NULL,
    source     TEXT NOT NULL,

    symbol          TEXT NOT NULL,
    instrument_type TEXT,
    strike          REAL,
    expiry_tag      TEXT,
    quantity        REAL NOT NULL,

    entry_time     TIMESTAMP NOT NULL,
    entry_price    REAL NOT NULL,
    entry_order_id TEXT,

    spot_at_entry    REAL,
    vix_at_entry     REAL,
    iv_rank_at_entry REAL,
    dte_at_entry     REAL,
    delta_at_entry   REAL,
    gamma_at_entry   REAL,
    theta_at_entry   REAL,

    day_of_week   TEXT,
    is_expiry_day BOOLEAN,
    is_zero_dte   BOOLEAN,
    hour_of_entry INTEGER,
    was_planned   BOOLEAN DEFAULT 1,

    exit_time     TIMESTAMP,
    exit_price    REAL,
    exit_order_id TEXT,
    exit_reason   TEXT,

    realized_pnl     REAL,
    realized_pnl_pct REAL,

    spot_at_exit  REAL,
    vix_at_exit   REAL,
    delta_at_exit REAL,

    hold_duration_minutes INTEGER,
    max_profit            REAL DEFAULT 0,
    max_loss              REAL DEFAULT 0,

    emotional_state TEXT,
    notes           TEXT,

    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS position_tracking (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trade_id       TEXT NOT NULL,
    timestamp      TIMESTAMP NOT NULL,
    ltp            REAL,
    unrealized_pnl REAL,
    delta          REAL,
    FOREIGN KEY (trade_id) REFERENCES trades(trade_id)
);

CREATE TABLE IF NOT EXISTS daily_summary (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT UNIQUE NOT NULL,

    total_trades   INTEGER,
    winning_trades INTEGER,
    losing_trades  INTEGER,
    total_pnl      REAL,
    largest_win    REAL,
    largest_loss   REAL,

    avg_vix     REAL,
    avg_iv_rank REAL,

    trades_in_fear  INTEGER DEFAULT 0,
    trades_in_greed INTEGER DEFAULT 0,
    panic_exits     INTEGER DEFAULT 0,

    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lessons_learned (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date        TEXT NOT NULL,
    trade_id    TEXT,
    category    TEXT,
    lesson      TEXT NOT NULL,
    severity    TEXT,
    action_plan TEXT,
    created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (trade_id) REFERENCES trades(trade_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol    ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
CREATE INDEX IF NOT EXISTS idx_trades_session   ON trades(session_id);
CREATE INDEX IF NOT EXISTS idx_tracking_trade   ON position_tracking(trade_id);
CREATE INDEX IF NOT EXISTS idx_lessons_created  ON lessons_learned(created_at);
`

// DB wraps the sql.DB handle for the journal database
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB opens (or creates) the journal database at path and applies the
// schema. SQLite is single-writer, so the pool is pinned to one connection.
func NewDB(path string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}

	logger.Info("journal database ready", zap.String("path", path))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("closing journal database")
	return db.DB.Close()
}

// HealthCheck verifies the database still answers queries
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("journal database health check failed: %w", err)
	}
	return nil
}
