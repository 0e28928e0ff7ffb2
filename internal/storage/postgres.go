// Package storage - postgres.go is the live-mode Store backend.
//
// Connects through database/sql with the pgx/v5 stdlib driver, the same
// combination the teacher's cmd/daily-stats and scripts/run_migration use,
// rather than a pgxpool handle — this package issues few, cheap
// statements (one row per position write, one append per trade) so a
// pooled *sql.DB is sufficient.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nitinkhare/intradaytrader/internal/position"
)

const schema = `
CREATE TABLE IF NOT EXISTS open_positions (
	symbol     TEXT PRIMARY KEY,
	snapshot   BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS completed_trades (
	id                  BIGSERIAL PRIMARY KEY,
	symbol              TEXT NOT NULL,
	side                TEXT NOT NULL,
	qty                 INTEGER NOT NULL,
	entry_price         DOUBLE PRECISION NOT NULL,
	exit_price          DOUBLE PRECISION NOT NULL,
	entry_ts            TIMESTAMPTZ NOT NULL,
	exit_ts             TIMESTAMPTZ NOT NULL,
	realized_pnl        DOUBLE PRECISION NOT NULL,
	exit_reason         TEXT NOT NULL,
	strategy            TEXT NOT NULL,
	confidence_at_entry DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS completed_trades_exit_ts_idx ON completed_trades (exit_ts);
`

// PostgresStore implements Store against Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: connection string is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (ps *PostgresStore) SaveOpenPosition(ctx context.Context, symbol string, snapshot []byte) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO open_positions (symbol, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (symbol) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, symbol, snapshot)
	if err != nil {
		return fmt.Errorf("postgres store: save open position %s: %w", symbol, err)
	}
	return nil
}

func (ps *PostgresStore) DeleteOpenPosition(ctx context.Context, symbol string) error {
	if _, err := ps.db.ExecContext(ctx, `DELETE FROM open_positions WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("postgres store: delete open position %s: %w", symbol, err)
	}
	return nil
}

func (ps *PostgresStore) LoadOpenPositions(ctx context.Context) (map[string][]byte, error) {
	rows, err := ps.db.QueryContext(ctx, `SELECT symbol, snapshot FROM open_positions`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: load open positions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var symbol string
		var snapshot []byte
		if err := rows.Scan(&symbol, &snapshot); err != nil {
			return nil, fmt.Errorf("postgres store: scan open position: %w", err)
		}
		out[symbol] = snapshot
	}
	return out, rows.Err()
}

func (ps *PostgresStore) AppendCompletedTrade(ctx context.Context, trade position.CompletedTrade) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO completed_trades
			(symbol, side, qty, entry_price, exit_price, entry_ts, exit_ts, realized_pnl, exit_reason, strategy, confidence_at_entry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, trade.Symbol, string(trade.Side), trade.Qty, trade.EntryPrice, trade.ExitPrice,
		trade.EntryTs, trade.ExitTs, trade.RealizedPnL, trade.ExitReason, trade.Strategy, trade.ConfidenceAtEntry)
	if err != nil {
		return fmt.Errorf("postgres store: append completed trade %s: %w", trade.Symbol, err)
	}
	return nil
}

func (ps *PostgresStore) ListCompletedTrades(ctx context.Context, from, to time.Time) ([]position.CompletedTrade, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT symbol, side, qty, entry_price, exit_price, entry_ts, exit_ts, realized_pnl, exit_reason, strategy, confidence_at_entry
		FROM completed_trades
		WHERE exit_ts >= $1 AND exit_ts < $2
		ORDER BY exit_ts ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list completed trades: %w", err)
	}
	defer rows.Close()

	var out []position.CompletedTrade
	for rows.Next() {
		var t position.CompletedTrade
		var side string
		if err := rows.Scan(&t.Symbol, &side, &t.Qty, &t.EntryPrice, &t.ExitPrice,
			&t.EntryTs, &t.ExitTs, &t.RealizedPnL, &t.ExitReason, &t.Strategy, &t.ConfidenceAtEntry); err != nil {
			return nil, fmt.Errorf("postgres store: scan completed trade: %w", err)
		}
		t.Side = position.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) DeleteCompletedTrades(ctx context.Context, from, to time.Time) (int64, error) {
	result, err := ps.db.ExecContext(ctx, `DELETE FROM completed_trades WHERE exit_ts >= $1 AND exit_ts < $2`, from, to)
	if err != nil {
		return 0, fmt.Errorf("postgres store: delete completed trades: %w", err)
	}
	return result.RowsAffected()
}

func (ps *PostgresStore) ClearOpenPositions(ctx context.Context) (int64, error) {
	result, err := ps.db.ExecContext(ctx, `DELETE FROM open_positions`)
	if err != nil {
		return 0, fmt.Errorf("postgres store: clear open positions: %w", err)
	}
	return result.RowsAffected()
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
