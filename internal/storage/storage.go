// Package storage implements the persistence boundary consumed by
// internal/position (spec §6): an append-only CompletedTrade log plus a
// key-value store of open-position snapshots keyed by symbol. Every write
// must be durable before the next order is submitted (spec §5), so both
// implementations in this package commit synchronously — no write-behind
// buffering.
//
// PostgresStore is the live-mode backend (grounded on the teacher's
// database/sql + pgx/v5/stdlib driver registration). BoltStore backs
// dryRun and any session with no configured DSN, so paper trading never
// requires a running database.
package storage

import (
	"context"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/position"
)

// Store satisfies position.Store and additionally lets report generation
// read back the completed-trade log. position.Store itself is
// intentionally append-only — the engine never needs to re-read history,
// only internal/report does.
type Store interface {
	position.Store

	// ListCompletedTrades returns every CompletedTrade whose ExitTs falls
	// in [from, to), ordered by ExitTs ascending.
	ListCompletedTrades(ctx context.Context, from, to time.Time) ([]position.CompletedTrade, error)

	// DeleteCompletedTrades removes every CompletedTrade whose ExitTs falls
	// in [from, to) and returns the count removed. Used by the clear-trades
	// operator tool to reset a session without touching other days' history.
	DeleteCompletedTrades(ctx context.Context, from, to time.Time) (int64, error)

	// ClearOpenPositions removes every open-position snapshot and returns
	// the count removed. Used by the clear-trades operator tool to discard
	// stray state left over from a session that never reached flattenAll.
	ClearOpenPositions(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
