// Package position implements the durable active-position set: the single
// owner of every open Position, reached only through its own methods (spec
// §5 — "single-owner components reached by message passing").
//
// Design rules (from spec):
//   - Every state change (create, stop update, close) writes through to
//     the persistence boundary before the change is considered final.
//   - On startup the store rehydrates from persistence and is
//     cross-checked against the broker (Order Manager's reconcile).
//   - Recovery never resets highs/lows to entry price and re-arms
//     trailing immediately if already profitable (internal/trailstop.Rearm).
package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/trailstop"
)

// Side is the position's direction.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is one open (symbol, side) pair, exclusively owned by the Store
// while open.
type Position struct {
	Symbol   string
	Side     Side
	Qty      int
	EntryPrice float64
	EntryTs  time.Time

	Policy policy.Policy // snapshot at entry; later policy edits never apply

	Trail *trailstop.Machine
}

// CompletedTrade is the append-only record produced when a Position closes.
type CompletedTrade struct {
	Symbol        string
	Side          Side
	Qty           int
	EntryPrice    float64
	ExitPrice     float64
	EntryTs       time.Time
	ExitTs        time.Time
	RealizedPnL   float64
	ExitReason    string
	Strategy      string
	ConfidenceAtEntry float64

	// RiskAmount is the dollar risk the position was sized against at
	// entry (stopPct x entryPrice x qty) — the denominator for the EOD
	// report's R-multiple column (spec.md §6).
	RiskAmount float64
}

// Store is the persistence boundary consumed by the position Store (spec
// §6): append-only trade log plus a key-value snapshot store keyed by
// symbol.
type Store interface {
	SaveOpenPosition(ctx context.Context, symbol string, snapshot []byte) error
	DeleteOpenPosition(ctx context.Context, symbol string) error
	LoadOpenPositions(ctx context.Context) (map[string][]byte, error)
	AppendCompletedTrade(ctx context.Context, trade CompletedTrade) error
}

// Codec (de)serializes a Position to/from the byte snapshot the Store
// persists. Kept separate from Store so storage implementations don't need
// to know Position's shape.
type Codec interface {
	Encode(p *Position) ([]byte, error)
	Decode(data []byte) (*Position, error)
}

// Manager is the single owner of every open Position. All access goes
// through its methods; callers never hold a Position pointer across a
// goroutine boundary without going back through Manager.
type Manager struct {
	mu        sync.Mutex
	positions map[string]*Position // keyed by symbol; spec: no two open positions per symbol+direction
	store     Store
	codec     Codec
}

// NewManager builds an empty Manager backed by store/codec.
func NewManager(store Store, codec Codec) *Manager {
	return &Manager{
		positions: make(map[string]*Position),
		store:     store,
		codec:     codec,
	}
}

// Open returns the open position for symbol, or nil.
func (m *Manager) Open(symbol string) *Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[symbol]
}

// All returns a snapshot slice of currently open positions.
func (m *Manager) All() []*Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}

// Count returns the number of open positions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// Create registers a new Position on confirmed fill and writes it through
// to persistence. Returns an error if a position already exists for symbol
// (spec §3: "no two open Positions for the same symbol in the same
// direction" — this store only ever holds one position per symbol).
func (m *Manager) Create(ctx context.Context, p *Position) error {
	m.mu.Lock()
	if _, exists := m.positions[p.Symbol]; exists {
		m.mu.Unlock()
		return fmt.Errorf("position: %s already has an open position", p.Symbol)
	}
	m.positions[p.Symbol] = p
	m.mu.Unlock()

	return m.writeThrough(ctx, p)
}

// UpdateTrail applies a price update to symbol's trailing-stop machine and
// persists the mutated state, returning whether an exit fired.
func (m *Manager) UpdateTrail(ctx context.Context, symbol string, price float64) (reason trailstop.ExitReason, triggered bool, err error) {
	m.mu.Lock()
	p, ok := m.positions[symbol]
	m.mu.Unlock()
	if !ok {
		return "", false, fmt.Errorf("position: no open position for %s", symbol)
	}

	reason, triggered = p.Trail.Update(price)
	if err := m.writeThrough(ctx, p); err != nil {
		return reason, triggered, err
	}
	return reason, triggered, nil
}

// Close removes the position, writes-through the deletion, and returns the
// CompletedTrade record. exitReason should be a trailstop.ExitReason or
// "SESSION_END" / "RISK_FLATTEN" for engine-initiated closes.
func (m *Manager) Close(ctx context.Context, symbol string, exitPrice float64, exitTs time.Time, exitReason string) (CompletedTrade, error) {
	m.mu.Lock()
	p, ok := m.positions[symbol]
	if ok {
		delete(m.positions, symbol)
	}
	m.mu.Unlock()
	if !ok {
		return CompletedTrade{}, fmt.Errorf("position: no open position for %s", symbol)
	}

	if err := m.store.DeleteOpenPosition(ctx, symbol); err != nil {
		return CompletedTrade{}, fmt.Errorf("position: delete on close failed for %s: %w", symbol, err)
	}

	trade := CompletedTrade{
		Symbol:     symbol,
		Side:       p.Side,
		Qty:        p.Qty,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTs:    p.EntryTs,
		ExitTs:     exitTs,
		ExitReason: exitReason,
		RiskAmount: p.Policy.StopPct * p.EntryPrice * float64(p.Qty),
	}
	trade.RealizedPnL = realizedPnL(p.Side, p.Qty, p.EntryPrice, exitPrice)

	if err := m.store.AppendCompletedTrade(ctx, trade); err != nil {
		return trade, fmt.Errorf("position: append completed trade failed for %s: %w", symbol, err)
	}
	return trade, nil
}

// DeletePhantom removes an internal record with NO close order and NO
// completed-trade record — spec §4.8: a phantom position is deleted, never
// closed.
func (m *Manager) DeletePhantom(ctx context.Context, symbol string) error {
	m.mu.Lock()
	_, ok := m.positions[symbol]
	delete(m.positions, symbol)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.store.DeleteOpenPosition(ctx, symbol)
}

func (m *Manager) writeThrough(ctx context.Context, p *Position) error {
	data, err := m.codec.Encode(p)
	if err != nil {
		return fmt.Errorf("position: encode failed for %s: %w", p.Symbol, err)
	}
	if err := m.store.SaveOpenPosition(ctx, p.Symbol, data); err != nil {
		return fmt.Errorf("position: write-through failed for %s: %w", p.Symbol, err)
	}
	return nil
}

func realizedPnL(side Side, qty int, entry, exit float64) float64 {
	if side == SideShort {
		return (entry - exit) * float64(qty)
	}
	return (exit - entry) * float64(qty)
}
