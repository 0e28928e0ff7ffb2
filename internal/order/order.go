// Package order implements the Order Manager (C8): submits orders to the
// broker, tracks them to terminal state, creates Position entries on
// confirmed fills, places protective stops, and reconciles the internal
// position set against the broker. Reconcile runs only when the engine's
// onWake runs (session start and Engine.Recover); the cycle loop does not
// call it.
//
// Design rules (from spec):
//   - Every submission carries a client-generated, idempotent order id
//     derived from (symbol, cycle timestamp, intent) — retries within the
//     same cycle reuse the same id rather than duplicating the order.
//   - Never submit two entries for the same symbol+direction in one cycle.
//   - A rejected risk.Decision can only ever be discarded here — there is
//     no accessor that exposes "the signal, flipped".
//   - Partial fills create a Position sized to the actual filled quantity;
//     the protective stop is sized to match.
package order

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nitinkhare/intradaytrader/internal/broker"
	"github.com/nitinkhare/intradaytrader/internal/events"
	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/position"
	"github.com/nitinkhare/intradaytrader/internal/risk"
	"github.com/nitinkhare/intradaytrader/internal/strategy"
	"github.com/nitinkhare/intradaytrader/internal/trailstop"
)

// Config holds Order Manager tunables sourced from EngineConfig.
type Config struct {
	AccountRiskPerTrade float64 // fraction of equity risked per trade, default 0.01
}

// Manager is the single owner of order submission and broker reconciliation.
type Manager struct {
	broker    broker.Broker
	positions *position.Manager
	sink      *events.Sink
	cfg       Config

	mu                 sync.Mutex
	submittedThisCycle map[string]bool // key: symbol|action, cleared every cycle
}

// NewManager builds an Order Manager over b, writing confirmed fills
// through positions and emitting events via sink (sink may be nil in tests).
func NewManager(b broker.Broker, positions *position.Manager, sink *events.Sink, cfg Config) *Manager {
	return &Manager{
		broker:             b,
		positions:          positions,
		sink:               sink,
		cfg:                cfg,
		submittedThisCycle: make(map[string]bool),
	}
}

// ResetCycle clears the per-cycle duplicate-entry guard. Call once at the
// start of every engine cycle.
func (m *Manager) ResetCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submittedThisCycle = make(map[string]bool)
}

// clientOrderId derives a deterministic, idempotent id from (symbol, cycle
// timestamp, intent): resubmitting the same (symbol, cycleTs, intent)
// within a retry loop always yields the same id, so the broker's own
// idempotency handling (or PaperBroker's) prevents a duplicate order.
func clientOrderId(symbol string, cycleTs time.Time, intent string) string {
	name := fmt.Sprintf("%s|%d|%s", symbol, cycleTs.Unix(), intent)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// sizeEntry implements spec §4.8's sizing formula:
// floor(accountRisk × equity / (entryPrice × stopPct)) × positionSizeMultiplier,
// rounded down to a valid share count.
func sizeEntry(equity, entryPrice, stopPct, sizeMultiplier float64, accountRisk float64) int {
	if entryPrice <= 0 || stopPct <= 0 || equity <= 0 {
		return 0
	}
	base := math.Floor(accountRisk * equity / (entryPrice * stopPct))
	sized := math.Floor(base * sizeMultiplier)
	if sized < 0 {
		return 0
	}
	return int(sized)
}

// SizeEntry exposes the entry sizing formula to callers that need a
// quantity estimate before submission — the Risk Gate checks notional and
// short-exposure limits against the quantity a signal would actually size
// to, which PlaceEntry otherwise only computes internally.
func (m *Manager) SizeEntry(equity, entryPrice float64, pol policy.Policy) int {
	return sizeEntry(equity, entryPrice, pol.StopPct, pol.SizeMultiplier, m.cfg.AccountRiskPerTrade)
}

func sideFor(action strategy.Action) broker.OrderSide {
	switch action {
	case strategy.ActionBuy, strategy.ActionBuyToCover:
		return broker.OrderSideBuy
	default:
		return broker.OrderSideSell
	}
}

// PlaceEntry submits a sized, marketable entry order for an approved
// signal. decision MUST be Approved(); callers must never call this on a
// Rejected decision (there is no code path here that would let one
// through anyway — it returns an error).
func (m *Manager) PlaceEntry(ctx context.Context, decision risk.Decision, pol policy.Policy, equity, entryPrice float64, cycleTs time.Time) (string, error) {
	if !decision.Approved() {
		return "", fmt.Errorf("order: refusing to place entry for a rejected decision (reason=%s)", decision.Reason())
	}
	sig := decision.Signal()

	// Checked here but only set once SubmitOrder actually succeeds below:
	// the engine wraps PlaceEntry in a retry loop, and setting the guard on
	// a failed first attempt would make every retry bounce off it instead
	// of resubmitting.
	key := sig.Symbol + "|" + string(sig.Action)
	m.mu.Lock()
	alreadySubmitted := m.submittedThisCycle[key]
	m.mu.Unlock()
	if alreadySubmitted {
		return "", fmt.Errorf("order: duplicate entry for %s this cycle", key)
	}

	qty := sizeEntry(equity, entryPrice, pol.StopPct, pol.SizeMultiplier, m.cfg.AccountRiskPerTrade)
	if qty <= 0 {
		return "", fmt.Errorf("order: sized quantity is zero for %s (equity=%.2f entryPrice=%.2f stopPct=%.4f)", sig.Symbol, equity, entryPrice, pol.StopPct)
	}

	req := broker.OrderRequest{
		ClientOrderId: clientOrderId(sig.Symbol, cycleTs, "ENTRY:"+string(sig.Action)),
		Symbol:        sig.Symbol,
		Qty:           qty,
		Side:          sideFor(sig.Action),
		Type:          broker.OrderTypeMarket,
		TIF:           broker.TIFDay,
	}

	orderId, err := m.broker.SubmitOrder(ctx, req)
	if err != nil {
		m.emit(ctx, events.OrderFailed, map[string]any{"intent": "ENTRY", "symbol": sig.Symbol, "error": err.Error()})
		return "", fmt.Errorf("order: submit entry for %s: %w", sig.Symbol, err)
	}
	m.mu.Lock()
	m.submittedThisCycle[key] = true
	m.mu.Unlock()
	m.emit(ctx, events.OrderSubmitted, map[string]any{"intent": "ENTRY", "symbol": sig.Symbol, "orderId": orderId, "qty": qty})

	status, err := m.broker.Order(ctx, orderId)
	if err != nil {
		return orderId, fmt.Errorf("order: status lookup for entry %s: %w", orderId, err)
	}
	if status.Status != broker.OrderStatusFilled && status.Status != broker.OrderStatusPartial {
		m.emit(ctx, events.OrderFailed, map[string]any{"intent": "ENTRY", "symbol": sig.Symbol, "status": string(status.Status)})
		return orderId, fmt.Errorf("order: entry for %s did not fill: %s", sig.Symbol, status.Message)
	}

	side := position.SideLong
	if sig.Action == strategy.ActionShort {
		side = position.SideShort
	}
	trailSide := trailstop.SideLong
	if side == position.SideShort {
		trailSide = trailstop.SideShort
	}
	trail, err := trailstop.New(trailstop.Params{
		EntryPrice:         status.AvgFillPrice,
		Side:               trailSide,
		StopPct:            pol.StopPct,
		TargetPct:          pol.TargetPct,
		TrailActivationPct: pol.TrailActivationPct,
		TrailDistancePct:   pol.TrailDistancePct,
	})
	if err != nil {
		return orderId, fmt.Errorf("order: build trailing stop for %s: %w", sig.Symbol, err)
	}

	pos := &position.Position{
		Symbol:     sig.Symbol,
		Side:       side,
		Qty:        status.FilledQty, // partial-fill sized, per spec §7
		EntryPrice: status.AvgFillPrice,
		EntryTs:    status.Ts,
		Policy:     pol,
		Trail:      trail,
	}
	if err := m.positions.Create(ctx, pos); err != nil {
		return orderId, fmt.Errorf("order: register position for %s: %w", sig.Symbol, err)
	}
	m.emit(ctx, events.PositionOpened, map[string]any{"symbol": sig.Symbol, "qty": status.FilledQty, "side": string(side)})

	if _, err := m.PlaceProtectiveStop(ctx, pos, cycleTs); err != nil {
		return orderId, fmt.Errorf("order: protective stop for %s: %w", sig.Symbol, err)
	}

	return orderId, nil
}

// PlaceProtectiveStop submits a resting stop order at pos's current stop
// price, sized to pos.Qty (so a partial-fill entry gets a matching stop).
// For shorts this is a buy-to-cover stop.
func (m *Manager) PlaceProtectiveStop(ctx context.Context, pos *position.Position, cycleTs time.Time) (string, error) {
	side := broker.OrderSideSell
	if pos.Side == position.SideShort {
		side = broker.OrderSideBuy
	}
	req := broker.OrderRequest{
		ClientOrderId: clientOrderId(pos.Symbol, cycleTs, "STOP"),
		Symbol:        pos.Symbol,
		Qty:           pos.Qty,
		Side:          side,
		Type:          broker.OrderTypeStop,
		StopPrice:     pos.Trail.CurrentStopPrice,
		TIF:           broker.TIFGTC,
	}
	orderId, err := m.broker.SubmitOrder(ctx, req)
	if err != nil {
		m.emit(ctx, events.OrderFailed, map[string]any{"intent": "PROTECTIVE_STOP", "symbol": pos.Symbol, "error": err.Error()})
		return "", fmt.Errorf("order: submit protective stop for %s: %w", pos.Symbol, err)
	}
	m.emit(ctx, events.OrderSubmitted, map[string]any{"intent": "PROTECTIVE_STOP", "symbol": pos.Symbol, "orderId": orderId})
	return orderId, nil
}

// ClosePosition submits a marketable order to flatten pos and, on
// confirmed fill, closes the internal record via internal/position,
// returning the resulting CompletedTrade.
func (m *Manager) ClosePosition(ctx context.Context, pos *position.Position, reason string, cycleTs time.Time) (position.CompletedTrade, error) {
	side := broker.OrderSideSell
	if pos.Side == position.SideShort {
		side = broker.OrderSideBuy
	}
	req := broker.OrderRequest{
		ClientOrderId: clientOrderId(pos.Symbol, cycleTs, "CLOSE:"+reason),
		Symbol:        pos.Symbol,
		Qty:           pos.Qty,
		Side:          side,
		Type:          broker.OrderTypeMarket,
		TIF:           broker.TIFDay,
	}
	orderId, err := m.broker.SubmitOrder(ctx, req)
	if err != nil {
		m.emit(ctx, events.OrderFailed, map[string]any{"intent": "CLOSE", "symbol": pos.Symbol, "error": err.Error()})
		return position.CompletedTrade{}, fmt.Errorf("order: submit close for %s: %w", pos.Symbol, err)
	}
	m.emit(ctx, events.OrderSubmitted, map[string]any{"intent": "CLOSE", "symbol": pos.Symbol, "orderId": orderId})

	status, err := m.broker.Order(ctx, orderId)
	if err != nil {
		return position.CompletedTrade{}, fmt.Errorf("order: status lookup for close %s: %w", orderId, err)
	}
	if status.Status != broker.OrderStatusFilled {
		m.emit(ctx, events.OrderFailed, map[string]any{"intent": "CLOSE", "symbol": pos.Symbol, "status": string(status.Status)})
		return position.CompletedTrade{}, fmt.Errorf("order: close for %s did not fill: %s", pos.Symbol, status.Message)
	}

	trade, err := m.positions.Close(ctx, pos.Symbol, status.AvgFillPrice, status.Ts, reason)
	if err != nil {
		return trade, fmt.Errorf("order: close position record for %s: %w", pos.Symbol, err)
	}
	m.emit(ctx, events.PositionClosed, map[string]any{"symbol": pos.Symbol, "reason": reason, "realizedPnL": trade.RealizedPnL})
	return trade, nil
}

// Reconcile compares the internal position set against the broker's
// reported positions (spec §4.8). The engine calls it from onWake only,
// not on every cycle; each call rebuilds the trailing-stop machine of
// every matched position from the current price. Phantom internal
// records are deleted (never closed); orphan broker positions are
// reconstructed via position-recovery (§4.11).
func (m *Manager) Reconcile(ctx context.Context, policies *policy.Table, currentPrice position.CurrentPriceFunc, now time.Time) (position.Recovery, error) {
	brokerPositions, err := m.broker.Positions(ctx)
	if err != nil {
		return position.Recovery{}, fmt.Errorf("order: fetch broker positions: %w", err)
	}

	converted := make([]position.BrokerPosition, len(brokerPositions))
	for i, bp := range brokerPositions {
		converted[i] = position.BrokerPosition{Symbol: bp.Symbol, Qty: bp.Qty, AvgEntryPrice: bp.AvgEntryPrice}
	}

	result, err := m.positions.Recover(ctx, converted, policies, currentPrice, now)
	if err != nil {
		return result, fmt.Errorf("order: reconcile: %w", err)
	}

	for _, symbol := range result.Phantoms {
		m.emit(ctx, events.PhantomDetected, map[string]any{"symbol": symbol})
	}
	for _, symbol := range result.Orphans {
		m.emit(ctx, events.OrphanRecovered, map[string]any{"symbol": symbol})
	}
	return result, nil
}

func (m *Manager) emit(ctx context.Context, t events.Type, fields map[string]any) {
	if m.sink == nil {
		return
	}
	m.sink.Emit(ctx, events.Event{Type: t, Fields: fields})
}
