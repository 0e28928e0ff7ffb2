package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/broker"
	"github.com/nitinkhare/intradaytrader/internal/clock"
	"github.com/nitinkhare/intradaytrader/internal/confidence"
	"github.com/nitinkhare/intradaytrader/internal/events"
	"github.com/nitinkhare/intradaytrader/internal/indicator"
	"github.com/nitinkhare/intradaytrader/internal/marketdata"
	"github.com/nitinkhare/intradaytrader/internal/order"
	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/position"
	"github.com/nitinkhare/intradaytrader/internal/report"
	"github.com/nitinkhare/intradaytrader/internal/risk"
	"github.com/nitinkhare/intradaytrader/internal/storage"
	"github.com/nitinkhare/intradaytrader/internal/strategy"
)

// Config holds the engine's own tunables, projected out of config.Config by
// the caller (cmd/engine) the same way internal/config projects risk.Limits
// and policy.Table.
type Config struct {
	Watchlist     []string
	CycleInterval time.Duration
	DataTimeout   time.Duration
	OrderTimeout  time.Duration
	ShutdownGrace time.Duration
	MaxRetries    int
	MinConfidence float64
}

// Dependencies bundles every collaborator the engine orchestrates. All are
// constructed by the caller; the engine owns none of their lifecycles
// except for driving calls into them in the right order.
type Dependencies struct {
	Broker     broker.Broker
	Clock      *clock.Clock
	Policies   *policy.Table
	Indicators *indicator.Service
	// MarketData is the same provider backing Indicators, exposed directly
	// so the engine can also fetch a quote (indicator.Service only fetches
	// bars).
	MarketData marketdata.Provider
	Confidence *confidence.Engine
	Strategies []strategy.Strategy
	Risk       *risk.Gate
	Breaker    *risk.CircuitBreaker
	Orders     *order.Manager
	Positions  *position.Manager
	Sink       *events.Sink
	Store      storage.Store
}

// Engine is the single trading-engine goroutine-equivalent that owns the
// session state machine (spec §5). Per-symbol cycle work fans out across
// goroutines reading from a per-cycle tick list; RiskState is mutated only
// here, under mu, matching "RiskState counters are updated only by the Risk
// Gate[, as directed by the caller,] and read by others".
type Engine struct {
	cfg  Config
	deps Dependencies

	mu        sync.Mutex
	riskState risk.RiskState
}

// New builds an Engine. It does not start anything; call Run.
func New(cfg Config, deps Dependencies) *Engine {
	return &Engine{cfg: cfg, deps: deps}
}

// Run executes the session lifecycle until ctx is cancelled (graceful
// shutdown) or a non-recoverable setup error occurs. A second, harder
// signal is expected to be handled by the caller as an immediate process
// exit (spec §5: "a force-kill... skips graceful flatten and exits
// immediately"), which is why Run only ever implements the one graceful
// path.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		now := e.deps.Clock.Now()
		if !e.deps.Clock.IsMarketOpen(now) {
			nextOpen := e.deps.Clock.NextOpen(now)
			if err := e.sleepUntil(ctx, nextOpen); err != nil {
				return nil // ctx cancelled while waiting for the open
			}
			if ctx.Err() != nil {
				return nil
			}
			now = e.deps.Clock.Now()
		}

		if err := e.onWake(ctx); err != nil {
			e.emit(ctx, events.CalendarDegraded, map[string]any{"error": err.Error(), "stage": "on_wake"})
		}
		e.emit(ctx, events.SessionStarted, map[string]any{"sessionDate": dayOf(now)})

		for ctx.Err() == nil && e.deps.Clock.IsTradingWindow(e.deps.Clock.Now()) {
			cycleStart := e.deps.Clock.Now()
			e.deps.Orders.ResetCycle()
			e.emit(ctx, events.CycleStarted, map[string]any{"ts": cycleStart})

			e.runCycle(ctx, cycleStart)

			e.emit(ctx, events.CycleCompleted, map[string]any{"ts": e.deps.Clock.Now()})

			if err := e.sleepUntil(ctx, cycleStart.Add(e.cycleInterval())); err != nil {
				break
			}
		}

		e.flattenAll(ctx, "SESSION_END")
		e.emitEOD(ctx, now)

		if ctx.Err() != nil {
			return nil
		}
	}
}

// sleepUntil blocks until t or ctx cancellation, whichever comes first.
func (e *Engine) sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recover runs onWake outside the normal session loop — exposed for an
// operator to reconcile the internal book against the broker after an
// unplanned restart, without waiting for the next market open.
func (e *Engine) Recover(ctx context.Context) error {
	return e.onWake(ctx)
}

// onWake runs Position Recovery (spec §4.11): reconcile internal records
// against the broker, reset the session's RiskState from the broker's
// reported equity, and latch the kill switch if reconciliation itself
// cannot be trusted (operating on an unknown position set is the one
// failure mode worse than halting).
func (e *Engine) onWake(ctx context.Context) error {
	acct, err := e.deps.Broker.Account(ctx)
	if err != nil {
		return fmt.Errorf("engine: on_wake: fetch account: %w", err)
	}

	now := e.deps.Clock.Now()
	e.mu.Lock()
	e.riskState.Reset(dayOf(now), acct.Equity)
	e.mu.Unlock()

	currentPrice := func(ctx context.Context, symbol string) (float64, error) {
		q, err := e.deps.MarketData.GetLastQuote(ctx, symbol)
		if err != nil {
			return 0, err
		}
		return q.Last, nil
	}

	recovery, err := e.deps.Orders.Reconcile(ctx, e.deps.Policies, currentPrice, now)
	if err != nil {
		e.mu.Lock()
		e.riskState.KillSwitch = true
		e.mu.Unlock()
		e.emit(ctx, events.KillSwitchLatched, map[string]any{"reason": "reconcile failed: " + err.Error()})
		return fmt.Errorf("engine: on_wake: reconcile: %w", err)
	}

	e.mu.Lock()
	e.riskState.OpenPositionCount = e.deps.Positions.Count()
	e.mu.Unlock()

	if len(recovery.Rehydrated) > 0 || len(recovery.Phantoms) > 0 || len(recovery.Orphans) > 0 {
		e.emit(ctx, events.CycleStarted, map[string]any{
			"stage":      "recovery",
			"rehydrated": recovery.Rehydrated,
			"phantoms":   recovery.Phantoms,
			"orphans":    recovery.Orphans,
		})
	}
	return nil
}

// runCycle fans out one cycle across every watchlist symbol in parallel,
// per spec §5. Within a symbol, work is strictly sequential; across
// symbols, no ordering is implied — each processSymbol call owns only its
// own goroutine's stack, never shared state outside Positions/Orders/Risk,
// which are each single-owner.
func (e *Engine) runCycle(ctx context.Context, cycleTs time.Time) {
	acct, err := e.deps.Broker.Account(ctx)
	if err != nil {
		e.recordFailure("account fetch: " + err.Error())
		return
	}
	e.recordSuccess()

	e.mu.Lock()
	e.riskState.CurrentEquity = acct.Equity
	e.riskState.RealizedPnLToday = acct.Equity - e.riskState.StartOfDayEquity
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, symbol := range e.cfg.Watchlist {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			e.processSymbol(ctx, symbol, cycleTs, acct.Equity)
		}(symbol)
	}
	wg.Wait()
}

// processSymbol implements run_cycle's eight steps (spec §4.11) for one
// symbol. Any step that can't complete (data unavailable, confidence
// engine errors) skips the symbol for this cycle rather than failing it.
func (e *Engine) processSymbol(ctx context.Context, symbol string, cycleTs time.Time, equity float64) {
	var snap indicator.Snapshot
	var recentBars []marketdata.Bar
	err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.DataTimeout, func(ctx context.Context) error {
		s, bars, err := e.deps.Indicators.Snapshot(ctx, symbol)
		if err != nil {
			return err
		}
		snap = s
		recentBars = bars
		return nil
	})
	if err != nil {
		e.recordFailure(fmt.Sprintf("%s: indicator snapshot: %v", symbol, err))
		return
	}

	var quote marketdata.Quote
	err = withRetry(ctx, e.cfg.MaxRetries, e.cfg.DataTimeout, func(ctx context.Context) error {
		q, err := e.deps.MarketData.GetLastQuote(ctx, symbol)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		e.recordFailure(fmt.Sprintf("%s: quote: %v", symbol, err))
		return
	}
	e.recordSuccess()

	pol := e.deps.Policies.Get(symbol)
	open := e.deps.Positions.Open(symbol)

	// Step 3/4: update the trailing stop on any open position before
	// considering new signals, so a freed slot can be reused this cycle.
	if open != nil {
		reason, triggered, err := e.deps.Positions.UpdateTrail(ctx, symbol, quote.Last)
		if err != nil {
			e.recordFailure(fmt.Sprintf("%s: update trail: %v", symbol, err))
			return
		}
		if triggered {
			e.closePosition(ctx, open, string(reason), cycleTs)
			return
		}
	}

	// Step 5: collect each strategy's candidate signal.
	in := strategy.Input{Snapshot: snap, Policy: pol, RecentBars: recentBars}
	if open != nil {
		side := strategy.SideLong
		if open.Side == position.SideShort {
			side = strategy.SideShort
		}
		in.Open = &strategy.OpenPosition{Side: side, EntryPrice: open.EntryPrice, Qty: open.Qty}
	}

	var best *strategy.Signal
	var bestStrategy string
	for _, s := range e.deps.Strategies {
		sig := s.Evaluate(in)
		if sig == nil || sig.StrategyConfidence < strategy.MinStrategyConfidence {
			continue
		}
		if best == nil || sig.StrategyConfidence > best.StrategyConfidence {
			best = sig
			bestStrategy = s.Name()
		}
	}
	if best == nil {
		return
	}
	e.emit(ctx, events.SignalProposed, map[string]any{"symbol": symbol, "strategy": bestStrategy, "action": string(best.Action)})

	// Strategy-initiated exits (distinct from the trailing-stop exit
	// already handled above) skip the confidence gate entirely — spec
	// §4.7: exits are always allowed.
	if best.Action == strategy.ActionSellToClose || best.Action == strategy.ActionBuyToCover {
		if open == nil {
			return
		}
		decision := e.deps.Risk.Check(*best, e.snapshotRiskState(), pol, quote.Last, "", nil)
		if decision.Approved() {
			e.closePosition(ctx, open, "STRATEGY_EXIT", cycleTs)
		}
		return
	}

	if open != nil {
		// Never submit a second entry while one is already open for this
		// symbol+direction.
		return
	}

	// Step 6: confidence gatekeeper, for the single best candidate only.
	result := e.deps.Confidence.Score(snap, pol)
	intended := confidence.DirectionLong
	if best.Action == strategy.ActionShort {
		intended = confidence.DirectionShort
	}
	approved, reason := confidence.ShouldExecute(result, intended)
	if approved && result.Score < e.cfg.MinConfidence {
		approved, reason = false, "confidence below configured minimum"
	}
	if !approved {
		e.emit(ctx, events.SignalRejected, map[string]any{"symbol": symbol, "reason": reason})
		return
	}

	// Step 7: Risk Gate. The notional and short-exposure checks need the
	// quantity this signal would actually size to, which strategies never
	// compute themselves (spec §9: sizing is Order Manager's job) — so the
	// Risk Gate is given the same estimate PlaceEntry will size to below.
	// Sector concentration is structurally wired but always passes
	// (sector=="") — no SPEC_FULL component currently supplies a
	// symbol->sector mapping, so MaxPerSector's extra check never fires
	// until one is added; this is the configured guardrail's
	// default-disabled state, not a gap in entry validation.
	best.ProposedQty = e.deps.Orders.SizeEntry(equity, quote.Last, pol)
	decision := e.deps.Risk.Check(*best, e.snapshotRiskState(), pol, quote.Last, "", nil)
	if !decision.Approved() {
		if decision.Reason() == risk.ReasonDailyLossBreach {
			// Latches until manual clear (spec: "killSwitch latches only on
			// DailyLossBreach") — an intraday equity recovery must not
			// silently resume trading.
			e.mu.Lock()
			e.riskState.KillSwitch = true
			e.mu.Unlock()
			e.emit(ctx, events.DailyLossBreach, map[string]any{"symbol": symbol, "reason": string(decision.Reason()), "message": decision.Message()})
		} else {
			e.emit(ctx, events.RiskLimitViolation, map[string]any{"symbol": symbol, "reason": string(decision.Reason()), "message": decision.Message()})
		}
		return
	}

	// Step 8: place the entry.
	err = withRetry(ctx, e.cfg.MaxRetries, e.cfg.OrderTimeout, func(ctx context.Context) error {
		_, err := e.deps.Orders.PlaceEntry(ctx, decision, pol, equity, quote.Last, cycleTs)
		return err
	})
	if err != nil {
		e.recordFailure(fmt.Sprintf("%s: place entry: %v", symbol, err))
		return
	}
	e.recordSuccess()

	e.mu.Lock()
	e.riskState.OpenPositionCount = e.deps.Positions.Count()
	e.riskState.DailyTradeCount++
	if best.Action == strategy.ActionShort {
		e.riskState.TotalShortExposure += quote.Last * float64(best.ProposedQty)
	}
	e.mu.Unlock()
}

func (e *Engine) closePosition(ctx context.Context, pos *position.Position, reason string, cycleTs time.Time) {
	err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.OrderTimeout, func(ctx context.Context) error {
		_, err := e.deps.Orders.ClosePosition(ctx, pos, reason, cycleTs)
		return err
	})
	if err != nil {
		e.recordFailure(fmt.Sprintf("%s: close position: %v", pos.Symbol, err))
		return
	}
	e.recordSuccess()

	e.mu.Lock()
	e.riskState.OpenPositionCount = e.deps.Positions.Count()
	if pos.Side == position.SideShort {
		e.riskState.TotalShortExposure = math.Max(0, e.riskState.TotalShortExposure-pos.EntryPrice*float64(pos.Qty))
	}
	e.mu.Unlock()
}

func (e *Engine) snapshotRiskState() risk.RiskState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.riskState
}

// flattenAll force-closes every open position via market orders, used both
// at ordinary session end and when graceful shutdown drains in-flight work
// (spec §4.11/§5).
func (e *Engine) flattenAll(ctx context.Context, reason string) {
	for _, pos := range e.deps.Positions.All() {
		e.closePosition(ctx, pos, reason, e.deps.Clock.Now())
	}
}

// emitEOD builds and emits the end-of-day report for the session that
// started on sessionDate.
func (e *Engine) emitEOD(ctx context.Context, sessionDate time.Time) {
	from := dayOf(sessionDate)
	to := from.Add(24 * time.Hour)
	rep, err := report.Build(ctx, e.deps.Store, from, to)
	if err != nil {
		e.emit(ctx, events.SessionEnded, map[string]any{"error": err.Error()})
		return
	}
	e.emit(ctx, events.SessionEnded, map[string]any{
		"trades":  rep.TotalTrades,
		"netPnL":  rep.NetPnL,
		"winRate": rep.WinRate,
	})
}

// Shutdown performs the graceful-shutdown sequence described in spec §5:
// it waits the whole ShutdownGrace period, then force-flattens and emits
// EOD. It does not watch individual in-flight orders, so the wait does not
// end early when they reach a terminal state. Run itself already flattens at every natural session boundary;
// Shutdown is for a caller that cancels ctx mid-cycle and wants a bounded
// wait before Run's next loop iteration observes ctx.Err() and returns.
func (e *Engine) Shutdown(ctx context.Context) {
	grace, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownGrace)
	defer cancel()
	<-grace.Done()
	e.flattenAll(context.Background(), "SHUTDOWN")
	e.emitEOD(context.Background(), e.deps.Clock.Now())
}

// recordFailure/recordSuccess guard against a nil Breaker (risk.Gate itself
// treats a nil breaker as "circuit breaker disabled", e.g. in tests).
func (e *Engine) recordFailure(reason string) {
	if e.deps.Breaker != nil {
		e.deps.Breaker.RecordFailure(reason)
	}
}

func (e *Engine) recordSuccess() {
	if e.deps.Breaker != nil {
		e.deps.Breaker.RecordSuccess()
	}
}

// UpdateCycleInterval changes the per-cycle sleep duration without a
// restart, wired to internal/config's hot-reload watcher (SymbolPolicy and
// every other structural field still require a process restart).
func (e *Engine) UpdateCycleInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.CycleInterval = d
}

func (e *Engine) cycleInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.CycleInterval
}

func (e *Engine) emit(ctx context.Context, t events.Type, fields map[string]any) {
	if e.deps.Sink == nil {
		return
	}
	e.deps.Sink.Emit(ctx, events.Event{Type: t, Fields: fields})
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// (spec §5: "retried with exponential backoff up to 3 attempts"), each
// attempt bounded by perAttemptTimeout.
func withRetry(ctx context.Context, maxAttempts int, perAttemptTimeout time.Duration, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := 200 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < maxAttempts-1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}
	return err
}
