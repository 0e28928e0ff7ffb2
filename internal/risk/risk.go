// Package risk implements the Risk Gate: exposure, daily-loss, and
// per-trade caps that CANCEL a blocked signal rather than redirect it.
//
// Design rules (from spec):
//   - Every check either approves or rejects; a rejection MUST cancel the
//     order entirely. No code path may convert it into an opposite-side
//     order or a position-close instruction — this is the historical bug
//     this design exists to prevent.
//   - EXIT intents (SELL_TO_CLOSE, BUY_TO_COVER) are always allowed.
//   - The Risk Gate only reads RiskState (Check takes it by value) and
//     never writes it; the engine holds the counters and updates them.
package risk

import (
	"fmt"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/strategy"
)

// Reason enumerates why a signal was rejected.
type Reason string

const (
	ReasonMaxNotional       Reason = "MAX_NOTIONAL_EXCEEDED"
	ReasonMaxPositions      Reason = "MAX_CONCURRENT_POSITIONS"
	ReasonShortExposure     Reason = "SHORT_EXPOSURE_EXCEEDED"
	ReasonDailyLossBreach   Reason = "DAILY_LOSS_BREACH"
	ReasonMaxDailyTrades    Reason = "MAX_DAILY_TRADES"
	ReasonKillSwitch        Reason = "KILL_SWITCH_LATCHED"
	ReasonSectorConcentration Reason = "MAX_SECTOR_CONCENTRATION"
	ReasonDuplicateEntry    Reason = "DUPLICATE_ENTRY_THIS_CYCLE"
	ReasonCircuitBreaker    Reason = "CIRCUIT_BREAKER_TRIPPED"
)

// Decision is the Risk Gate's sum-typed verdict. Exactly one of Approved /
// Rejected is meaningful, discriminated by Approved. There is deliberately
// no way to read "the other side" off a Rejected decision — Order Manager
// can only act on the Approved branch.
type Decision struct {
	approved bool
	signal   strategy.Signal
	reason   Reason
	message  string
}

// Approved reports whether the gate let the signal through.
func (d Decision) Approved() bool { return d.approved }

// Signal returns the original signal. Safe to call regardless of outcome,
// but Order Manager must check Approved() before acting on it.
func (d Decision) Signal() strategy.Signal { return d.signal }

// Reason returns the rejection reason; empty if Approved().
func (d Decision) Reason() Reason { return d.reason }

// Message returns a human-readable rejection explanation; empty if Approved().
func (d Decision) Message() string { return d.message }

func approve(sig strategy.Signal) Decision {
	return Decision{approved: true, signal: sig}
}

func reject(sig strategy.Signal, reason Reason, format string, args ...any) Decision {
	return Decision{approved: false, signal: sig, reason: reason, message: fmt.Sprintf(format, args...)}
}

// RiskState is the process-wide, session-scoped risk ledger. The engine
// owns and updates it; the Risk Gate receives a copy in Check and does not
// modify it.
type RiskState struct {
	SessionDate         time.Time
	StartOfDayEquity     float64
	CurrentEquity        float64
	RealizedPnLToday     float64
	UnrealizedPnLToday   float64
	TotalShortExposure   float64
	OpenPositionCount    int
	DailyTradeCount      int
	KillSwitch           bool
}

// Reset zeroes the per-session counters at the start of a new trading day.
func (s *RiskState) Reset(sessionDate time.Time, startEquity float64) {
	*s = RiskState{
		SessionDate:      sessionDate,
		StartOfDayEquity: startEquity,
		CurrentEquity:    startEquity,
	}
}

// Limits holds the configurable caps the Risk Gate enforces.
type Limits struct {
	MaxPositionNotional    float64
	MaxConcurrentPositions int
	MaxShortExposure       float64
	DailyLossCap           float64 // positive number; breached when loss >= this
	MaxDailyTrades         int     // default 6 under PDT rules

	// MaxPerSector is an optional, config-gated extra guardrail carried
	// over from the teacher (0 disables it; not a required spec invariant).
	MaxPerSector int
}

// Gate is the Risk Gate. It holds no mutable state of its own beyond what's
// passed to Check — RiskState is owned by the caller (the engine), which
// must apply any counter updates the gate implies (e.g. incrementing
// DailyTradeCount on approval).
type Gate struct {
	limits  Limits
	breaker *CircuitBreaker
}

// NewGate builds a Risk Gate with the given limits. breaker may be nil to
// disable circuit-breaker enforcement (e.g. in tests).
func NewGate(limits Limits, breaker *CircuitBreaker) *Gate {
	return &Gate{limits: limits, breaker: breaker}
}

// UpdateLimits replaces the configured limits. Used by config hot-reload.
func (g *Gate) UpdateLimits(limits Limits) {
	g.limits = limits
}

// isExit reports whether action is an exit-side action, which the Risk
// Gate always allows (spec §4.7's "EXIT intents are always allowed").
func isExit(action strategy.Action) bool {
	return action == strategy.ActionSellToClose || action == strategy.ActionBuyToCover
}

// Check validates a candidate signal against every enforced limit and
// returns a sum-typed Decision. currentQuote prices the notional checks.
// sector is the candidate symbol's sector (""  disables the check);
// openSectors lists the sectors of all currently open positions.
func (g *Gate) Check(sig strategy.Signal, state RiskState, pol policy.Policy, currentQuote float64, sector string, openSectors []string) Decision {
	if isExit(sig.Action) {
		return approve(sig)
	}

	if state.KillSwitch {
		return reject(sig, ReasonKillSwitch, "kill switch latched, no new entries until manual clear")
	}

	if g.breaker != nil && g.breaker.IsTripped() {
		return reject(sig, ReasonCircuitBreaker, "circuit breaker tripped: %s", g.breaker.TripReason())
	}

	notional := currentQuote * float64(sig.ProposedQty)
	if notional > g.limits.MaxPositionNotional {
		return reject(sig, ReasonMaxNotional, "trade notional %.2f exceeds max %.2f", notional, g.limits.MaxPositionNotional)
	}

	if state.OpenPositionCount >= g.limits.MaxConcurrentPositions {
		return reject(sig, ReasonMaxPositions, "at position limit: %d/%d", state.OpenPositionCount, g.limits.MaxConcurrentPositions)
	}

	if sig.Action == strategy.ActionShort {
		projected := state.TotalShortExposure + notional
		if projected > g.limits.MaxShortExposure {
			return reject(sig, ReasonShortExposure, "short exposure %.2f would exceed max %.2f", projected, g.limits.MaxShortExposure)
		}
	}

	totalPnL := state.RealizedPnLToday + state.UnrealizedPnLToday
	if totalPnL < 0 && -totalPnL >= g.limits.DailyLossCap {
		return reject(sig, ReasonDailyLossBreach, "daily loss %.2f has reached cap %.2f", -totalPnL, g.limits.DailyLossCap)
	}

	if g.limits.MaxDailyTrades > 0 && state.DailyTradeCount >= g.limits.MaxDailyTrades {
		return reject(sig, ReasonMaxDailyTrades, "at daily trade limit: %d/%d", state.DailyTradeCount, g.limits.MaxDailyTrades)
	}

	if g.limits.MaxPerSector > 0 && sector != "" {
		count := 0
		for _, s := range openSectors {
			if s == sector {
				count++
			}
		}
		if count >= g.limits.MaxPerSector {
			return reject(sig, ReasonSectorConcentration, "already %d positions in sector %s (max %d)", count, sector, g.limits.MaxPerSector)
		}
	}

	return approve(sig)
}
