// Package trailstop implements the per-position trailing-stop state
// machine: Initial -> TrailingArmed -> Triggered.
//
// Design rules (from spec §4.9):
//   - minMovePct (0.5%) hysteresis prevents the trail from chattering up
//     and down on every tick.
//   - A bar that crosses both stop and target in the same update resolves
//     as StopTriggered — conservative, stop wins.
//   - Recovery (§4.11, S4) reconstructs highs/lows from the *current*
//     price, never resets to entry, and re-arms TrailingArmed immediately
//     if profit already exceeds activation.
package trailstop

import "fmt"

// State is the trailing-stop lifecycle state.
type State string

const (
	StateInitial       State = "INITIAL"
	StateTrailingArmed State = "TRAILING_ARMED"
	StateTriggered     State = "TRIGGERED"
)

// Side mirrors the position side this machine is protecting.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ExitReason explains why the machine emitted an exit.
type ExitReason string

const (
	ExitStopTriggered   ExitReason = "STOP_TRIGGERED"
	ExitTargetReached   ExitReason = "TARGET_REACHED"
)

// MinMovePct is the hysteresis band: a new trailing-stop candidate must
// exceed the current trailing stop by at least this much before the
// engine raises (long) / lowers (short) it. Spec §9 resolves this as
// symmetric between long and short.
const MinMovePct = 0.005

// Params are the per-position thresholds, copied from SymbolPolicy at
// entry (spec §3's policySnapshot — policy changes mid-position never
// affect an open position).
type Params struct {
	EntryPrice         float64
	Side               Side
	StopPct            float64
	TargetPct          float64
	TrailActivationPct float64
	TrailDistancePct   float64
}

// Machine is one position's trailing-stop state. It holds no I/O; callers
// (internal/position, internal/order) persist and publish on every
// transition.
type Machine struct {
	Params Params

	State            State
	HighestPrice     float64 // tracked for Long; mirrors LowestPrice for Short
	LowestPrice      float64
	CurrentStopPrice float64
	TakeProfitPrice  float64
	TrailingStopPrice float64 // zero until TrailingArmed
}

// New builds a Machine in the Initial state with the invariant starting
// stop/target computed from entry price and policy. Returns an error for
// a non-positive entry price (spec §4.9: "must be rejected at position
// creation").
func New(params Params) (*Machine, error) {
	if params.EntryPrice <= 0 {
		return nil, fmt.Errorf("trailstop: entry price must be positive, got %v", params.EntryPrice)
	}

	m := &Machine{
		Params:       params,
		State:        StateInitial,
		HighestPrice: params.EntryPrice,
		LowestPrice:  params.EntryPrice,
	}

	if params.Side == SideLong {
		m.CurrentStopPrice = params.EntryPrice * (1 - params.StopPct)
		m.TakeProfitPrice = params.EntryPrice * (1 + params.TargetPct)
	} else {
		m.CurrentStopPrice = params.EntryPrice * (1 + params.StopPct)
		m.TakeProfitPrice = params.EntryPrice * (1 - params.TargetPct)
	}

	return m, nil
}

// Update feeds a new price observation and returns a non-empty ExitReason
// if the position should be closed. The machine mutates its own state
// in-place; callers are expected to persist the result.
func (m *Machine) Update(price float64) (exit ExitReason, triggered bool) {
	if m.Params.Side == SideLong {
		return m.updateLong(price)
	}
	return m.updateShort(price)
}

func (m *Machine) updateLong(price float64) (ExitReason, bool) {
	if price > m.HighestPrice {
		m.HighestPrice = price
	}
	profitPct := (price - m.Params.EntryPrice) / m.Params.EntryPrice

	if m.State == StateInitial && profitPct >= m.Params.TrailActivationPct {
		m.State = StateTrailingArmed
		candidate := m.HighestPrice * (1 - m.Params.TrailDistancePct)
		m.TrailingStopPrice = candidate
		if candidate > m.CurrentStopPrice {
			m.CurrentStopPrice = candidate
		}
	} else if m.State == StateTrailingArmed {
		candidate := m.HighestPrice * (1 - m.Params.TrailDistancePct)
		if candidate-m.TrailingStopPrice >= m.TrailingStopPrice*MinMovePct {
			m.TrailingStopPrice = candidate
			if candidate > m.CurrentStopPrice {
				m.CurrentStopPrice = candidate
			}
		}
	}

	// Tie-break: stop wins if both are crossed in the same update.
	if price <= m.CurrentStopPrice {
		m.State = StateTriggered
		return ExitStopTriggered, true
	}
	if price >= m.TakeProfitPrice && m.State != StateTrailingArmed {
		m.State = StateTriggered
		return ExitTargetReached, true
	}
	return "", false
}

func (m *Machine) updateShort(price float64) (ExitReason, bool) {
	if price < m.LowestPrice {
		m.LowestPrice = price
	}
	profitPct := (m.Params.EntryPrice - price) / m.Params.EntryPrice

	if m.State == StateInitial && profitPct >= m.Params.TrailActivationPct {
		m.State = StateTrailingArmed
		candidate := m.LowestPrice * (1 + m.Params.TrailDistancePct)
		m.TrailingStopPrice = candidate
		if candidate < m.CurrentStopPrice {
			m.CurrentStopPrice = candidate
		}
	} else if m.State == StateTrailingArmed {
		candidate := m.LowestPrice * (1 + m.Params.TrailDistancePct)
		if m.TrailingStopPrice-candidate >= m.TrailingStopPrice*MinMovePct {
			m.TrailingStopPrice = candidate
			if candidate < m.CurrentStopPrice {
				m.CurrentStopPrice = candidate
			}
		}
	}

	if price >= m.CurrentStopPrice {
		m.State = StateTriggered
		return ExitStopTriggered, true
	}
	if price <= m.TakeProfitPrice && m.State != StateTrailingArmed {
		m.State = StateTriggered
		return ExitTargetReached, true
	}
	return "", false
}

// Rearm reconstructs a Machine at restart from the broker-reported
// position and the *current* market price (spec §4.11 / S4). It never
// resets highs/lows to entry price and transitions directly to
// TrailingArmed if the current profit already exceeds the activation
// threshold — the single most important recovery behavior in the spec.
func Rearm(params Params, currentPrice float64) (*Machine, error) {
	m, err := New(params)
	if err != nil {
		return nil, err
	}

	if params.Side == SideLong {
		m.HighestPrice = maxF(params.EntryPrice, currentPrice)
		m.LowestPrice = minF(params.EntryPrice, currentPrice)
		profitPct := (currentPrice - params.EntryPrice) / params.EntryPrice
		if profitPct >= params.TrailActivationPct {
			m.State = StateTrailingArmed
			candidate := m.HighestPrice * (1 - params.TrailDistancePct)
			m.TrailingStopPrice = candidate
			if candidate > m.CurrentStopPrice {
				m.CurrentStopPrice = candidate
			}
		}
	} else {
		m.HighestPrice = maxF(params.EntryPrice, currentPrice)
		m.LowestPrice = minF(params.EntryPrice, currentPrice)
		profitPct := (params.EntryPrice - currentPrice) / params.EntryPrice
		if profitPct >= params.TrailActivationPct {
			m.State = StateTrailingArmed
			candidate := m.LowestPrice * (1 + params.TrailDistancePct)
			m.TrailingStopPrice = candidate
			if candidate < m.CurrentStopPrice {
				m.CurrentStopPrice = candidate
			}
		}
	}

	return m, nil
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
