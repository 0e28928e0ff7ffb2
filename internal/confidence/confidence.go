// Package confidence implements the real-time confidence gatekeeper: an
// eight-component weighted score that is the single authority deciding
// whether a candidate signal is allowed to reach the risk gate.
//
// Design rules (from spec):
//   - The source's rule "if real-time scoring fails, block all trading" is
//     preserved verbatim: mode=Error is always REJECT, with no fallback to
//     a historical or cached score.
//   - One entry point, one contract: Score, then ShouldExecute.
package confidence

import (
	"math"

	"github.com/nitinkhare/intradaytrader/internal/indicator"
	"github.com/nitinkhare/intradaytrader/internal/policy"
)

// Direction is the side a confidence result favors.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Mode distinguishes a real computation from a hard failure.
type Mode string

const (
	ModeComputed Mode = "COMPUTED"
	ModeError    Mode = "ERROR"
)

// MinScore is the hard admission threshold (spec §4.5).
const MinScore = 75.0

// baseScore is the starting point before weighted components are applied.
const baseScore = 85.0

// Component names, used as map keys in Result.Components.
const (
	ComponentMACD       = "macd_alignment"
	ComponentEMA        = "ema_trend"
	ComponentRSI        = "rsi_position"
	ComponentVolume     = "volume_confirmation"
	ComponentVWAP       = "vwap_position"
	ComponentBollinger  = "bollinger_position"
	ComponentMomentum   = "momentum_strength"
	ComponentVolatility = "volatility_match"
)

// Result is the outcome of scoring one symbol's snapshot for both
// candidate directions. Components holds the signed, per-component
// contribution for whichever direction won (positive favors that
// direction).
type Result struct {
	Symbol     string
	Score      float64
	Components map[string]float64
	Direction  Direction
	Mode       Mode
	Reason     string
}

// Engine scores an indicator.Snapshot into a Result.
type Engine struct {
	volatilityBands VolatilityBands
}

// NewEngine builds a confidence Engine using the given volatility bands
// (see volatility.go — this is the spec's "implementers must set defaults
// conservatively" open question, resolved as configuration).
func NewEngine(bands VolatilityBands) *Engine {
	return &Engine{volatilityBands: bands}
}

// Score produces a Result from a snapshot and the symbol's policy. It never
// panics on malformed input; a snapshot that can't be scored sensibly
// (e.g. a zero VWAP from a session with no volume yet) yields mode=Error.
func (e *Engine) Score(snap indicator.Snapshot, pol policy.Policy) Result {
	if snap.CurrentPrice <= 0 {
		return Result{Symbol: snap.Symbol, Mode: ModeError, Direction: DirectionNeutral, Reason: "non-positive current price"}
	}

	longComponents := e.components(snap, pol, DirectionLong)
	shortComponents := e.components(snap, pol, DirectionShort)

	longScore := clampScore(baseScore + sum(longComponents))
	shortScore := clampScore(baseScore + sum(shortComponents))

	direction := DirectionLong
	components := longComponents
	score := longScore
	if shortScore > longScore {
		direction = DirectionShort
		components = shortComponents
		score = shortScore
	}

	score = clampScore(score * pol.ConfidenceMultiplier)

	return Result{
		Symbol:     snap.Symbol,
		Score:      score,
		Components: components,
		Direction:  direction,
		Mode:       ModeComputed,
	}
}

// ShouldExecute is the gatekeeper contract: approved iff the result was
// actually computed, clears the hard threshold, and matches the direction
// the caller intends to trade. mode=Error is always rejected — there is no
// historical-baseline fallback.
func ShouldExecute(result Result, intended Direction) (approved bool, reason string) {
	if result.Mode == ModeError {
		return false, "confidence engine error: " + result.Reason
	}
	if result.Score < MinScore {
		return false, "confidence below threshold"
	}
	if result.Direction != intended {
		return false, "confidence direction mismatch"
	}
	return true, ""
}

func sum(m map[string]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}

func clampScore(s float64) float64 {
	return math.Max(0, math.Min(100, s))
}

// components computes the eight weighted, signed contributions for a
// candidate direction. Positive values favor dir; for Short candidates the
// Long-favorable conditions are inverted per spec §4.5.
func (e *Engine) components(snap indicator.Snapshot, pol policy.Policy, dir Direction) map[string]float64 {
	sign := 1.0
	if dir == DirectionShort {
		sign = -1.0
	}

	out := make(map[string]float64, 8)

	out[ComponentMACD] = signedWeight(15, sign*(snap.MACDLine-snap.MACDSignal) > 0)
	out[ComponentEMA] = emaTrendComponent(snap, sign)
	out[ComponentRSI] = rsiComponent(snap, sign)
	out[ComponentVolume] = signedWeight(15, snap.VolumeRatio >= 1.5)
	out[ComponentVWAP] = signedWeight(10, sign*(snap.CurrentPrice-snap.VWAP) > 0)
	out[ComponentBollinger] = bollingerComponent(snap, sign)
	out[ComponentMomentum] = momentumComponent(snap, pol, sign, e.volatilityBands)
	out[ComponentVolatility] = e.volatilityComponent(snap, pol)

	return out
}

// signedWeight returns +weight if favorable, -weight otherwise. Components
// with no meaningful "unfavorable" reading (e.g. volume confirmation) still
// follow this rule per spec §4.5's "add or subtract their weight".
func signedWeight(weight float64, favorable bool) float64 {
	if favorable {
		return weight
	}
	return -weight
}

func emaTrendComponent(snap indicator.Snapshot, sign float64) float64 {
	const weight = 15.0
	priceAboveEMA9 := sign*(snap.CurrentPrice-snap.EMA9) > 0
	ema9AboveEMA21 := sign*(snap.EMA9-snap.EMA21) > 0

	switch {
	case priceAboveEMA9 && ema9AboveEMA21:
		return weight
	case priceAboveEMA9 || ema9AboveEMA21:
		return weight / 2
	default:
		return -weight
	}
}

func rsiComponent(snap indicator.Snapshot, sign float64) float64 {
	const weight = 10.0
	neutral := snap.RSI >= 30 && snap.RSI <= 70
	if neutral {
		return weight
	}
	// Extreme: favorable only if it's the extreme that confirms this
	// direction (e.g. oversold RSI for a Long candidate).
	extremeConfirms := (sign > 0 && snap.RSI < 30) || (sign < 0 && snap.RSI > 70)
	if extremeConfirms {
		return weight
	}
	return -weight
}

func bollingerComponent(snap indicator.Snapshot, sign float64) float64 {
	const weight = 10.0
	if snap.BBUpper <= snap.BBLower {
		return -weight
	}
	within := snap.CurrentPrice >= snap.BBLower && snap.CurrentPrice <= snap.BBUpper
	if !within {
		return -weight
	}
	mid := (snap.BBUpper + snap.BBLower) / 2
	closerToLower := snap.CurrentPrice < mid
	if sign > 0 && closerToLower {
		return weight
	}
	if sign < 0 && !closerToLower {
		return weight
	}
	return weight / 2
}

func momentumComponent(snap indicator.Snapshot, pol policy.Policy, sign float64, bands VolatilityBands) float64 {
	const weight = 15.0
	threshold := bands.MomentumThreshold(pol.Profile)

	sameSign := sameSignF(snap.Momentum30m, snap.Momentum1h)
	magnitude := math.Min(math.Abs(snap.Momentum30m), math.Abs(snap.Momentum1h))
	strong := sameSign && magnitude >= threshold

	dirMatches := sign*snap.Momentum30m > 0 && sign*snap.Momentum1h > 0
	if strong && dirMatches {
		return weight
	}
	return -weight
}

func sameSignF(a, b float64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return (a > 0) == (b > 0)
}

func (e *Engine) volatilityComponent(snap indicator.Snapshot, pol policy.Policy) float64 {
	const weight = 10.0
	band := e.volatilityBands.BandFor(pol.Profile)
	realized := realizedVolatility(snap)
	if realized >= band.Min && realized <= band.Max {
		return weight
	}
	return -weight
}

// realizedVolatility approximates intraday realized volatility from the
// Bollinger band width relative to price — a cheap, already-computed proxy
// that avoids a second pass over raw bars.
func realizedVolatility(snap indicator.Snapshot) float64 {
	if snap.CurrentPrice <= 0 {
		return 0
	}
	return (snap.BBUpper - snap.BBLower) / snap.CurrentPrice
}
