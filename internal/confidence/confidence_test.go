package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/intradaytrader/internal/indicator"
	"github.com/nitinkhare/intradaytrader/internal/policy"
)

func bullishSnapshot() indicator.Snapshot {
	return indicator.Snapshot{
		Symbol:       "SOFI",
		MACDLine:     0.5,
		MACDSignal:   0.2,
		EMA9:         24.1,
		EMA21:        23.8,
		RSI:          55,
		VWAP:         23.9,
		BBUpper:      24.8,
		BBLower:      23.2,
		VolumeRatio:  2.3,
		CurrentPrice: 24.0,
		Momentum30m:  0.006,
		Momentum1h:   0.009,
	}
}

func TestScore_BullishSnapshotApprovesLong(t *testing.T) {
	e := NewEngine(DefaultVolatilityBands())
	pol := policy.Default
	pol.Profile = policy.HighVolatility
	pol.ConfidenceMultiplier = 1.0

	result := e.Score(bullishSnapshot(), pol)

	assert.Equal(t, ModeComputed, result.Mode)
	assert.Equal(t, DirectionLong, result.Direction)
	assert.GreaterOrEqual(t, result.Score, MinScore)

	approved, reason := ShouldExecute(result, DirectionLong)
	assert.True(t, approved, reason)
}

func TestScore_NonPositivePriceIsHardError(t *testing.T) {
	e := NewEngine(DefaultVolatilityBands())
	snap := bullishSnapshot()
	snap.CurrentPrice = 0

	result := e.Score(snap, policy.Default)
	require.Equal(t, ModeError, result.Mode)

	approved, _ := ShouldExecute(result, DirectionLong)
	assert.False(t, approved, "mode=Error must never be approved regardless of intended direction")
}

func TestShouldExecute_DirectionMismatchRejects(t *testing.T) {
	e := NewEngine(DefaultVolatilityBands())
	result := e.Score(bullishSnapshot(), policy.Default)
	require.Equal(t, DirectionLong, result.Direction)

	approved, reason := ShouldExecute(result, DirectionShort)
	assert.False(t, approved)
	assert.Contains(t, reason, "mismatch")
}

func TestShouldExecute_BelowThresholdRejects(t *testing.T) {
	result := Result{Symbol: "X", Mode: ModeComputed, Score: 60, Direction: DirectionLong}
	approved, reason := ShouldExecute(result, DirectionLong)
	assert.False(t, approved)
	assert.Contains(t, reason, "threshold")
}

func TestScore_ConfidenceMultiplierScalesFinalScore(t *testing.T) {
	e := NewEngine(DefaultVolatilityBands())
	snap := bullishSnapshot()

	low := policy.Default
	low.ConfidenceMultiplier = 0.90
	high := policy.Default
	high.ConfidenceMultiplier = 1.10

	lowResult := e.Score(snap, low)
	highResult := e.Score(snap, high)

	assert.Less(t, lowResult.Score, highResult.Score)
}
