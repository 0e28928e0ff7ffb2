package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/intradaytrader/internal/indicator"
	"github.com/nitinkhare/intradaytrader/internal/marketdata"
	"github.com/nitinkhare/intradaytrader/internal/policy"
)

func barsHoldingAbove(vwap float64, n int) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Close: vwap + 0.02,
			Ts:    ts.Add(time.Duration(i) * 15 * time.Minute),
		}
	}
	return bars
}

func TestMeanReversion_OversoldEntersLong(t *testing.T) {
	snap := indicator.Snapshot{
		Symbol:       "NIO",
		RSI:          20,
		CurrentPrice: 9.0,
		BBLower:      9.5,
		VolumeRatio:  2.0,
	}
	sig := MeanReversion{}.Evaluate(Input{Snapshot: snap, Policy: policy.Default})
	require.NotNil(t, sig)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.GreaterOrEqual(t, sig.StrategyConfidence, MinStrategyConfidence)
}

func TestMeanReversion_SkipsWhenAlreadyHoldingPosition(t *testing.T) {
	snap := indicator.Snapshot{RSI: 20, CurrentPrice: 9.0, BBLower: 9.5, VolumeRatio: 2.0}
	open := &OpenPosition{Side: SideLong, EntryPrice: 9.2, Qty: 10}
	sig := MeanReversion{}.Evaluate(Input{Snapshot: snap, Open: open})
	assert.Nil(t, sig)
}

func TestMeanReversion_NoSignalOnNeutralRSI(t *testing.T) {
	snap := indicator.Snapshot{RSI: 50, CurrentPrice: 9.0, BBLower: 9.5, BBUpper: 10.5, VolumeRatio: 2.0}
	sig := MeanReversion{}.Evaluate(Input{Snapshot: snap})
	assert.Nil(t, sig)
}

func TestMomentumScalp_BullishCrossWithConfirmedMove(t *testing.T) {
	bars := make([]marketdata.Bar, 5)
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	closes := []float64{100, 100.0, 100.3, 100.6, 101.0} // 1% over the last 3 bars
	for i, c := range closes {
		bars[i] = marketdata.Bar{Close: c, Ts: ts.Add(time.Duration(i) * 15 * time.Minute)}
	}
	snap := indicator.Snapshot{
		Symbol:       "TSLA",
		MACDLine:     0.5,
		MACDSignal:   0.1,
		EMA9:         100.8,
		EMA21:        100.2,
		CurrentPrice: 101.0,
		VolumeRatio:  2.5,
	}
	sig := MomentumScalp{}.Evaluate(Input{Snapshot: snap, RecentBars: bars})
	require.NotNil(t, sig)
	assert.Equal(t, ActionBuy, sig.Action)
}

func TestMomentumScalp_InsufficientVolumeNoSignal(t *testing.T) {
	snap := indicator.Snapshot{MACDLine: 0.5, MACDSignal: 0.1, VolumeRatio: 1.0}
	sig := MomentumScalp{}.Evaluate(Input{Snapshot: snap})
	assert.Nil(t, sig)
}

func TestVWAPBounce_HoldingAboveEntersLong(t *testing.T) {
	vwap := 50.0
	snap := indicator.Snapshot{
		Symbol:       "AAPL",
		VWAP:         vwap,
		CurrentPrice: vwap + 0.02,
		VolumeRatio:  2.1,
	}
	bars := barsHoldingAbove(vwap, ConfirmationBars+1)
	sig := VWAPBounce{}.Evaluate(Input{Snapshot: snap, RecentBars: bars})
	require.NotNil(t, sig)
	assert.Equal(t, ActionBuy, sig.Action)
}

func TestVWAPBounce_TooFarFromVWAPNoSignal(t *testing.T) {
	snap := indicator.Snapshot{VWAP: 50, CurrentPrice: 51, VolumeRatio: 3}
	sig := VWAPBounce{}.Evaluate(Input{Snapshot: snap})
	assert.Nil(t, sig)
}

func TestAll_ReturnsThreeStrategies(t *testing.T) {
	assert.Len(t, All(), 3)
}
