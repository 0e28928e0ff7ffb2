package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

func barsTrendingUp(n int, start float64, step float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		o := price
		c := price + step
		bars[i] = marketdata.Bar{
			Symbol: "TEST",
			Ts:     ts.Add(time.Duration(i) * 15 * time.Minute),
			Open:   o,
			High:   c + 0.05,
			Low:    o - 0.05,
			Close:  c,
			Volume: 10_000,
		}
		price = c
	}
	return bars
}

func TestCompute_InsufficientData(t *testing.T) {
	bars := barsTrendingUp(10, 10, 0.1)
	_, err := Compute("TEST", bars, BarsPerHour)
	require.Error(t, err)
	var insufficient *InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestCompute_UptrendProducesBullishIndicators(t *testing.T) {
	bars := barsTrendingUp(60, 10, 0.1)
	snap, err := Compute("TEST", bars, BarsPerHour)
	require.NoError(t, err)

	assert.Greater(t, snap.EMA9, snap.EMA21, "ema9 should lead ema21 in a steady uptrend")
	assert.Greater(t, snap.RSI, 50.0, "rsi should favor the trend direction")
	assert.Greater(t, snap.Momentum30m, 0.0)
	assert.Greater(t, snap.Momentum1h, 0.0)
	assert.Equal(t, bars[len(bars)-1].Close, snap.CurrentPrice)
	assert.Equal(t, bars[len(bars)-1].Ts.Unix(), snap.LatestBarTs)
}

func TestCompute_FlatSeriesHasNoLossesSoRSIIsMaxed(t *testing.T) {
	bars := barsTrendingUp(60, 10, 0)
	snap, err := Compute("TEST", bars, BarsPerHour)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.RSI, "zero average loss is defined as RSI=100")
}

func TestBollinger_WidensWithVolatility(t *testing.T) {
	flat := make([]float64, 25)
	for i := range flat {
		flat[i] = 100
	}
	upperFlat, lowerFlat := bollinger(flat, 20, 2)
	assert.InDelta(t, 100, upperFlat, 0.01)
	assert.InDelta(t, 100, lowerFlat, 0.01)

	volatile := append([]float64{}, flat...)
	volatile[len(volatile)-1] = 120
	upperVol, lowerVol := bollinger(volatile, 20, 2)
	assert.Greater(t, upperVol-lowerVol, upperFlat-lowerFlat)
}
