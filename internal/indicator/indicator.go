// Package indicator computes the shared per-symbol technical indicator
// snapshot consumed by the confidence engine and the strategy set.
//
// Design rules (from spec):
//   - Indicators are computed once per (symbol, cycle) and shared.
//   - The service is stateless across cycles; a cache keyed by
//     (symbol, latestBarTs) is permitted but must never return a snapshot
//     older than the current cycle's data.
//   - Fewer than 50 bars is InsufficientDataError; never a default score.
package indicator

import (
	"fmt"
	"math"

	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

// MinBars is the minimum bar count required to compute a snapshot.
const MinBars = 50

// InsufficientDataError is returned when fewer than MinBars bars are
// available. Callers must treat this as a hard reject, never a default.
type InsufficientDataError struct {
	Symbol string
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("indicator: %s has %d bars, need at least %d", e.Symbol, e.Got, MinBars)
}

// Snapshot is the full set of shared indicators computed from a trailing
// window of bars, as of the newest bar's timestamp.
type Snapshot struct {
	Symbol string
	LatestBarTs int64 // unix seconds of the newest bar, used as the cache key

	MACDLine   float64
	MACDSignal float64
	EMA9       float64
	EMA21      float64
	RSI        float64
	VWAP       float64
	BBUpper    float64
	BBLower    float64

	Volume      int64
	AvgVolume   float64
	VolumeRatio float64

	CurrentPrice float64
	Momentum30m  float64
	Momentum1h   float64
}

// Compute builds a Snapshot from ordered bars (oldest first). barsPerHour
// is the number of bars per hour at the configured resolution (4 for
// 15-minute bars), used to size the momentum lookback windows.
func Compute(symbol string, bars []marketdata.Bar, barsPerHour int) (Snapshot, error) {
	if len(bars) < MinBars {
		return Snapshot{}, &InsufficientDataError{Symbol: symbol, Got: len(bars)}
	}

	closes := closesOf(bars)
	last := bars[len(bars)-1]

	macdLine, macdSignal := macd(closes, 12, 26, 9)
	ema9 := ema(closes, 9)
	ema21 := ema(closes, 21)
	rsi := wilderRSI(closes, 14)
	vwap := sessionVWAP(bars)
	bbUpper, bbLower := bollinger(closes, 20, 2)
	avgVol := averageVolume(bars, 20)

	var volRatio float64
	if avgVol > 0 {
		volRatio = float64(last.Volume) / avgVol
	}

	halfHourBars := barsPerHour / 2
	if halfHourBars < 1 {
		halfHourBars = 1
	}
	mom30 := momentum(closes, halfHourBars)
	mom60 := momentum(closes, barsPerHour)

	return Snapshot{
		Symbol:       symbol,
		LatestBarTs:  last.Ts.Unix(),
		MACDLine:     macdLine,
		MACDSignal:   macdSignal,
		EMA9:         ema9,
		EMA21:        ema21,
		RSI:          rsi,
		VWAP:         vwap,
		BBUpper:      bbUpper,
		BBLower:      bbLower,
		Volume:       last.Volume,
		AvgVolume:    avgVol,
		VolumeRatio:  volRatio,
		CurrentPrice: last.Close,
		Momentum30m:  mom30,
		Momentum1h:   mom60,
	}, nil
}

func closesOf(bars []marketdata.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// ema computes the exponential moving average over the last `period` closes,
// seeded with a simple average of the first `period` values in the window.
func ema(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	window := closes[len(closes)-period:]
	var sum float64
	for _, c := range window[:period] {
		sum += c
	}
	val := sum / float64(period)
	k := 2.0 / float64(period+1)
	for _, c := range window {
		val = c*k + val*(1-k)
	}
	return val
}

// emaSeries returns the EMA value at every index of closes (nan until the
// seed window fills), used internally by macd to build the signal line.
func emaSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period || period <= 0 {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += closes[i]
		out[i] = math.NaN()
	}
	val := sum / float64(period)
	out[period-1] = val
	k := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		val = closes[i]*k + val*(1-k)
		out[i] = val
	}
	return out
}

func macd(closes []float64, fast, slow, signalPeriod int) (line, signal float64) {
	if len(closes) < slow+signalPeriod {
		return 0, 0
	}
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	macdSeries := make([]float64, len(closes))
	for i := range closes {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			macdSeries[i] = math.NaN()
			continue
		}
		macdSeries[i] = fastEMA[i] - slowEMA[i]
	}

	valid := make([]float64, 0, len(macdSeries))
	for _, v := range macdSeries {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < signalPeriod {
		return macdSeries[len(macdSeries)-1], 0
	}
	signalLine := ema(valid, signalPeriod)
	return macdSeries[len(macdSeries)-1], signalLine
}

func wilderRSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum += math.Abs(change)
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = math.Abs(change)
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func bollinger(closes []float64, period int, numStdDev float64) (upper, lower float64) {
	if len(closes) < period {
		return 0, 0
	}
	window := closes[len(closes)-period:]
	var sum float64
	for _, c := range window {
		sum += c
	}
	mean := sum / float64(period)

	var variance float64
	for _, c := range window {
		d := c - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(period))

	return mean + numStdDev*stddev, mean - numStdDev*stddev
}

// sessionVWAP computes the volume-weighted average price across all bars in
// the window passed in. It does not reset at a session boundary: Compute
// passes its whole lookback window, which can span more than one session.
func sessionVWAP(bars []marketdata.Bar) float64 {
	var pvSum, volSum float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pvSum += typical * float64(b.Volume)
		volSum += float64(b.Volume)
	}
	if volSum == 0 {
		return 0
	}
	return pvSum / volSum
}

func averageVolume(bars []marketdata.Bar, period int) float64 {
	if len(bars) == 0 || period <= 0 {
		return 0
	}
	start := len(bars) - period
	if start < 0 {
		start = 0
	}
	var sum float64
	count := 0
	for i := start; i < len(bars); i++ {
		sum += float64(bars[i].Volume)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// momentum returns (price_now - price_n_ago)/price_n_ago over n bars back.
func momentum(closes []float64, n int) float64 {
	if len(closes) <= n || n <= 0 {
		return 0
	}
	now := closes[len(closes)-1]
	past := closes[len(closes)-1-n]
	if past == 0 {
		return 0
	}
	return (now - past) / past
}
