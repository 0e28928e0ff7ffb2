// Package strategy - mean_reversion.go implements the mean-reversion
// strategy: fade an extreme RSI reading back toward the Bollinger middle
// band, confirmed by an outsized volume spike.
package strategy

import "github.com/nitinkhare/intradaytrader/internal/indicator"

// MeanReversion proposes entries when RSI is at an extreme, price has
// pushed outside the Bollinger band, and volume confirms the move
// (spec §4.6).
type MeanReversion struct{}

func (MeanReversion) Name() string { return "mean_reversion" }

const (
	meanReversionRSIOversold   = 25
	meanReversionRSIOverbought = 75
	meanReversionMinVolumeRatio = 1.8
)

func (MeanReversion) Evaluate(in Input) *Signal {
	snap := in.Snapshot

	switch {
	case snap.RSI <= meanReversionRSIOversold && snap.CurrentPrice < snap.BBLower && snap.VolumeRatio >= meanReversionMinVolumeRatio:
		if in.Open != nil {
			return nil // already holding this symbol, let the trailing-stop manager run the exit
		}
		return &Signal{
			Symbol:             snap.Symbol,
			Action:             ActionBuy,
			Strategy:           "mean_reversion",
			Rationale:          "rsi oversold with price below lower band on elevated volume",
			StrategyConfidence: meanReversionConfidence(snap, meanReversionRSIOversold-snap.RSI, snap.VolumeRatio),
		}
	case snap.RSI >= meanReversionRSIOverbought && snap.CurrentPrice > snap.BBUpper && snap.VolumeRatio >= meanReversionMinVolumeRatio:
		if in.Open != nil {
			return nil
		}
		return &Signal{
			Symbol:             snap.Symbol,
			Action:             ActionShort,
			Strategy:           "mean_reversion",
			Rationale:          "rsi overbought with price above upper band on elevated volume",
			StrategyConfidence: meanReversionConfidence(snap, snap.RSI-meanReversionRSIOverbought, snap.VolumeRatio),
		}
	}
	return nil
}

// meanReversionConfidence scales the strategy-level pre-filter score with
// how far RSI has pushed past the entry threshold and how elevated volume
// is relative to the bare 1.8x entry requirement.
func meanReversionConfidence(_ indicator.Snapshot, rsiExtremity, volumeRatio float64) float64 {
	score := MinStrategyConfidence
	score += rsiExtremity // each RSI point past the threshold adds a point
	score += (volumeRatio - meanReversionMinVolumeRatio) * 10
	if score > 100 {
		score = 100
	}
	if score < MinStrategyConfidence {
		score = MinStrategyConfidence
	}
	return score
}
