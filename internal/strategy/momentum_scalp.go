// Package strategy - momentum_scalp.go implements the momentum-scalp
// strategy: enter on a MACD cross confirmed by an outsized volume spike and
// a sustained multi-bar price move, in the direction of EMA alignment.
package strategy

import (
	"math"

	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

const (
	momentumScalpMinVolumeRatio = 2.0
	momentumScalpMinMove        = 0.008 // 0.8% over ConfirmationBars bars
)

// MomentumScalp proposes entries on a MACD cross with strong volume and a
// confirmed multi-bar move in the direction of EMA9/21 alignment
// (spec §4.6).
type MomentumScalp struct{}

func (MomentumScalp) Name() string { return "momentum_scalp" }

func (MomentumScalp) Evaluate(in Input) *Signal {
	snap := in.Snapshot
	if in.Open != nil {
		return nil
	}
	if snap.VolumeRatio < momentumScalpMinVolumeRatio {
		return nil
	}
	if len(in.RecentBars) <= ConfirmationBars {
		return nil
	}

	confirmedMove, moveDirection := confirmedPriceMove(in.RecentBars, ConfirmationBars)
	if math.Abs(confirmedMove) < momentumScalpMinMove {
		return nil
	}

	macdBullish := snap.MACDLine > snap.MACDSignal
	emaBullish := snap.CurrentPrice > snap.EMA9 && snap.EMA9 > snap.EMA21

	if macdBullish && emaBullish && moveDirection > 0 {
		return &Signal{
			Symbol:             snap.Symbol,
			Action:             ActionBuy,
			Strategy:           "momentum_scalp",
			Rationale:          "macd bullish cross with confirmed 3-bar move and ema alignment",
			StrategyConfidence: momentumScalpConfidence(snap.VolumeRatio, confirmedMove),
		}
	}

	macdBearish := snap.MACDLine < snap.MACDSignal
	emaBearish := snap.CurrentPrice < snap.EMA9 && snap.EMA9 < snap.EMA21

	if macdBearish && emaBearish && moveDirection < 0 {
		return &Signal{
			Symbol:             snap.Symbol,
			Action:             ActionShort,
			Strategy:           "momentum_scalp",
			Rationale:          "macd bearish cross with confirmed 3-bar move and ema alignment",
			StrategyConfidence: momentumScalpConfidence(snap.VolumeRatio, confirmedMove),
		}
	}
	return nil
}

// confirmedPriceMove returns the signed percentage move from n bars ago to
// the newest bar, and its sign, used to confirm the move held rather than
// spiking on a single bar.
func confirmedPriceMove(bars []marketdata.Bar, n int) (pct float64, sign int) {
	if len(bars) <= n {
		return 0, 0
	}
	past := bars[len(bars)-1-n].Close
	now := bars[len(bars)-1].Close
	if past == 0 {
		return 0, 0
	}
	pct = (now - past) / past
	switch {
	case pct > 0:
		sign = 1
	case pct < 0:
		sign = -1
	}
	return pct, sign
}

// momentumScalpConfidence scales the strategy-level pre-filter score with
// how far volume and the confirmed move exceed their bare thresholds.
func momentumScalpConfidence(volumeRatio, move float64) float64 {
	score := MinStrategyConfidence
	score += (volumeRatio - momentumScalpMinVolumeRatio) * 8
	score += (math.Abs(move) - momentumScalpMinMove) * 1000
	if score > 100 {
		score = 100
	}
	if score < MinStrategyConfidence {
		score = MinStrategyConfidence
	}
	return score
}
