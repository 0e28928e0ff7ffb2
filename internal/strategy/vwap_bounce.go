// Package strategy - vwap_bounce.go implements the VWAP-bounce strategy:
// enter when price sits tight against the session VWAP and has held above
// or below it for several bars on elevated volume.
package strategy

import "math"

const (
	vwapBounceMaxDistance  = 0.0015 // 0.15%
	vwapBounceMinVolumeRatio = 2.0
)

// VWAPBounce proposes entries when price is within 0.15% of session VWAP,
// confirmed by 3 bars holding on the same side of VWAP with strong volume
// (spec §4.6).
type VWAPBounce struct{}

func (VWAPBounce) Name() string { return "vwap_bounce" }

func (VWAPBounce) Evaluate(in Input) *Signal {
	snap := in.Snapshot
	if in.Open != nil {
		return nil
	}
	if snap.VWAP <= 0 {
		return nil
	}
	distance := math.Abs(snap.CurrentPrice-snap.VWAP) / snap.VWAP
	if distance > vwapBounceMaxDistance {
		return nil
	}
	if snap.VolumeRatio < vwapBounceMinVolumeRatio {
		return nil
	}
	if len(in.RecentBars) <= ConfirmationBars {
		return nil
	}

	held := in.RecentBars[len(in.RecentBars)-ConfirmationBars:]
	allAbove, allBelow := true, true
	for _, b := range held {
		if b.Close <= snap.VWAP {
			allAbove = false
		}
		if b.Close >= snap.VWAP {
			allBelow = false
		}
	}

	confidence := vwapBounceConfidence(distance, snap.VolumeRatio)

	switch {
	case allAbove:
		return &Signal{
			Symbol:             snap.Symbol,
			Action:             ActionBuy,
			Strategy:           "vwap_bounce",
			Rationale:          "price holding above vwap within 0.15% on elevated volume",
			StrategyConfidence: confidence,
		}
	case allBelow:
		return &Signal{
			Symbol:             snap.Symbol,
			Action:             ActionShort,
			Strategy:           "vwap_bounce",
			Rationale:          "price holding below vwap within 0.15% on elevated volume",
			StrategyConfidence: confidence,
		}
	}
	return nil
}

// vwapBounceConfidence scales the strategy-level pre-filter score with how
// tight the price sits to VWAP and how elevated volume is.
func vwapBounceConfidence(distance, volumeRatio float64) float64 {
	score := MinStrategyConfidence
	score += (vwapBounceMaxDistance - distance) * 10000
	score += (volumeRatio - vwapBounceMinVolumeRatio) * 8
	if score > 100 {
		score = 100
	}
	if score < MinStrategyConfidence {
		score = MinStrategyConfidence
	}
	return score
}
