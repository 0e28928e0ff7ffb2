package position

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/trailstop"
)

// snapshot is the on-disk shape of a Position: flat and JSON-friendly, as
// opposed to Position itself which embeds a *trailstop.Machine.
type snapshot struct {
	Symbol     string
	Side       Side
	Qty        int
	EntryPrice float64
	EntryTsUnix int64

	Policy json.RawMessage // opaque — policy.Policy is encoded by the caller's json tags

	TrailState            trailstop.State
	TrailHighestPrice     float64
	TrailLowestPrice      float64
	TrailCurrentStopPrice float64
	TrailTakeProfitPrice  float64
	TrailTrailingStopPrice float64
	TrailParams           trailstop.Params
}

// JSONCodec encodes/decodes Position as JSON, the format used by both the
// Postgres KV table and the bbolt bucket.
type JSONCodec struct{}

func (JSONCodec) Encode(p *Position) ([]byte, error) {
	polJSON, err := json.Marshal(p.Policy)
	if err != nil {
		return nil, fmt.Errorf("position codec: encode policy: %w", err)
	}

	s := snapshot{
		Symbol:                 p.Symbol,
		Side:                   p.Side,
		Qty:                    p.Qty,
		EntryPrice:             p.EntryPrice,
		EntryTsUnix:            p.EntryTs.Unix(),
		Policy:                 polJSON,
		TrailState:             p.Trail.State,
		TrailHighestPrice:      p.Trail.HighestPrice,
		TrailLowestPrice:       p.Trail.LowestPrice,
		TrailCurrentStopPrice:  p.Trail.CurrentStopPrice,
		TrailTakeProfitPrice:   p.Trail.TakeProfitPrice,
		TrailTrailingStopPrice: p.Trail.TrailingStopPrice,
		TrailParams:            p.Trail.Params,
	}
	return json.Marshal(s)
}

func (JSONCodec) Decode(data []byte) (*Position, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("position codec: decode: %w", err)
	}

	var pol struct {
		Symbol               string
		StopPct              float64
		TargetPct            float64
		TrailActivationPct   float64
		TrailDistancePct     float64
		SizeMultiplier       float64
		ConfidenceMultiplier float64
		Profile              string
	}
	if err := json.Unmarshal(s.Policy, &pol); err != nil {
		return nil, fmt.Errorf("position codec: decode policy: %w", err)
	}

	p := &Position{
		Symbol:     s.Symbol,
		Side:       s.Side,
		Qty:        s.Qty,
		EntryPrice: s.EntryPrice,
		EntryTs:    time.Unix(s.EntryTsUnix, 0).UTC(),
		Policy: policy.Policy{
			Symbol:               pol.Symbol,
			StopPct:              pol.StopPct,
			TargetPct:            pol.TargetPct,
			TrailActivationPct:   pol.TrailActivationPct,
			TrailDistancePct:     pol.TrailDistancePct,
			SizeMultiplier:       pol.SizeMultiplier,
			ConfidenceMultiplier: pol.ConfidenceMultiplier,
			Profile:              policy.VolatilityProfile(pol.Profile),
		},
		Trail: &trailstop.Machine{
			Params:            s.TrailParams,
			State:             s.TrailState,
			HighestPrice:      s.TrailHighestPrice,
			LowestPrice:       s.TrailLowestPrice,
			CurrentStopPrice:  s.TrailCurrentStopPrice,
			TakeProfitPrice:   s.TrailTakeProfitPrice,
			TrailingStopPrice: s.TrailTrailingStopPrice,
		},
	}
	return p, nil
}
