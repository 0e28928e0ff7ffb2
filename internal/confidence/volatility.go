package confidence

import "github.com/nitinkhare/intradaytrader/internal/policy"

// Band is a [Min, Max] realized-volatility range considered "in profile"
// for the Volatility match scoring component.
type Band struct {
	Min, Max float64
}

// VolatilityBands maps each policy.VolatilityProfile to its expected
// realized-volatility range and momentum-strength threshold. The source
// implies these ranges without writing them down consistently (spec §9
// open question); this expansion resolves them as configuration with
// conservative defaults, keyed on the six profiles named in spec §3.
type VolatilityBands struct {
	bands     map[policy.VolatilityProfile]Band
	momentum  map[policy.VolatilityProfile]float64
}

// DefaultVolatilityBands returns the conservative defaults used when
// configuration doesn't override them.
func DefaultVolatilityBands() VolatilityBands {
	return VolatilityBands{
		bands: map[policy.VolatilityProfile]Band{
			policy.LowStable:         {Min: 0.002, Max: 0.015},
			policy.LowTech:           {Min: 0.004, Max: 0.020},
			policy.ModerateLeveraged: {Min: 0.006, Max: 0.030},
			policy.ModerateFintech:   {Min: 0.005, Max: 0.025},
			policy.ModerateEV:        {Min: 0.006, Max: 0.030},
			policy.HighVolatility:    {Min: 0.008, Max: 0.045},
		},
		momentum: map[policy.VolatilityProfile]float64{
			policy.LowStable:         0.003,
			policy.LowTech:           0.004,
			policy.ModerateLeveraged: 0.006,
			policy.ModerateFintech:   0.005,
			policy.ModerateEV:        0.006,
			policy.HighVolatility:    0.008,
		},
	}
}

// NewVolatilityBands builds a VolatilityBands from explicit config, falling
// back to the conservative default for any profile left unspecified.
func NewVolatilityBands(bands map[policy.VolatilityProfile]Band, momentumThresholds map[policy.VolatilityProfile]float64) VolatilityBands {
	d := DefaultVolatilityBands()
	for profile, b := range bands {
		d.bands[profile] = b
	}
	for profile, m := range momentumThresholds {
		d.momentum[profile] = m
	}
	return d
}

// BandFor returns the configured realized-volatility band for profile,
// defaulting to the HighVolatility band (widest, most permissive) for an
// unrecognized profile rather than rejecting every trade outright.
func (v VolatilityBands) BandFor(profile policy.VolatilityProfile) Band {
	if b, ok := v.bands[profile]; ok {
		return b
	}
	return v.bands[policy.HighVolatility]
}

// MomentumThreshold returns the minimum momentum magnitude that counts as
// "strong" for profile, used by the Momentum strength scoring component.
func (v VolatilityBands) MomentumThreshold(profile policy.VolatilityProfile) float64 {
	if m, ok := v.momentum[profile]; ok {
		return m
	}
	return v.momentum[policy.HighVolatility]
}
