// Package policy holds the immutable per-symbol trading policy table.
//
// The table is loaded once at startup from config and never hot-reloaded
// (see SPEC_FULL.md §0 — SymbolPolicy reload is an explicit non-goal). A
// Position copies its policy at entry time so later table edits cannot
// retroactively change the behavior of an open position.
package policy

// VolatilityProfile buckets a symbol's typical intraday range, used by the
// confidence engine to pick the volatility-component scoring band.
type VolatilityProfile string

const (
	LowStable         VolatilityProfile = "LowStable"
	LowTech           VolatilityProfile = "LowTech"
	ModerateLeveraged VolatilityProfile = "ModerateLeveraged"
	ModerateFintech   VolatilityProfile = "ModerateFintech"
	ModerateEV        VolatilityProfile = "ModerateEV"
	HighVolatility    VolatilityProfile = "HighVolatility"
)

// Policy is the set of per-symbol trading parameters. All percentages are
// fractions of entry price (e.g. 0.015 == 1.5%).
type Policy struct {
	Symbol string

	StopPct             float64
	TargetPct           float64
	TrailActivationPct  float64
	TrailDistancePct    float64
	SizeMultiplier      float64
	ConfidenceMultiplier float64
	Profile             VolatilityProfile
}

// Default is applied to any symbol absent from the configured table.
var Default = Policy{
	StopPct:              0.015,
	TargetPct:             0.020,
	TrailActivationPct:    0.010,
	TrailDistancePct:      0.015,
	SizeMultiplier:        1.0,
	ConfidenceMultiplier:  1.0,
	Profile:               HighVolatility,
}

// Table is the immutable, loaded-once symbol policy table.
type Table struct {
	policies map[string]Policy
}

// NewTable builds a Table from a symbol->Policy map, filling in Symbol on
// each entry and leaving any zero-valued field as given (callers are
// expected to have validated completeness via config.Validate).
func NewTable(entries map[string]Policy) *Table {
	t := &Table{policies: make(map[string]Policy, len(entries))}
	for sym, p := range entries {
		p.Symbol = sym
		t.policies[sym] = p
	}
	return t
}

// Get returns the policy for symbol, or Default (with Symbol set) if the
// symbol has no configured entry. The returned Policy is a value copy —
// safe for a Position to embed without aliasing the table.
func (t *Table) Get(symbol string) Policy {
	if t != nil {
		if p, ok := t.policies[symbol]; ok {
			return p
		}
	}
	d := Default
	d.Symbol = symbol
	return d
}

// Symbols returns the symbols that have a configured policy entry, in no
// particular order.
func (t *Table) Symbols() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.policies))
	for sym := range t.policies {
		out = append(out, sym)
	}
	return out
}
