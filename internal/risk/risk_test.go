package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/strategy"
)

func defaultLimits() Limits {
	return Limits{
		MaxPositionNotional:    10000,
		MaxConcurrentPositions: 5,
		MaxShortExposure:       1500,
		DailyLossCap:           500,
		MaxDailyTrades:         6,
	}
}

func TestCheck_ApprovesWithinLimits(t *testing.T) {
	g := NewGate(defaultLimits(), nil)
	sig := strategy.Signal{Symbol: "SOFI", Action: strategy.ActionBuy, ProposedQty: 100}
	decision := g.Check(sig, RiskState{}, policy.Default, 24.0, "", nil)
	require.True(t, decision.Approved())
}

// S3 — Risk gate blocks a short when short exposure would exceed the cap.
// A rejected short MUST NOT become an order in any direction — it must
// simply be discarded.
func TestCheck_ShortExposureExceeded(t *testing.T) {
	g := NewGate(defaultLimits(), nil)
	state := RiskState{TotalShortExposure: 1400}
	sig := strategy.Signal{Symbol: "GME", Action: strategy.ActionShort, ProposedQty: 10}

	decision := g.Check(sig, state, policy.Default, 20.0, "", nil) // notional 200, 1400+200=1600 > 1500

	require.False(t, decision.Approved())
	assert.Equal(t, ReasonShortExposure, decision.Reason())
	// The rejected decision carries the original signal for logging only;
	// it must never be reinterpreted as an approved order of any kind.
	assert.False(t, decision.Approved())
}

func TestCheck_KillSwitchBlocksAllNewEntries(t *testing.T) {
	g := NewGate(defaultLimits(), nil)
	state := RiskState{KillSwitch: true}
	sig := strategy.Signal{Symbol: "AAPL", Action: strategy.ActionBuy, ProposedQty: 1}

	decision := g.Check(sig, state, policy.Default, 150, "", nil)
	require.False(t, decision.Approved())
	assert.Equal(t, ReasonKillSwitch, decision.Reason())
}

func TestCheck_ExitAlwaysApprovedEvenWithKillSwitch(t *testing.T) {
	g := NewGate(defaultLimits(), nil)
	state := RiskState{KillSwitch: true, OpenPositionCount: 999}
	sig := strategy.Signal{Symbol: "AAPL", Action: strategy.ActionSellToClose, ProposedQty: 10}

	decision := g.Check(sig, state, policy.Default, 150, "", nil)
	assert.True(t, decision.Approved())
}

func TestCheck_MaxDailyTrades(t *testing.T) {
	g := NewGate(defaultLimits(), nil)
	state := RiskState{DailyTradeCount: 6}
	sig := strategy.Signal{Symbol: "SOFI", Action: strategy.ActionBuy, ProposedQty: 1}

	decision := g.Check(sig, state, policy.Default, 24, "", nil)
	require.False(t, decision.Approved())
	assert.Equal(t, ReasonMaxDailyTrades, decision.Reason())
}

func TestCheck_DailyLossBreach(t *testing.T) {
	g := NewGate(defaultLimits(), nil)
	state := RiskState{RealizedPnLToday: -500}
	sig := strategy.Signal{Symbol: "SOFI", Action: strategy.ActionBuy, ProposedQty: 1}

	decision := g.Check(sig, state, policy.Default, 24, "", nil)
	require.False(t, decision.Approved())
	assert.Equal(t, ReasonDailyLossBreach, decision.Reason())
}

func TestCheck_CircuitBreakerTrippedBlocksEntries(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveFailures: 1}, testLogger())
	cb.RecordFailure("market data timeout")
	require.True(t, cb.IsTripped())

	g := NewGate(defaultLimits(), cb)
	sig := strategy.Signal{Symbol: "SOFI", Action: strategy.ActionBuy, ProposedQty: 1}
	decision := g.Check(sig, RiskState{}, policy.Default, 24, "", nil)

	require.False(t, decision.Approved())
	assert.Equal(t, ReasonCircuitBreaker, decision.Reason())
}

func TestCheck_SectorConcentration(t *testing.T) {
	limits := defaultLimits()
	limits.MaxPerSector = 2
	g := NewGate(limits, nil)
	sig := strategy.Signal{Symbol: "JPM", Action: strategy.ActionBuy, ProposedQty: 1}

	decision := g.Check(sig, RiskState{}, policy.Default, 100, "financials", []string{"financials", "financials"})
	require.False(t, decision.Approved())
	assert.Equal(t, ReasonSectorConcentration, decision.Reason())
}
