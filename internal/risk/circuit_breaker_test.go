package risk

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestCircuitBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveFailures: 3}, testLogger())
	cb.RecordFailure("a")
	cb.RecordFailure("b")
	require.False(t, cb.IsTripped())
	cb.RecordFailure("c")
	require.True(t, cb.IsTripped())
	assert.Contains(t, cb.TripReason(), "consecutive")
}

func TestCircuitBreaker_SuccessResetsConsecutiveOnly(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveFailures: 3, MaxFailuresPerHour: 10}, testLogger())
	cb.RecordFailure("a")
	cb.RecordFailure("b")
	cb.RecordSuccess()
	cb.RecordFailure("c")
	cb.RecordFailure("d")
	assert.False(t, cb.IsTripped(), "success should have reset the consecutive counter")
}

func TestCircuitBreaker_TripsOnHourlyBudget(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveFailures: 100, MaxFailuresPerHour: 2}, testLogger())
	cb.RecordFailure("a")
	cb.RecordSuccess()
	cb.RecordFailure("b")
	require.True(t, cb.IsTripped(), "hourly budget is not reset by success")
}

func TestCircuitBreaker_ZeroCooldownNeverAutoResets(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveFailures: 1, CooldownMinutes: 0}, testLogger())
	cb.RecordFailure("a")
	require.True(t, cb.tripped)
	// CooldownMinutes=0 disables the auto-reset check entirely — IsTripped
	// should stay tripped until Reset is called manually.
	assert.True(t, cb.IsTripped())
	cb.Reset()
	assert.False(t, cb.IsTripped())
}

func TestCircuitBreaker_ManualReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveFailures: 1}, testLogger())
	cb.RecordFailure("a")
	require.True(t, cb.IsTripped())
	cb.Reset()
	assert.False(t, cb.IsTripped())
	assert.Equal(t, "", cb.TripReason())
}
