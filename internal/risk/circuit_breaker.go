// Package risk - circuit_breaker.go provides automatic trading halt when
// repeated Order Manager or Market Data Provider failures are detected.
//
// The circuit breaker tracks:
//   - Consecutive failures (e.g. 5 in a row -> trip)
//   - Total failures within a rolling hour (e.g. 10/hour -> trip)
//
// When tripped, new entries are blocked until the cooldown period expires
// (auto-reset) or Reset is called manually.
//
// Exits are never blocked by this breaker — the Risk Gate's own "EXIT
// intents are always allowed" rule takes precedence.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CircuitBreakerConfig configures trip thresholds and cooldown.
type CircuitBreakerConfig struct {
	MaxConsecutiveFailures int
	MaxFailuresPerHour     int
	CooldownMinutes        int
}

// CircuitBreaker monitors Order Manager / Market Data Provider health and
// halts new entries when thresholds are breached. Thread-safe.
type CircuitBreaker struct {
	mu                  sync.Mutex
	config              CircuitBreakerConfig
	consecutiveFailures int
	hourlyFailures      []time.Time
	tripped             bool
	trippedAt           time.Time
	tripReason          string
	log                 zerolog.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	return &CircuitBreaker{config: cfg, log: logger.With().Str("component", "circuit_breaker").Logger()}
}

// RecordFailure records a failure event and trips the breaker if a
// threshold is exceeded.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.tripped {
		return
	}

	now := time.Now()
	cb.consecutiveFailures++
	cb.hourlyFailures = append(cb.hourlyFailures, now)
	cb.pruneHourlyFailures(now)

	if cb.config.MaxConsecutiveFailures > 0 && cb.consecutiveFailures >= cb.config.MaxConsecutiveFailures {
		cb.trip(fmt.Sprintf("consecutive failures: %d >= %d (last: %s)",
			cb.consecutiveFailures, cb.config.MaxConsecutiveFailures, reason))
		return
	}

	if cb.config.MaxFailuresPerHour > 0 && len(cb.hourlyFailures) >= cb.config.MaxFailuresPerHour {
		cb.trip(fmt.Sprintf("hourly failures: %d >= %d (last: %s)",
			len(cb.hourlyFailures), cb.config.MaxFailuresPerHour, reason))
		return
	}

	cb.log.Debug().Str("reason", reason).Int("consecutive", cb.consecutiveFailures).
		Int("hourly", len(cb.hourlyFailures)).Msg("failure recorded")
}

// RecordSuccess resets the consecutive-failure counter. Hourly failures are
// not reset by successes — a flapping symbol still trips the hourly budget.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
}

// IsTripped reports whether the breaker currently blocks new entries,
// auto-resetting if the cooldown period has elapsed.
func (cb *CircuitBreaker) IsTripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.tripped {
		return false
	}
	if cb.config.CooldownMinutes > 0 {
		cooldown := time.Duration(cb.config.CooldownMinutes) * time.Minute
		if time.Since(cb.trippedAt) >= cooldown {
			cb.log.Info().Dur("cooldown", cooldown).Msg("circuit breaker cooldown expired, auto-resetting")
			cb.resetLocked()
			return false
		}
	}
	return true
}

// TripReason returns why the breaker tripped, or "" if it isn't tripped.
func (cb *CircuitBreaker) TripReason() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.tripped {
		return ""
	}
	return cb.tripReason
}

// Reset manually clears the tripped state and all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.tripped {
		cb.log.Warn().Str("was_tripped_for", cb.tripReason).Msg("circuit breaker manually reset")
	}
	cb.resetLocked()
}

// UpdateConfig replaces the configuration without resetting tripped state.
func (cb *CircuitBreaker) UpdateConfig(cfg CircuitBreakerConfig) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.config = cfg
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.tripped = true
	cb.trippedAt = time.Now()
	cb.tripReason = reason
	cb.log.Error().Str("reason", reason).Msg("circuit breaker tripped")
}

func (cb *CircuitBreaker) resetLocked() {
	cb.tripped = false
	cb.trippedAt = time.Time{}
	cb.tripReason = ""
	cb.consecutiveFailures = 0
	cb.hourlyFailures = nil
}

func (cb *CircuitBreaker) pruneHourlyFailures(now time.Time) {
	cutoff := now.Add(-1 * time.Hour)
	i := 0
	for i < len(cb.hourlyFailures) && cb.hourlyFailures[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		cb.hourlyFailures = cb.hourlyFailures[i:]
	}
}
