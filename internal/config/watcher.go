// Package config - watcher.go provides config file hot-reload support.
//
// The watcher polls the config file for changes (stat-based, every 5
// seconds) and notifies registered callbacks when risk parameters or the
// cycle interval change.
//
// Only risk limits, the circuit breaker, and the cycle interval are
// reloadable. SymbolPolicies, broker selection, database URL, trading
// mode, and the watchlist require an engine restart (spec.md §4.2:
// SymbolPolicy hot-reload is explicitly out of scope, and this watcher
// extends that same restriction to every other structural field).
package config

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Watcher monitors the config file for changes and invokes callbacks when
// reloadable fields change. It uses stat-based polling (no external
// dependencies like fsnotify required).
type Watcher struct {
	path     string
	log      zerolog.Logger
	interval time.Duration

	mu       sync.RWMutex
	current  *Config
	lastMod  time.Time
	onChange []func(old, new *Config)
	done     chan struct{}
	stopped  bool
}

// NewWatcher creates a watcher for the given config file path. initial is
// the currently loaded config. The watcher does not start until Start()
// is called.
func NewWatcher(path string, initial *Config, log zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		log:      log.With().Str("component", "config_watcher").Logger(),
		interval: 5 * time.Second,
		current:  initial,
		done:     make(chan struct{}),
	}
}

// OnChange registers a callback invoked after the config file changes and
// the new config passes validation AND at least one reloadable field
// differs. Callbacks receive the old and new config values.
func (w *Watcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins polling the config file for changes in a background
// goroutine. Returns an error if the initial file stat fails.
func (w *Watcher) Start() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.log.Info().Str("path", w.path).Dur("poll_interval", w.interval).Msg("watching config file for changes")

	go w.pollLoop()
	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.done)
		w.log.Info().Msg("config watcher stopped")
	}
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) pollLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

func (w *Watcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("config watcher: stat failed")
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}
	w.lastMod = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("config watcher: read failed")
		return
	}

	var newCfg Config
	if err := json.Unmarshal(data, &newCfg); err != nil {
		w.log.Warn().Err(err).Msg("config watcher: parse failed, keeping old config")
		return
	}
	newCfg.applyDefaults()
	if err := newCfg.Validate(); err != nil {
		w.log.Warn().Err(err).Msg("config watcher: validation failed, keeping old config")
		return
	}

	w.mu.RLock()
	oldCfg := w.current
	w.mu.RUnlock()

	// Structural fields (watchlist, symbol policies, broker, database,
	// trading window) are read from the file but not reloaded — copy
	// them forward from the running config so an operator editing the
	// file for an unrelated reason can't accidentally change them live.
	newCfg.ActiveBroker = oldCfg.ActiveBroker
	newCfg.TradingMode = oldCfg.TradingMode
	newCfg.DryRun = oldCfg.DryRun
	newCfg.Watchlist = oldCfg.Watchlist
	newCfg.TradingWindowStart = oldCfg.TradingWindowStart
	newCfg.TradingWindowEnd = oldCfg.TradingWindowEnd
	newCfg.SymbolPolicies = oldCfg.SymbolPolicies
	newCfg.BrokerConfig = oldCfg.BrokerConfig
	newCfg.DatabaseURL = oldCfg.DatabaseURL

	if !reloadableFieldsChanged(oldCfg, &newCfg) {
		w.log.Debug().Msg("config file changed but no reloadable field differs, skipping")
		return
	}
	w.logChanges(oldCfg, &newCfg)

	w.mu.Lock()
	w.current = &newCfg
	callbacks := make([]func(old, new *Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(oldCfg, &newCfg)
	}
}

func reloadableFieldsChanged(old, new *Config) bool {
	return old.CycleIntervalSeconds != new.CycleIntervalSeconds ||
		old.MinConfidence != new.MinConfidence ||
		old.MaxPositionNotional != new.MaxPositionNotional ||
		old.MaxShortExposure != new.MaxShortExposure ||
		old.MaxConcurrentPositions != new.MaxConcurrentPositions ||
		old.MaxDailyTrades != new.MaxDailyTrades ||
		old.DailyLossCap != new.DailyLossCap ||
		old.AccountRiskPerTrade != new.AccountRiskPerTrade ||
		old.MaxPerSector != new.MaxPerSector ||
		old.CircuitBreaker != new.CircuitBreaker
}

func (w *Watcher) logChanges(old, new *Config) {
	if old.CycleIntervalSeconds != new.CycleIntervalSeconds {
		w.log.Info().Int("old", old.CycleIntervalSeconds).Int("new", new.CycleIntervalSeconds).Msg("cycle_interval_seconds changed")
	}
	if old.MinConfidence != new.MinConfidence {
		w.log.Info().Float64("old", old.MinConfidence).Float64("new", new.MinConfidence).Msg("min_confidence changed")
	}
	if old.MaxPositionNotional != new.MaxPositionNotional {
		w.log.Info().Float64("old", old.MaxPositionNotional).Float64("new", new.MaxPositionNotional).Msg("max_position_notional changed")
	}
	if old.MaxShortExposure != new.MaxShortExposure {
		w.log.Info().Float64("old", old.MaxShortExposure).Float64("new", new.MaxShortExposure).Msg("max_short_exposure changed")
	}
	if old.MaxConcurrentPositions != new.MaxConcurrentPositions {
		w.log.Info().Int("old", old.MaxConcurrentPositions).Int("new", new.MaxConcurrentPositions).Msg("max_concurrent_positions changed")
	}
	if old.MaxDailyTrades != new.MaxDailyTrades {
		w.log.Info().Int("old", old.MaxDailyTrades).Int("new", new.MaxDailyTrades).Msg("max_daily_trades changed")
	}
	if old.DailyLossCap != new.DailyLossCap {
		w.log.Info().Float64("old", old.DailyLossCap).Float64("new", new.DailyLossCap).Msg("daily_loss_cap changed")
	}
	if old.AccountRiskPerTrade != new.AccountRiskPerTrade {
		w.log.Info().Float64("old", old.AccountRiskPerTrade).Float64("new", new.AccountRiskPerTrade).Msg("account_risk_per_trade changed")
	}
	if old.MaxPerSector != new.MaxPerSector {
		w.log.Info().Int("old", old.MaxPerSector).Int("new", new.MaxPerSector).Msg("max_per_sector changed")
	}
	if old.CircuitBreaker != new.CircuitBreaker {
		w.log.Info().
			Int("consecutive", new.CircuitBreaker.MaxConsecutiveFailures).
			Int("hourly", new.CircuitBreaker.MaxFailuresPerHour).
			Int("cooldown_min", new.CircuitBreaker.CooldownMinutes).
			Msg("circuit_breaker config changed")
	}
}
