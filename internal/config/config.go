// Package config provides application-wide configuration management.
// All configuration is loaded from a JSON file, then environment
// variables override the credentials-adjacent fields. No configuration
// is hardcoded in strategy, risk, or broker logic.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/risk"
)

// Mode controls the live-mode safety gate. TradingMode is independent of
// DryRun: a paper-mode run can still point at a live-data broker, and a
// live-mode run can still be started with DryRun=true to observe a real
// feed without submitting real orders.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// SymbolPolicyConfig is the on-disk shape of policy.Policy (JSON-tagged
// separately so the wire format doesn't depend on the policy package's
// field names).
type SymbolPolicyConfig struct {
	StopPct              float64 `json:"stopPct"`
	TargetPct            float64 `json:"targetPct"`
	TrailActivationPct   float64 `json:"trailActivationPct"`
	TrailDistancePct     float64 `json:"trailDistancePct"`
	SizeMultiplier       float64 `json:"sizeMultiplier"`
	ConfidenceMultiplier float64 `json:"confidenceMultiplier"`
	Profile              string  `json:"profile"`
}

func (s SymbolPolicyConfig) toPolicy(symbol string) policy.Policy {
	return policy.Policy{
		Symbol:               symbol,
		StopPct:              s.StopPct,
		TargetPct:            s.TargetPct,
		TrailActivationPct:   s.TrailActivationPct,
		TrailDistancePct:     s.TrailDistancePct,
		SizeMultiplier:       s.SizeMultiplier,
		ConfidenceMultiplier: s.ConfidenceMultiplier,
		Profile:              policy.VolatilityProfile(s.Profile),
	}
}

// Config holds every recognized option from spec.md §6's configuration
// surface, plus the ambient fields (broker selection, credentials,
// database) the distilled spec doesn't name but a running engine needs.
// Loaded once at startup and passed as read-only to all components.
type Config struct {
	ActiveBroker string `json:"activeBroker"`
	TradingMode  Mode   `json:"tradingMode"`

	// DryRun: if true, orders are logged and routed to the in-process
	// paper-fill simulator instead of ActiveBroker; the Position Store
	// still updates from the synthetic fill (spec.md §6).
	DryRun bool `json:"dryRun"`

	Watchlist            []string `json:"watchlist"`
	CycleIntervalSeconds int      `json:"cycleIntervalSeconds"`
	MinConfidence        float64  `json:"minConfidence"`

	MaxPositionNotional    float64 `json:"maxPositionNotional"`
	MaxShortExposure       float64 `json:"maxShortExposure"`
	MaxConcurrentPositions int     `json:"maxConcurrentPositions"`
	MaxDailyTrades         int     `json:"maxDailyTrades"`
	DailyLossCap           float64 `json:"dailyLossCap"`
	AccountRiskPerTrade    float64 `json:"accountRiskPerTrade"`

	// MaxPerSector is an optional, config-gated extra guardrail beyond
	// spec.md's five required Risk Gate limits (0 disables it).
	MaxPerSector int `json:"maxPerSector"`

	TradingWindowStart string `json:"tradingWindowStart"` // "HH:MM" ET
	TradingWindowEnd   string `json:"tradingWindowEnd"`   // "HH:MM" ET

	ShutdownGraceSeconds int `json:"shutdownGraceSeconds"`
	OrderTimeoutSeconds  int `json:"orderTimeoutSeconds"`
	DataTimeoutSeconds   int `json:"dataTimeoutSeconds"`
	MaxRetries           int `json:"maxRetries"`

	SymbolPolicies map[string]SymbolPolicyConfig `json:"symbolPolicies"`

	CircuitBreaker risk.CircuitBreakerConfig `json:"circuitBreaker"`

	// BrokerConfig carries the broker-specific JSON blob (API keys,
	// endpoints) keyed by broker name; kept opaque to this package.
	BrokerConfig map[string]json.RawMessage `json:"brokerConfig"`

	// DatabaseURL is the Postgres DSN for internal/storage. Empty selects
	// BoltStore and is only accepted when DryRun is true.
	DatabaseURL string `json:"databaseURL"`
}

// RiskLimits projects the Risk Gate's limit fields out of Config.
func (c *Config) RiskLimits() risk.Limits {
	return risk.Limits{
		MaxPositionNotional:    c.MaxPositionNotional,
		MaxConcurrentPositions: c.MaxConcurrentPositions,
		MaxShortExposure:       c.MaxShortExposure,
		DailyLossCap:           c.DailyLossCap,
		MaxDailyTrades:         c.MaxDailyTrades,
		MaxPerSector:           c.MaxPerSector,
	}
}

// PolicyTable converts SymbolPolicies into a policy.Table.
func (c *Config) PolicyTable() *policy.Table {
	entries := make(map[string]policy.Policy, len(c.SymbolPolicies))
	for symbol, spc := range c.SymbolPolicies {
		entries[symbol] = spc.toPolicy(symbol)
	}
	return policy.NewTable(entries)
}

// applyDefaults fills every field spec.md §6 names a default for, but
// only when the loaded value is the zero value — an explicit 0 in the
// file is indistinguishable from "not set" for these fields, which
// matches spec.md's defaults being a fallback, not an override.
func (c *Config) applyDefaults() {
	if c.CycleIntervalSeconds == 0 {
		c.CycleIntervalSeconds = 60
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = 75
	}
	if c.AccountRiskPerTrade == 0 {
		c.AccountRiskPerTrade = 0.01
	}
	if c.TradingWindowStart == "" {
		c.TradingWindowStart = "10:00"
	}
	if c.TradingWindowEnd == "" {
		c.TradingWindowEnd = "15:30"
	}
	if c.ShutdownGraceSeconds == 0 {
		c.ShutdownGraceSeconds = 30
	}
	if c.MaxDailyTrades == 0 {
		c.MaxDailyTrades = 6
	}
	if c.DataTimeoutSeconds == 0 {
		c.DataTimeoutSeconds = 5
	}
	if c.OrderTimeoutSeconds == 0 {
		c.OrderTimeoutSeconds = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Load reads configuration from a JSON file, applies environment
// variable overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", absPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}

	if v := os.Getenv("ALGO_TRADING_MODE"); v != "" {
		cfg.TradingMode = Mode(v)
	}
	if v := os.Getenv("ALGO_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ALGO_ACTIVE_BROKER"); v != "" {
		cfg.ActiveBroker = v
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are present and sane.
func (c *Config) Validate() error {
	if c.ActiveBroker == "" {
		return fmt.Errorf("active_broker is required")
	}
	if c.TradingMode != ModePaper && c.TradingMode != ModeLive {
		return fmt.Errorf("trading_mode must be 'paper' or 'live', got %q", c.TradingMode)
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must contain at least one symbol")
	}
	if c.CycleIntervalSeconds <= 0 {
		return fmt.Errorf("cycle_interval_seconds must be positive, got %d", c.CycleIntervalSeconds)
	}
	if c.MinConfidence <= 0 || c.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be in (0, 100], got %f", c.MinConfidence)
	}
	if c.MaxPositionNotional <= 0 {
		return fmt.Errorf("max_position_notional must be positive, got %f", c.MaxPositionNotional)
	}
	if c.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("max_concurrent_positions must be positive, got %d", c.MaxConcurrentPositions)
	}
	if c.DailyLossCap <= 0 {
		return fmt.Errorf("daily_loss_cap must be positive, got %f", c.DailyLossCap)
	}
	if c.AccountRiskPerTrade <= 0 || c.AccountRiskPerTrade > 1 {
		return fmt.Errorf("account_risk_per_trade must be in (0, 1], got %f", c.AccountRiskPerTrade)
	}
	if !c.DryRun && c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required unless dry_run is true")
	}
	for symbol, sp := range c.SymbolPolicies {
		if sp.StopPct <= 0 || sp.StopPct > 0.05 || sp.TargetPct <= 0 || sp.TargetPct > 0.05 {
			return fmt.Errorf("symbol_policies[%s]: stopPct and targetPct must be in (0, 0.05]", symbol)
		}
		if sp.TrailActivationPct <= 0 || sp.TrailActivationPct >= sp.TargetPct || sp.TrailDistancePct <= 0 || sp.TrailDistancePct >= sp.TargetPct {
			return fmt.Errorf("symbol_policies[%s]: trailActivationPct and trailDistancePct must be in (0, targetPct)", symbol)
		}
		if sp.SizeMultiplier < 0.5 || sp.SizeMultiplier > 2.0 || sp.ConfidenceMultiplier < 0.9 || sp.ConfidenceMultiplier > 1.1 {
			return fmt.Errorf("symbol_policies[%s]: sizeMultiplier must be in [0.5, 2.0] and confidenceMultiplier in [0.90, 1.10]", symbol)
		}
	}

	if c.TradingMode == ModeLive {
		if err := c.validateLiveMode(); err != nil {
			return fmt.Errorf("live mode: %w", err)
		}
	}

	return nil
}

// validateLiveMode enforces extra safety checks when running with real money.
func (c *Config) validateLiveMode() error {
	if c.BrokerConfig == nil {
		return fmt.Errorf("broker_config is required for live trading")
	}
	if _, ok := c.BrokerConfig[c.ActiveBroker]; !ok {
		return fmt.Errorf("broker_config[%q] is required for live trading", c.ActiveBroker)
	}

	if c.MaxConcurrentPositions > 5 {
		return fmt.Errorf("max_concurrent_positions cannot exceed 5 in live mode (got %d)", c.MaxConcurrentPositions)
	}
	if c.AccountRiskPerTrade > 0.02 {
		return fmt.Errorf("account_risk_per_trade cannot exceed 0.02 in live mode (got %f)", c.AccountRiskPerTrade)
	}

	return nil
}
