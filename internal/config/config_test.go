package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

const validConfigJSON = `{
	"activeBroker": "paper",
	"tradingMode": "paper",
	"watchlist": ["SOFI", "AAPL"],
	"maxPositionNotional": 10000,
	"maxShortExposure": 5000,
	"maxConcurrentPositions": 5,
	"maxDailyTrades": 6,
	"dailyLossCap": 2000,
	"databaseURL": "postgres://localhost/test"
}`

func TestConfig_LoadValid(t *testing.T) {
	path := writeTestConfig(t, validConfigJSON)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ActiveBroker != "paper" {
		t.Errorf("expected paper, got %s", cfg.ActiveBroker)
	}
	if cfg.TradingMode != ModePaper {
		t.Errorf("expected paper, got %s", cfg.TradingMode)
	}
	if len(cfg.Watchlist) != 2 {
		t.Errorf("expected 2 symbols, got %v", cfg.Watchlist)
	}
}

func TestConfig_AppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, validConfigJSON)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CycleIntervalSeconds != 60 {
		t.Errorf("expected default cycle_interval_seconds=60, got %d", cfg.CycleIntervalSeconds)
	}
	if cfg.MinConfidence != 75 {
		t.Errorf("expected default min_confidence=75, got %f", cfg.MinConfidence)
	}
	if cfg.AccountRiskPerTrade != 0.01 {
		t.Errorf("expected default account_risk_per_trade=0.01, got %f", cfg.AccountRiskPerTrade)
	}
	if cfg.TradingWindowStart != "10:00" || cfg.TradingWindowEnd != "15:30" {
		t.Errorf("expected default trading window 10:00/15:30, got %s/%s", cfg.TradingWindowStart, cfg.TradingWindowEnd)
	}
	if cfg.ShutdownGraceSeconds != 30 {
		t.Errorf("expected default shutdown_grace_seconds=30, got %d", cfg.ShutdownGraceSeconds)
	}
	if cfg.DataTimeoutSeconds != 5 {
		t.Errorf("expected default data_timeout_seconds=5, got %d", cfg.DataTimeoutSeconds)
	}
	if cfg.OrderTimeoutSeconds != 10 {
		t.Errorf("expected default order_timeout_seconds=10, got %d", cfg.OrderTimeoutSeconds)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected default max_retries=3, got %d", cfg.MaxRetries)
	}
}

func TestConfig_RejectsInvalidMode(t *testing.T) {
	path := writeTestConfig(t, `{
		"activeBroker": "paper",
		"tradingMode": "invalid",
		"watchlist": ["SOFI"],
		"maxPositionNotional": 10000,
		"maxConcurrentPositions": 5,
		"dailyLossCap": 2000,
		"databaseURL": "postgres://localhost/test"
	}`)

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid trading mode")
	}
}

func TestConfig_RejectsEmptyWatchlist(t *testing.T) {
	path := writeTestConfig(t, `{
		"activeBroker": "paper",
		"tradingMode": "paper",
		"watchlist": [],
		"maxPositionNotional": 10000,
		"maxConcurrentPositions": 5,
		"dailyLossCap": 2000,
		"databaseURL": "postgres://localhost/test"
	}`)

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for empty watchlist")
	}
}

func TestConfig_DryRunSkipsDatabaseURLRequirement(t *testing.T) {
	path := writeTestConfig(t, `{
		"activeBroker": "paper",
		"tradingMode": "paper",
		"dryRun": true,
		"watchlist": ["SOFI"],
		"maxPositionNotional": 10000,
		"maxConcurrentPositions": 5,
		"dailyLossCap": 2000
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.DryRun {
		t.Error("expected DryRun=true")
	}
}

func TestConfig_EnvOverride(t *testing.T) {
	path := writeTestConfig(t, `{
		"activeBroker": "paper",
		"tradingMode": "paper",
		"watchlist": ["SOFI"],
		"maxPositionNotional": 10000,
		"maxConcurrentPositions": 5,
		"dailyLossCap": 2000,
		"accountRiskPerTrade": 0.01,
		"brokerConfig": {"paper": {}},
		"databaseURL": "postgres://localhost/test"
	}`)

	os.Setenv("ALGO_TRADING_MODE", "live")
	defer os.Unsetenv("ALGO_TRADING_MODE")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TradingMode != ModeLive {
		t.Errorf("expected env override to live, got %s", cfg.TradingMode)
	}
}

// ────────────────────────────────────────────────────────────────────
// Live mode validation tests
// ────────────────────────────────────────────────────────────────────

func validLiveConfig() Config {
	return Config{
		ActiveBroker:           "paper",
		TradingMode:            ModeLive,
		Watchlist:              []string{"SOFI"},
		MaxPositionNotional:    10000,
		MaxConcurrentPositions: 5,
		DailyLossCap:           2000,
		AccountRiskPerTrade:    0.01,
		CycleIntervalSeconds:   60,
		MinConfidence:          75,
		BrokerConfig: map[string]json.RawMessage{
			"paper": json.RawMessage(`{}`),
		},
		DatabaseURL: "postgres://localhost/test",
	}
}

func TestLiveMode_RequiresBrokerConfig(t *testing.T) {
	cfg := validLiveConfig()
	cfg.BrokerConfig = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when broker_config is nil in live mode")
	}
	if !strings.Contains(err.Error(), "broker_config") {
		t.Errorf("error should mention broker_config, got: %v", err)
	}
}

func TestLiveMode_RequiresActiveBrokerInConfig(t *testing.T) {
	cfg := validLiveConfig()
	cfg.BrokerConfig = map[string]json.RawMessage{
		"other_broker": json.RawMessage(`{}`),
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when active broker not in broker_config")
	}
	if !strings.Contains(err.Error(), "paper") {
		t.Errorf("error should mention active broker name, got: %v", err)
	}
}

func TestLiveMode_MaxConcurrentPositionsCap(t *testing.T) {
	cfg := validLiveConfig()
	cfg.MaxConcurrentPositions = 10

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when max_concurrent_positions > 5 in live mode")
	}
	if !strings.Contains(err.Error(), "max_concurrent_positions") {
		t.Errorf("error should mention max_concurrent_positions, got: %v", err)
	}
}

func TestLiveMode_AccountRiskPerTradeCap(t *testing.T) {
	cfg := validLiveConfig()
	cfg.AccountRiskPerTrade = 0.05

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when account_risk_per_trade > 0.02 in live mode")
	}
	if !strings.Contains(err.Error(), "account_risk_per_trade") {
		t.Errorf("error should mention account_risk_per_trade, got: %v", err)
	}
}

func TestLiveMode_ValidConfigPasses(t *testing.T) {
	cfg := validLiveConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid live config should pass validation, got: %v", err)
	}
}

func TestPaperMode_SkipsLiveChecks(t *testing.T) {
	cfg := Config{
		ActiveBroker:           "paper",
		TradingMode:            ModePaper,
		Watchlist:              []string{"SOFI"},
		MaxPositionNotional:    10000,
		MaxConcurrentPositions: 25, // would fail live mode, fine for paper
		DailyLossCap:           2000,
		AccountRiskPerTrade:    0.10, // would fail live mode, fine for paper
		CycleIntervalSeconds:   60,
		MinConfidence:          75,
		DatabaseURL:            "postgres://localhost/test",
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("paper mode should not enforce live mode caps, got: %v", err)
	}
}

// ────────────────────────────────────────────────────────────────────
// Policy/risk projection tests
// ────────────────────────────────────────────────────────────────────

func TestConfig_PolicyTableBuildsFromSymbolPolicies(t *testing.T) {
	cfg := Config{
		SymbolPolicies: map[string]SymbolPolicyConfig{
			"SOFI": {StopPct: 0.02, TargetPct: 0.05, SizeMultiplier: 1.0, ConfidenceMultiplier: 1.0, Profile: "HighVolatility"},
		},
	}

	table := cfg.PolicyTable()
	pol := table.Get("SOFI")
	if pol.StopPct != 0.02 || pol.Symbol != "SOFI" {
		t.Fatalf("unexpected policy: %+v", pol)
	}
}

func TestConfig_RiskLimitsProjection(t *testing.T) {
	cfg := Config{
		MaxPositionNotional:    10000,
		MaxConcurrentPositions: 5,
		MaxShortExposure:       5000,
		DailyLossCap:           2000,
		MaxDailyTrades:         6,
		MaxPerSector:           3,
	}

	limits := cfg.RiskLimits()
	if limits.MaxPositionNotional != 10000 || limits.MaxPerSector != 3 {
		t.Fatalf("unexpected limits: %+v", limits)
	}
}
