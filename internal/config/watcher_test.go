package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func newTestWatcher(t *testing.T, path string, initial *Config) *Watcher {
	t.Helper()
	w := NewWatcher(path, initial, zerolog.Nop())
	w.interval = 20 * time.Millisecond
	return w
}

func TestWatcher_ReloadsOnRiskFieldChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfigFile(t, path, validConfigJSON)

	initial, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newTestWatcher(t, path, initial)
	changed := make(chan *Config, 1)
	w.OnChange(func(_, new *Config) { changed <- new })

	if err := w.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond) // ensure mtime strictly advances
	writeConfigFile(t, path, `{
		"activeBroker": "paper",
		"tradingMode": "paper",
		"watchlist": ["SOFI", "AAPL"],
		"maxPositionNotional": 10000,
		"maxShortExposure": 5000,
		"maxConcurrentPositions": 5,
		"maxDailyTrades": 6,
		"dailyLossCap": 2000,
		"minConfidence": 80,
		"databaseURL": "postgres://localhost/test"
	}`)

	select {
	case newCfg := <-changed:
		if newCfg.MinConfidence != 80 {
			t.Errorf("expected min_confidence=80, got %f", newCfg.MinConfidence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload callback")
	}
}

func TestWatcher_IgnoresStructuralFieldEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfigFile(t, path, validConfigJSON)

	initial, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newTestWatcher(t, path, initial)
	called := make(chan struct{}, 1)
	w.OnChange(func(_, _ *Config) { called <- struct{}{} })

	if err := w.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)
	// Only the watchlist changes — not a reloadable field.
	writeConfigFile(t, path, `{
		"activeBroker": "paper",
		"tradingMode": "paper",
		"watchlist": ["SOFI", "AAPL", "MSFT"],
		"maxPositionNotional": 10000,
		"maxShortExposure": 5000,
		"maxConcurrentPositions": 5,
		"maxDailyTrades": 6,
		"dailyLossCap": 2000,
		"databaseURL": "postgres://localhost/test"
	}`)

	select {
	case <-called:
		t.Fatal("callback fired for a non-reloadable field change")
	case <-time.After(200 * time.Millisecond):
		// expected: no callback
	}
}

func TestWatcher_Current(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfigFile(t, path, validConfigJSON)

	initial, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := newTestWatcher(t, path, initial)
	if w.Current().ActiveBroker != "paper" {
		t.Fatalf("unexpected current config: %+v", w.Current())
	}
}
