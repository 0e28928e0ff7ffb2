package indicator

import (
	"context"
	"sync"

	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

// BarsPerHour is the bar count per hour at the engine's 15-minute
// resolution, used to size the momentum lookback windows.
const BarsPerHour = 4

// Service computes and caches one Snapshot per (symbol, latestBarTs). It is
// stateless across cycles other than this optimization: a stale cache entry
// is never returned, it is simply recomputed when the newest bar advances.
type Service struct {
	provider marketdata.Provider
	lookback int

	mu    sync.Mutex
	cache map[string]Snapshot
}

// NewService builds a Service backed by provider, requesting `lookback`
// bars per symbol (must be >= marketdata.MinLookback).
func NewService(provider marketdata.Provider, lookback int) *Service {
	if lookback < marketdata.MinLookback {
		lookback = marketdata.MinLookback
	}
	return &Service{
		provider: provider,
		lookback: lookback,
		cache:    make(map[string]Snapshot),
	}
}

// Snapshot fetches bars for symbol and returns the indicator snapshot along
// with the bars it was computed from, reusing the cached snapshot when the
// newest bar hasn't advanced. The bars are always freshly fetched even on a
// cache hit, since strategies need the actual window (for multi-bar
// confirmation), not just the indicators distilled from it.
func (s *Service) Snapshot(ctx context.Context, symbol string) (Snapshot, []marketdata.Bar, error) {
	bars, err := s.provider.GetBars(ctx, symbol, s.lookback, marketdata.Resolution15m)
	if err != nil {
		return Snapshot{}, nil, err
	}

	latestTs := bars[len(bars)-1].Ts.Unix()

	s.mu.Lock()
	cached, ok := s.cache[symbol]
	s.mu.Unlock()
	if ok && cached.LatestBarTs == latestTs {
		return cached, bars, nil
	}

	snap, err := Compute(symbol, bars, BarsPerHour)
	if err != nil {
		return Snapshot{}, nil, err
	}

	s.mu.Lock()
	s.cache[symbol] = snap
	s.mu.Unlock()
	return snap, bars, nil
}
