// Package engine wires every other component into the session lifecycle
// (C11): wait for open, recover, run the per-cycle worker pool, flatten at
// session end, emit the EOD report, sleep.
package engine

import (
	"context"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/broker"
	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

// BrokerProvider adapts a broker.Broker into a marketdata.Provider. The two
// interfaces disagree on parameter order and on what "stale" means: the
// broker just returns whatever bars it has, so this adapter is where the
// staleness check spec.md assigns to the Market Data Provider actually
// lives.
type BrokerProvider struct {
	b   broker.Broker
	now func() time.Time
}

func NewBrokerProvider(b broker.Broker, now func() time.Time) *BrokerProvider {
	return &BrokerProvider{b: b, now: now}
}

func (p *BrokerProvider) GetBars(ctx context.Context, symbol string, lookback int, res marketdata.Resolution) ([]marketdata.Bar, error) {
	bars, err := p.b.Bars(ctx, symbol, res, lookback)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, &marketdata.NoDataError{Symbol: symbol, Got: 0, Required: marketdata.MinLookback}
	}
	newest := bars[len(bars)-1].Ts
	if age := p.now().Sub(newest); age > marketdata.MaxAge(res) {
		return nil, &marketdata.StaleDataError{Symbol: symbol, NewestT: newest, MaxAge: marketdata.MaxAge(res)}
	}
	return bars, nil
}

func (p *BrokerProvider) GetLastQuote(ctx context.Context, symbol string) (marketdata.Quote, error) {
	q, err := p.b.Quote(ctx, symbol)
	if err != nil {
		return marketdata.Quote{}, err
	}
	return marketdata.Quote{Symbol: symbol, Bid: q.Bid, Ask: q.Ask, Last: q.Last, Ts: q.Ts}, nil
}
