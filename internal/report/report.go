// Package report implements the EOD Reporter (C12): per-trade records are
// already durable in internal/storage; this package only aggregates them
// into the per-symbol and per-(symbol, hour) schema spec.md §6 defines.
package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/position"
	"github.com/nitinkhare/intradaytrader/internal/storage"
)

// SymbolSummary is one row of the per-session record set (spec.md §6):
// `symbol, trades, wins, losses, winRatePct, netPnL, avgPnL, avgRMultiple,
// avgHoldSec, maxDrawdown`.
type SymbolSummary struct {
	Symbol       string
	Trades       int
	Wins         int
	Losses       int
	WinRatePct   float64
	NetPnL       float64
	AvgPnL       float64
	AvgRMultiple float64
	AvgHoldSec   float64
	MaxDrawdown  float64
}

// HourBucket is one row of the per-(symbol, hour) time-bucket table.
type HourBucket struct {
	Symbol string
	Hour   int // 0-23, ET hour-of-day the trade entered
	Trades int
	NetPnL float64
}

// StrategySummary is one row of the per-strategy performance breakdown —
// the same grouping the teacher's analytics package computed per symbol,
// regrouped here by the Strategy that produced the entry signal.
type StrategySummary struct {
	Strategy   string
	Trades     int
	Wins       int
	Losses     int
	WinRatePct float64
	NetPnL     float64
	AvgPnL     float64
}

// EODReport is the full end-of-session record set.
type EODReport struct {
	From, To      time.Time
	TotalTrades   int
	WinningTrades int
	NetPnL        float64
	WinRate       float64

	// Session-wide performance metrics (teacher: internal/analytics).
	GrossProfit    float64
	GrossLoss      float64
	ProfitFactor   float64 // gross profit / gross loss; +Inf if no losses and some profit
	MaxDrawdown    float64 // absolute, against the session's own cumulative-P&L peak
	MaxDrawdownPct float64
	SharpeRatio    float64 // annualized over trades (assumes 252 trading sessions/year)

	Symbols     []SymbolSummary
	HourBuckets []HourBucket
	Strategies  []StrategySummary
}

var etLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}()

// Build loads every CompletedTrade in [from, to) from store and aggregates
// it into an EODReport. A session with zero trades still returns a valid,
// empty report rather than an error.
func Build(ctx context.Context, store storage.Store, from, to time.Time) (EODReport, error) {
	trades, err := store.ListCompletedTrades(ctx, from, to)
	if err != nil {
		return EODReport{}, err
	}

	rep := EODReport{From: from, To: to}
	if len(trades) == 0 {
		return rep, nil
	}

	bySymbol := make(map[string][]position.CompletedTrade)
	byHour := make(map[hourKey]*HourBucket)
	byStrategy := make(map[string]*StrategySummary)

	for _, t := range trades {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)

		rep.TotalTrades++
		rep.NetPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			rep.WinningTrades++
			rep.GrossProfit += t.RealizedPnL
		} else if t.RealizedPnL < 0 {
			rep.GrossLoss += -t.RealizedPnL
		}

		hour := t.EntryTs.In(etLocation).Hour()
		key := hourKey{symbol: t.Symbol, hour: hour}
		bucket, ok := byHour[key]
		if !ok {
			bucket = &HourBucket{Symbol: t.Symbol, Hour: hour}
			byHour[key] = bucket
		}
		bucket.Trades++
		bucket.NetPnL += t.RealizedPnL

		strat, ok := byStrategy[t.Strategy]
		if !ok {
			strat = &StrategySummary{Strategy: t.Strategy}
			byStrategy[t.Strategy] = strat
		}
		strat.Trades++
		strat.NetPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			strat.Wins++
		} else if t.RealizedPnL < 0 {
			strat.Losses++
		}
	}

	if rep.TotalTrades > 0 {
		rep.WinRate = float64(rep.WinningTrades) / float64(rep.TotalTrades) * 100
	}
	switch {
	case rep.GrossLoss > 0:
		rep.ProfitFactor = rep.GrossProfit / rep.GrossLoss
	case rep.GrossProfit > 0:
		rep.ProfitFactor = math.Inf(1)
	}
	rep.MaxDrawdown, rep.MaxDrawdownPct = sessionDrawdown(trades)
	rep.SharpeRatio = sharpeRatio(trades)

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		rep.Symbols = append(rep.Symbols, summarize(sym, bySymbol[sym]))
	}

	buckets := make([]HourBucket, 0, len(byHour))
	for _, b := range byHour {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Symbol != buckets[j].Symbol {
			return buckets[i].Symbol < buckets[j].Symbol
		}
		return buckets[i].Hour < buckets[j].Hour
	})
	rep.HourBuckets = buckets

	strategies := make([]string, 0, len(byStrategy))
	for name := range byStrategy {
		strategies = append(strategies, name)
	}
	sort.Strings(strategies)
	for _, name := range strategies {
		strat := byStrategy[name]
		if strat.Trades > 0 {
			strat.WinRatePct = float64(strat.Wins) / float64(strat.Trades) * 100
			strat.AvgPnL = strat.NetPnL / float64(strat.Trades)
		}
		rep.Strategies = append(rep.Strategies, *strat)
	}

	return rep, nil
}

// sessionDrawdown walks trades (assumed ExitTs-ascending, as
// ListCompletedTrades guarantees) as a single cumulative-P&L equity curve
// starting at zero, returning the largest peak-to-trough drop and that
// drop as a percentage of the peak it fell from.
func sessionDrawdown(trades []position.CompletedTrade) (absolute, pct float64) {
	equity := 0.0
	peak := 0.0
	for _, t := range trades {
		equity += t.RealizedPnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > absolute {
			absolute = dd
			if peak > 0 {
				pct = (dd / peak) * 100
			}
		}
	}
	return absolute, pct
}

// sharpeRatio computes the annualized Sharpe ratio (zero risk-free rate,
// 252-trading-session year — the teacher's convention) over the session's
// sequence of per-trade realized P&L, treated as the return series.
func sharpeRatio(trades []position.CompletedTrade) float64 {
	if len(trades) < 2 {
		return 0
	}

	var sum float64
	for _, t := range trades {
		sum += t.RealizedPnL
	}
	mean := sum / float64(len(trades))

	var variance float64
	for _, t := range trades {
		diff := t.RealizedPnL - mean
		variance += diff * diff
	}
	variance /= float64(len(trades) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	return (mean / stdDev) * math.Sqrt(252)
}

type hourKey struct {
	symbol string
	hour   int
}

// summarize computes one symbol's SymbolSummary row, including its own
// drawdown-from-equity-curve pass over that symbol's trades in exit order.
func summarize(symbol string, trades []position.CompletedTrade) SymbolSummary {
	sorted := make([]position.CompletedTrade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ExitTs.Before(sorted[j].ExitTs) })

	s := SymbolSummary{Symbol: symbol}
	var totalHoldSec float64
	var totalRMultiple float64
	var rMultipleCount int

	equity := 0.0
	peak := 0.0
	for _, t := range sorted {
		s.Trades++
		s.NetPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			s.Wins++
		} else if t.RealizedPnL < 0 {
			s.Losses++
		}

		totalHoldSec += t.ExitTs.Sub(t.EntryTs).Seconds()

		if t.RiskAmount > 0 {
			totalRMultiple += t.RealizedPnL / t.RiskAmount
			rMultipleCount++
		}

		equity += t.RealizedPnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}

	if s.Trades > 0 {
		s.WinRatePct = float64(s.Wins) / float64(s.Trades) * 100
		s.AvgPnL = s.NetPnL / float64(s.Trades)
		s.AvgHoldSec = totalHoldSec / float64(s.Trades)
	}
	if rMultipleCount > 0 {
		s.AvgRMultiple = totalRMultiple / float64(rMultipleCount)
	}
	return s
}
