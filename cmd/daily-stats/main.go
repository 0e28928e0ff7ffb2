// Package main - daily-stats prints the EOD report for a single session
// date, reading from the same internal/storage backend the engine writes
// to. It replaces the teacher's raw-SQL trades-table query with
// internal/report.Build, so the figures always match what internal/engine
// emits at session end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/report"
	"github.com/nitinkhare/intradaytrader/internal/storage"
)

const (
	reset  = "\033[0m"
	red    = "\033[0;31m"
	green  = "\033[0;32m"
	yellow = "\033[1;33m"
	blue   = "\033[0;34m"
	cyan   = "\033[0;36m"
)

func main() {
	dateFlag := flag.String("date", "", "date in YYYY-MM-DD format (defaults to today)")
	dsn := flag.String("dsn", "", "Postgres DSN; empty uses the bolt file at -bolt-path")
	boltPath := flag.String("bolt-path", "trader.db", "bolt store file used when -dsn is empty")
	flag.Parse()

	date := time.Now()
	if *dateFlag != "" {
		d, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid date format, use YYYY-MM-DD")
			os.Exit(1)
		}
		date = d
	}

	ctx := context.Background()
	store, err := openStore(ctx, *dsn, *boltPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	to := from.Add(24 * time.Hour)

	rep, err := report.Build(ctx, store, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build report: %v\n", err)
		os.Exit(1)
	}

	displaySummary(date.Format("2006-01-02"), rep)
	if len(rep.Symbols) > 0 {
		displaySymbols(rep.Symbols)
	}
	if len(rep.Strategies) > 0 {
		displayStrategies(rep.Strategies)
	}
}

func openStore(ctx context.Context, dsn, boltPath string) (storage.Store, error) {
	if dsn == "" {
		return storage.NewBoltStore(boltPath)
	}
	return storage.NewPostgresStore(ctx, dsn)
}

func displaySummary(date string, rep report.EODReport) {
	fmt.Printf("%s╔═══════════════════════════════════════════════════════════╗%s\n", cyan, reset)
	fmt.Printf("%s║           DAILY TRADING STATISTICS                         ║%s\n", cyan, reset)
	fmt.Printf("%s║           Date: %-44s║%s\n", cyan, date, reset)
	fmt.Printf("%s╚═══════════════════════════════════════════════════════════╝%s\n", cyan, reset)
	fmt.Println()

	if rep.TotalTrades == 0 {
		fmt.Printf("%sNo trades found for %s%s\n\n", yellow, date, reset)
		return
	}

	pnlColor := green
	if rep.NetPnL < 0 {
		pnlColor = red
	}

	fmt.Printf("%sSUMMARY%s\n", blue, reset)
	fmt.Printf("%s%s%s\n", blue, strings.Repeat("-", 40), reset)
	fmt.Printf("  %sTotal trades:%s     %d\n", yellow, reset, rep.TotalTrades)
	fmt.Printf("  %sWinning trades:%s   %d\n", yellow, reset, rep.WinningTrades)
	fmt.Printf("  %sLosing trades:%s    %d\n", yellow, reset, rep.TotalTrades-rep.WinningTrades)
	fmt.Printf("  %sWin rate:%s         %.1f%%\n", yellow, reset, rep.WinRate)
	fmt.Printf("  %sNet P&L:%s          %s%.2f%s\n", yellow, reset, pnlColor, rep.NetPnL, reset)
	fmt.Printf("  %sProfit factor:%s    %.2f\n", yellow, reset, rep.ProfitFactor)
	fmt.Printf("  %sMax drawdown:%s     %.2f (%.1f%%)\n", yellow, reset, rep.MaxDrawdown, rep.MaxDrawdownPct)
	fmt.Printf("  %sSharpe ratio:%s     %.2f\n", yellow, reset, rep.SharpeRatio)
	fmt.Println()
}

func displaySymbols(symbols []report.SymbolSummary) {
	fmt.Printf("%sBY SYMBOL%s\n", blue, reset)
	fmt.Printf("%s%s%s\n", blue, strings.Repeat("-", 80), reset)
	fmt.Printf("%-8s %-7s %-6s %-6s %-9s %-9s %-9s %-9s %-9s\n",
		"Symbol", "Trades", "Wins", "Losses", "WinRate", "NetPnL", "AvgR", "AvgHold", "MaxDD")
	for _, s := range symbols {
		pnlColor := green
		if s.NetPnL < 0 {
			pnlColor = red
		}
		fmt.Printf("%-8s %-7d %-6d %-6d %-8.1f%% %s%-9.2f%s %-9.2f %-8.0fs %-9.2f\n",
			s.Symbol, s.Trades, s.Wins, s.Losses, s.WinRatePct, pnlColor, s.NetPnL, reset, s.AvgRMultiple, s.AvgHoldSec, s.MaxDrawdown)
	}
	fmt.Println()
}

func displayStrategies(strategies []report.StrategySummary) {
	fmt.Printf("%sBY STRATEGY%s\n", blue, reset)
	fmt.Printf("%s%s%s\n", blue, strings.Repeat("-", 50), reset)
	fmt.Printf("%-14s %-7s %-6s %-6s %-9s %-9s\n", "Strategy", "Trades", "Wins", "Losses", "WinRate", "NetPnL")
	for _, s := range strategies {
		pnlColor := green
		if s.NetPnL < 0 {
			pnlColor = red
		}
		fmt.Printf("%-14s %-7d %-6d %-6d %-8.1f%% %s%-9.2f%s\n",
			s.Strategy, s.Trades, s.Wins, s.Losses, s.WinRatePct, pnlColor, s.NetPnL, reset)
	}
	fmt.Println()
}
