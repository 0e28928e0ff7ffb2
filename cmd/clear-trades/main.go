// Package main - clear-trades deletes today's completed trades and any
// stray open-position snapshots, giving an operator a clean slate without
// dropping history from other sessions. Adapted from the teacher's raw
// DELETE-statement tool to go through internal/storage.Store instead of
// a hardcoded trades table, so it works against either backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/storage"
)

func main() {
	confirm := flag.Bool("confirm", false, "confirm deletion (must be explicit)")
	dsn := flag.String("dsn", "", "Postgres DSN; empty uses the bolt file at -bolt-path")
	boltPath := flag.String("bolt-path", "trader.db", "bolt store file used when -dsn is empty")
	flag.Parse()

	today := time.Now().Format("2006-01-02")

	if !*confirm {
		fmt.Println("SAFETY CHECK - must confirm deletion")
		fmt.Println()
		fmt.Println("This will delete all completed trades from today and every")
		fmt.Println("open-position snapshot currently on disk:")
		fmt.Println()
		fmt.Printf("Date: %s\n", today)
		fmt.Println()
		fmt.Println("To proceed, run:")
		fmt.Println("  clear-trades --confirm")
		fmt.Println()
		os.Exit(0)
	}

	ctx := context.Background()
	store, err := openStore(ctx, *dsn, *boltPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24 * time.Hour)

	fmt.Printf("Deleting all data from: %s\n", today)
	fmt.Println()

	tradesRemoved, err := store.DeleteCompletedTrades(ctx, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to delete completed trades: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  removed %d completed trades\n", tradesRemoved)

	positionsRemoved, err := store.ClearOpenPositions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to clear open positions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  removed %d open position snapshots\n", positionsRemoved)

	fmt.Println()
	fmt.Println("Clean slate ready. You can now run:")
	fmt.Println("  engine --mode market")
	fmt.Println()
}

func openStore(ctx context.Context, dsn, boltPath string) (storage.Store, error) {
	if dsn == "" {
		return storage.NewBoltStore(boltPath)
	}
	return storage.NewPostgresStore(ctx, dsn)
}
