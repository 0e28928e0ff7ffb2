// Package main is the entry point for the intraday trading engine.
//
// The process:
//  1. Loads configuration
//  2. Initializes every component (broker, storage, clock, strategies, risk)
//  3. Runs the session lifecycle until signalled to stop
//
// Modes:
//   - "market": run the live session loop (wait for open, trade, flatten, sleep)
//   - "status": print current market/session status and exit
//   - "recover": run Position Recovery against the broker and print the result, then exit
//   - "report":  build and print the EOD report for a given session date, then exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nitinkhare/intradaytrader/internal/broker"
	"github.com/nitinkhare/intradaytrader/internal/clock"
	"github.com/nitinkhare/intradaytrader/internal/confidence"
	"github.com/nitinkhare/intradaytrader/internal/config"
	"github.com/nitinkhare/intradaytrader/internal/engine"
	"github.com/nitinkhare/intradaytrader/internal/events"
	"github.com/nitinkhare/intradaytrader/internal/indicator"
	"github.com/nitinkhare/intradaytrader/internal/marketdata"
	"github.com/nitinkhare/intradaytrader/internal/order"
	"github.com/nitinkhare/intradaytrader/internal/position"
	"github.com/nitinkhare/intradaytrader/internal/report"
	"github.com/nitinkhare/intradaytrader/internal/risk"
	"github.com/nitinkhare/intradaytrader/internal/storage"
	"github.com/nitinkhare/intradaytrader/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to configuration file")
	mode := flag.String("mode", "status", "run mode: market | status | recover | report")
	confirmLive := flag.Bool("confirm-live", false, "required safety flag to run in live trading mode")
	reportDate := flag.String("date", "", "session date for -mode=report, YYYY-MM-DD (defaults to today)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "cmd/engine").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Info().Str("broker", cfg.ActiveBroker).Str("mode", string(cfg.TradingMode)).
		Bool("dryRun", cfg.DryRun).Msg("config loaded")

	if cfg.TradingMode == config.ModeLive {
		if !liveModeConfirmed(*confirmLive) {
			printLiveModeBlocked(*confirmLive)
			os.Exit(1)
		}
		logger.Warn().Msg("LIVE MODE ACTIVE — real orders will be placed with the active broker")
	} else {
		logger.Info().Msg("PAPER MODE — simulated orders only, no real money at risk")
	}

	activeBroker := buildBroker(cfg, logger)
	store := buildStore(context.Background(), cfg, logger)
	defer store.Close()

	eng, riskGate, breaker := buildEngine(cfg, activeBroker, store, logger)

	switch *mode {
	case "status":
		runStatus(context.Background(), activeBroker, cfg, logger)

	case "recover":
		runRecover(context.Background(), eng, logger)

	case "report":
		runReport(context.Background(), store, *reportDate, logger)

	case "market":
		runMarket(eng, riskGate, breaker, *configPath, cfg, logger)

	default:
		logger.Fatal().Str("mode", *mode).Msg("unknown mode (expected: market, status, recover, report)")
	}
}

func liveModeConfirmed(flagSet bool) bool {
	return flagSet && os.Getenv("ALGO_LIVE_CONFIRMED") == "true"
}

func printLiveModeBlocked(flagSet bool) {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "  ╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "  ║                    LIVE MODE BLOCKED                     ║")
	fmt.Fprintln(os.Stderr, "  ╠═══════════════════════════════════════════════════════════╣")
	fmt.Fprintln(os.Stderr, "  ║  Live trading requires TWO explicit confirmations:       ║")
	fmt.Fprintln(os.Stderr, "  ║                                                           ║")
	fmt.Fprintln(os.Stderr, "  ║  1. CLI flag:   --confirm-live                            ║")
	fmt.Fprintln(os.Stderr, "  ║  2. Env var:    ALGO_LIVE_CONFIRMED=true                  ║")
	fmt.Fprintln(os.Stderr, "  ║                                                           ║")
	fmt.Fprintln(os.Stderr, "  ║  Example:                                                 ║")
	fmt.Fprintln(os.Stderr, "  ║  ALGO_LIVE_CONFIRMED=true ./engine \\                       ║")
	fmt.Fprintln(os.Stderr, "  ║    --mode market --confirm-live                           ║")
	fmt.Fprintln(os.Stderr, "  ╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(os.Stderr, "")
	if !flagSet {
		fmt.Fprintln(os.Stderr, "  MISSING: --confirm-live flag")
	}
	if os.Getenv("ALGO_LIVE_CONFIRMED") != "true" {
		fmt.Fprintln(os.Stderr, "  MISSING: ALGO_LIVE_CONFIRMED=true environment variable")
	}
	fmt.Fprintln(os.Stderr, "")
}

// buildBroker selects the paper-trading simulator for dryRun sessions, or
// constructs the configured live broker from the registry otherwise. No
// live broker adapter ships with this build beyond the paper simulator;
// a live ActiveBroker name requires a broker package registering itself
// into broker.Registry via init(), which is an external-collaborator
// concern out of scope here (SPEC_FULL.md §4).
func buildBroker(cfg *config.Config, logger zerolog.Logger) broker.Broker {
	if cfg.DryRun {
		logger.Info().Msg("using paper broker (dryRun)")
		return broker.NewPaperBroker(100000)
	}

	brokerCfg := cfg.BrokerConfig[cfg.ActiveBroker]
	b, err := broker.New(cfg.ActiveBroker, brokerCfg)
	if err != nil {
		logger.Fatal().Err(err).Str("broker", cfg.ActiveBroker).Msg("failed to initialize broker")
	}
	logger.Info().Str("broker", cfg.ActiveBroker).Msg("using live broker")
	return b
}

func buildStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) storage.Store {
	if cfg.DatabaseURL == "" {
		path := "trader.db"
		s, err := storage.NewBoltStore(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("failed to open bolt store")
		}
		logger.Info().Str("path", path).Msg("using bolt store (no database configured)")
		return s
	}

	s, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open postgres store")
	}
	logger.Info().Msg("using postgres store")
	return s
}

// buildEngine wires every collaborator into an engine.Engine, following
// the dependency order internal/engine.Dependencies names. It also returns
// the risk gate and circuit breaker directly, since runMarket's config
// watcher needs to push hot-reloaded limits into them independently of the
// engine itself.
func buildEngine(cfg *config.Config, b broker.Broker, store storage.Store, logger zerolog.Logger) (*engine.Engine, *risk.Gate, *risk.CircuitBreaker) {
	cal := engine.NewBrokerCalendar(b, context.Background(), time.Duration(cfg.DataTimeoutSeconds)*time.Second)
	windowStart, windowEnd := mustParseWindow(cfg.TradingWindowStart, cfg.TradingWindowEnd, logger)
	clk := clock.New(clock.Window{TradingStart: windowStart, TradingEnd: windowEnd}, cal)

	provider := engine.NewBrokerProvider(b, time.Now)
	indicators := indicator.NewService(provider, marketdata.MinLookback)
	confEngine := confidence.NewEngine(confidence.DefaultVolatilityBands())
	policies := cfg.PolicyTable()

	positions := position.NewManager(store, position.JSONCodec{})

	metrics := events.NewMetrics()
	zlog := events.NewZerologSink(logger)
	var publisher events.Publisher
	if cfg.DatabaseURL != "" {
		pub, err := events.NewPQPublisher(cfg.DatabaseURL, "trader_events")
		if err != nil {
			logger.Warn().Err(err).Msg("event publisher unavailable — events will still log and record metrics")
		} else {
			publisher = pub
		}
	}
	sink := events.NewSink(zlog, metrics, publisher)

	orders := order.NewManager(b, positions, sink, order.Config{AccountRiskPerTrade: cfg.AccountRiskPerTrade})

	breaker := risk.NewCircuitBreaker(cfg.CircuitBreaker, logger)
	riskGate := risk.NewGate(cfg.RiskLimits(), breaker)

	eng := engine.New(engine.Config{
		Watchlist:     cfg.Watchlist,
		CycleInterval: time.Duration(cfg.CycleIntervalSeconds) * time.Second,
		DataTimeout:   time.Duration(cfg.DataTimeoutSeconds) * time.Second,
		OrderTimeout:  time.Duration(cfg.OrderTimeoutSeconds) * time.Second,
		ShutdownGrace: time.Duration(cfg.ShutdownGraceSeconds) * time.Second,
		MaxRetries:    cfg.MaxRetries,
		MinConfidence: cfg.MinConfidence,
	}, engine.Dependencies{
		Broker:     b,
		Clock:      clk,
		Policies:   policies,
		Indicators: indicators,
		MarketData: provider,
		Confidence: confEngine,
		Strategies: strategy.All(),
		Risk:       riskGate,
		Breaker:    breaker,
		Orders:     orders,
		Positions:  positions,
		Sink:       sink,
		Store:      store,
	})
	return eng, riskGate, breaker
}

func mustParseWindow(start, end string, logger zerolog.Logger) (time.Duration, time.Duration) {
	s, err := parseClockOffset(start)
	if err != nil {
		logger.Fatal().Err(err).Str("tradingWindowStart", start).Msg("invalid trading window start")
	}
	e, err := parseClockOffset(end)
	if err != nil {
		logger.Fatal().Err(err).Str("tradingWindowEnd", end).Msg("invalid trading window end")
	}
	return s, e
}

// parseClockOffset parses a "HH:MM" wall-clock string into an offset from
// midnight, the form clock.Window expects.
func parseClockOffset(hhmm string) (time.Duration, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// runStatus prints a one-shot snapshot of market/session state and exits.
func runStatus(ctx context.Context, b broker.Broker, cfg *config.Config, logger zerolog.Logger) {
	now := time.Now()
	fmt.Println("=== Trading Engine Status ===")
	fmt.Printf("Time:         %s\n", now.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Mode:         %s\n", cfg.TradingMode)
	fmt.Printf("Broker:       %s\n", cfg.ActiveBroker)
	fmt.Printf("DryRun:       %v\n", cfg.DryRun)
	fmt.Printf("Watchlist:    %v\n", cfg.Watchlist)

	cal, err := b.MarketCalendar(ctx)
	if err != nil {
		fmt.Printf("Calendar:     error - %v\n", err)
	} else {
		fmt.Printf("Session open:  %s\n", cal.Open.Format("15:04:05 MST"))
		fmt.Printf("Session close: %s\n", cal.Close.Format("15:04:05 MST"))
	}

	acct, err := b.Account(ctx)
	if err != nil {
		fmt.Printf("Account:      error - %v\n", err)
		return
	}
	fmt.Printf("Equity:       %.2f\n", acct.Equity)
	fmt.Printf("Buying power: %.2f\n", acct.BuyingPower)
	fmt.Printf("Day trades:   %d\n", acct.DayTradeCount)
}

// runRecover exercises onWake (broker account sync + position reconcile)
// outside the normal session loop, useful after an unplanned restart to
// confirm the internal book matches the broker before the next market open.
func runRecover(ctx context.Context, eng *engine.Engine, logger zerolog.Logger) {
	if err := eng.Recover(ctx); err != nil {
		logger.Fatal().Err(err).Msg("recovery failed — internal book could not be trusted")
	}
	fmt.Println("recovery completed — internal book reconciled against broker")
}

// runReport builds and prints the EOD report for a single session date.
func runReport(ctx context.Context, store storage.Store, dateFlag string, logger zerolog.Logger) {
	date := time.Now()
	if dateFlag != "" {
		d, err := time.Parse("2006-01-02", dateFlag)
		if err != nil {
			logger.Fatal().Err(err).Str("date", dateFlag).Msg("invalid -date, expected YYYY-MM-DD")
		}
		date = d
	}
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	to := from.Add(24 * time.Hour)

	rep, err := report.Build(ctx, store, from, to)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build report")
	}
	printReport(date.Format("2006-01-02"), rep)
}

func printReport(date string, rep report.EODReport) {
	fmt.Printf("=== EOD Report: %s ===\n", date)
	fmt.Printf("Total trades:   %d\n", rep.TotalTrades)
	fmt.Printf("Winning trades: %d\n", rep.WinningTrades)
	fmt.Printf("Win rate:       %.1f%%\n", rep.WinRate)
	fmt.Printf("Net P&L:        %.2f\n", rep.NetPnL)
	fmt.Printf("Profit factor:  %.2f\n", rep.ProfitFactor)
	fmt.Printf("Max drawdown:   %.2f (%.1f%%)\n", rep.MaxDrawdown, rep.MaxDrawdownPct)
	fmt.Printf("Sharpe ratio:   %.2f\n", rep.SharpeRatio)
	fmt.Println()
	if len(rep.Symbols) == 0 {
		fmt.Println("No trades in this session.")
		return
	}
	fmt.Printf("%-8s %-7s %-6s %-6s %-8s %-9s %-9s %-10s %-10s\n",
		"Symbol", "Trades", "Wins", "Losses", "WinRate", "NetPnL", "AvgPnL", "AvgR", "MaxDD")
	for _, s := range rep.Symbols {
		fmt.Printf("%-8s %-7d %-6d %-6d %-8.1f %-9.2f %-9.2f %-10.2f %-10.2f\n",
			s.Symbol, s.Trades, s.Wins, s.Losses, s.WinRatePct, s.NetPnL, s.AvgPnL, s.AvgRMultiple, s.MaxDrawdown)
	}
	if len(rep.Strategies) > 0 {
		fmt.Println()
		fmt.Printf("%-12s %-7s %-6s %-6s %-8s %-9s\n", "Strategy", "Trades", "Wins", "Losses", "WinRate", "NetPnL")
		for _, s := range rep.Strategies {
			fmt.Printf("%-12s %-7d %-6d %-6d %-8.1f %-9.2f\n", s.Strategy, s.Trades, s.Wins, s.Losses, s.WinRatePct, s.NetPnL)
		}
	}
}

// runMarket starts the session loop and blocks until a graceful shutdown
// completes. A first SIGINT/SIGTERM cancels ctx and gives the engine
// ShutdownGrace to flatten; a second repeat of either signal force-exits
// immediately, skipping the graceful flatten (spec.md §5).
func runMarket(eng *engine.Engine, riskGate *risk.Gate, breaker *risk.CircuitBreaker, configPath string, cfg *config.Config, logger zerolog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A second registration on the same signals, independent of the
	// NotifyContext above: the first SIGINT/SIGTERM cancels ctx and this
	// channel receives it too; a second repeat means the operator wants
	// out now, so skip the graceful flatten entirely (spec.md §5).
	forceKill := make(chan os.Signal, 2)
	signal.Notify(forceKill, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-forceKill
		<-forceKill
		logger.Warn().Msg("second interrupt received — forcing immediate exit, skipping graceful flatten")
		os.Exit(1)
	}()

	watcher := config.NewWatcher(configPath, cfg, logger)
	watcher.OnChange(func(old, newCfg *config.Config) {
		eng.UpdateCycleInterval(time.Duration(newCfg.CycleIntervalSeconds) * time.Second)
		riskGate.UpdateLimits(newCfg.RiskLimits())
		breaker.UpdateConfig(newCfg.CircuitBreaker)
		logger.Info().Msg("engine config hot-reloaded")
	})
	if err := watcher.Start(); err != nil {
		logger.Warn().Err(err).Msg("config watcher failed to start — hot-reload disabled")
	}
	defer watcher.Stop()

	logger.Info().Msg("session loop starting")
	if err := eng.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("session loop exited with error")
	}

	eng.Shutdown(context.Background())
	logger.Info().Msg("graceful shutdown complete")
}
