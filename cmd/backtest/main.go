// cmd/backtest replays stored daily bars for one symbol through the signal
// pipeline and ledger, journals the run, and prints a performance summary.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=sh.600000 --from=2020-01-01 --cash=1000000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/backtest"
	"github.com/JDkeyzl/getStocksData/internal/logger"
	"github.com/JDkeyzl/getStocksData/internal/model"
	sqlitestore "github.com/JDkeyzl/getStocksData/internal/store/sqlite"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	symbol := flag.String("symbol", "", "Instrument to backtest (required)")
	fromStr := flag.String("from", "", "Start date YYYY-MM-DD (empty = all stored)")
	toStr := flag.String("to", "", "End date YYYY-MM-DD (empty = all stored)")
	dbPath := flag.String("db", cfg.SQLitePath, "Path to SQLite database")
	cashStr := flag.String("cash", "1000000", "Starting cash")
	verbose := flag.Bool("v", false, "Print every non-HOLD signal")
	flag.Parse()

	slogger := logger.Init("backtest", slog.LevelInfo)

	if *symbol == "" {
		log.Fatal("[backtest] --symbol is required")
	}
	from := parseDateFlag("from", *fromStr)
	to := parseDateFlag("to", *toStr)
	initialCash, err := decimal.NewFromString(*cashStr)
	if err != nil {
		log.Fatalf("[backtest] bad --cash %q: %v", *cashStr, err)
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	bars, err := reader.ReadBars(*symbol, from, to)
	if err != nil {
		log.Fatalf("[backtest] read bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("[backtest] no bars stored for %s; run cmd/fetch first", *symbol)
	}

	params := config.DefaultStrategyParams()
	runner, err := backtest.NewRunner(params, slogger)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	res, err := runner.Run(ctx, *symbol, bars, initialCash)
	if err != nil {
		log.Fatalf("[backtest] run failed: %v", err)
	}

	if *verbose {
		for _, s := range res.Signals {
			if s.Action == "HOLD" {
				continue
			}
			fmt.Printf("  [%s] %-4s strength=%.2f price=%.2f reason=%s\n",
				s.Date.Format(model.DateLayout), s.Action, s.Strength, s.Price, s.Reason)
		}
	}

	// Journal the run so the reporting API can serve it later.
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Printf("[backtest] WARNING: journal unavailable: %v", err)
	} else {
		defer writer.Close()
		if err := writer.SaveRun(res, params); err != nil {
			log.Printf("[backtest] WARNING: journal run failed: %v", err)
		}
	}

	printSummary(res)
}

func parseDateFlag(name, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		log.Fatalf("[backtest] bad --%s %q: %v", name, s, err)
	}
	return t
}

func printSummary(res *backtest.Result) {
	p := res.Performance

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║           BACKTEST COMPLETE              ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Symbol:          %-22s ║\n", res.Symbol)
	fmt.Printf("║  Bars:            %-22d ║\n", res.Bars)
	fmt.Printf("║  Total return:    %-21s%% ║\n", fmt.Sprintf("%.2f", p.TotalReturnPct))
	fmt.Printf("║  Annual return:   %-21s%% ║\n", fmt.Sprintf("%.2f", p.AnnualReturnPct))
	fmt.Printf("║  Max drawdown:    %-21s%% ║\n", fmt.Sprintf("%.2f", p.MaxDrawdownPct))
	fmt.Printf("║  Win rate:        %-21s%% ║\n", fmt.Sprintf("%.2f", p.WinRatePct))
	fmt.Printf("║  Sharpe ratio:    %-22.2f ║\n", p.SharpeRatio)
	fmt.Printf("║  Trades:          %-22s ║\n", fmt.Sprintf("%d (%d buy / %d sell)", p.TotalTrades, p.BuyTrades, p.SellTrades))
	fmt.Printf("║  Initial capital: %-22s ║\n", p.InitialValue.StringFixed(2))
	fmt.Printf("║  Final capital:   %-22s ║\n", p.FinalValue.StringFixed(2))
	fmt.Printf("║  Run ID:          %-22s ║\n", res.RunID[:8])
	fmt.Println("╚══════════════════════════════════════════╝")

	if len(res.Trades) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Last trades:")
	start := len(res.Trades) - 5
	if start < 0 {
		start = 0
	}
	for _, t := range res.Trades[start:] {
		line := fmt.Sprintf("  %s  %-4s %6d @ %-10s", t.Date.Format(model.DateLayout), t.Action, t.Shares, t.Price.StringFixed(2))
		if t.Action == "SELL" {
			line += fmt.Sprintf("  pnl=%-10s", t.Profit.StringFixed(2))
		}
		fmt.Println(line + "  " + string(t.Reason))
	}
}
