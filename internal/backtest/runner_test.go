package backtest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func trendingBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	px := 100.0
	for i := range bars {
		if i >= n/2 {
			px += 1.5
		} else {
			px += 0.05
		}
		bars[i] = model.Bar{Date: btDay(i), Open: px - 0.5, High: px + 1, Low: px - 1, Close: px, Volume: 1000}
	}
	return bars
}

func runnerParams() config.StrategyParams {
	p := config.DefaultStrategyParams()
	p.FastMAWindow = 5
	p.SlowMAWindow = 20
	p.VolatilityLookback = 20
	p.EntryBreakoutWindow = 10
	p.ExitBreakWindow = 10
	return p
}

func TestRunner_EndToEnd(t *testing.T) {
	r, err := NewRunner(runnerParams(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	bars := trendingBars(100)
	res, err := r.Run(context.Background(), "601360", bars, dec("1000000"))
	if err != nil {
		t.Fatal(err)
	}

	if res.RunID == "" {
		t.Error("run id not assigned")
	}
	if len(res.Signals) != len(bars) {
		t.Fatalf("signals = %d, want one per bar (%d)", len(res.Signals), len(bars))
	}
	if len(res.Trades) == 0 {
		t.Fatal("no trades on a clean uptrend")
	}
	if len(res.Snapshots) == 0 {
		t.Fatal("no snapshots recorded")
	}
	if res.Performance.TotalTrades != len(res.Trades) {
		t.Errorf("performance counted %d trades, ledger has %d",
			res.Performance.TotalTrades, len(res.Trades))
	}
	if !res.Performance.InitialValue.Equal(dec("1000000")) {
		t.Errorf("initial value = %s, want 1000000", res.Performance.InitialValue)
	}
}

func TestRunner_DeterministicAcrossRuns(t *testing.T) {
	r, err := NewRunner(runnerParams(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	bars := trendingBars(120)

	a, err := r.Run(context.Background(), "601360", bars, dec("500000"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Run(context.Background(), "601360", bars, dec("500000"))
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		if !a.Trades[i].Price.Equal(b.Trades[i].Price) || a.Trades[i].Shares != b.Trades[i].Shares {
			t.Fatalf("trade %d differs between runs", i)
		}
	}
	if a.Performance.TotalReturnPct != b.Performance.TotalReturnPct {
		t.Errorf("returns differ: %f vs %f",
			a.Performance.TotalReturnPct, b.Performance.TotalReturnPct)
	}
}

func TestRunner_RejectsBadInput(t *testing.T) {
	bad := config.DefaultStrategyParams()
	bad.FastMAWindow = 0
	if _, err := NewRunner(bad, testLogger()); err == nil {
		t.Error("invalid params accepted")
	}

	r, err := NewRunner(runnerParams(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	// Out-of-order series.
	bars := trendingBars(30)
	bars[5], bars[6] = bars[6], bars[5]
	if _, err := r.Run(context.Background(), "601360", bars, dec("1000")); err == nil {
		t.Error("unordered series accepted")
	}

	// Non-positive cash.
	if _, err := r.Run(context.Background(), "601360", trendingBars(30), decimal.Zero); err == nil {
		t.Error("zero initial cash accepted")
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	r, err := NewRunner(runnerParams(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, "601360", trendingBars(60), dec("1000")); err == nil {
		t.Error("cancelled context did not abort the run")
	}
}
