package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/indicator"
	"github.com/JDkeyzl/getStocksData/internal/metrics"
	"github.com/JDkeyzl/getStocksData/internal/model"
	"github.com/JDkeyzl/getStocksData/internal/strategy"
)

// Result is everything one run produces: the full per-day signal stream
// (post policy filtering), the fills, the equity snapshots, and the summary.
type Result struct {
	RunID       string                  `json:"run_id"`
	Symbol      string                  `json:"symbol"`
	StartedAt   time.Time               `json:"started_at"`
	Duration    time.Duration           `json:"duration"`
	Bars        int                     `json:"bars"`
	Signals     []strategy.SignalRecord `json:"signals"`
	Trades      []Trade                 `json:"trades"`
	Snapshots   []Snapshot              `json:"snapshots"`
	Performance Performance             `json:"performance"`
}

// Runner wires the indicator pipeline, signal engine, position policy, and
// ledger into one pass over a bar series.
type Runner struct {
	params config.StrategyParams
	log    *slog.Logger
}

// NewRunner creates a runner. Parameters are validated here so a bad set
// fails before any data is loaded.
func NewRunner(p config.StrategyParams, log *slog.Logger) (*Runner, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("strategy params: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{params: p, log: log}, nil
}

// Run simulates the strategy over bars with the given starting cash. The
// bars must be a valid ascending daily series. The context is checked
// between stages so a cancelled run stops before the ledger replay.
func (r *Runner) Run(ctx context.Context, symbol string, bars []model.Bar, initialCash decimal.Decimal) (*Result, error) {
	if err := model.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("bar series: %w", err)
	}
	if !initialCash.IsPositive() {
		return nil, fmt.Errorf("initial cash %s: must be positive", initialCash)
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Symbol:    symbol,
		StartedAt: time.Now(),
		Bars:      len(bars),
	}
	r.log.Info("backtest starting",
		"run_id", res.RunID, "symbol", symbol,
		"bars", len(bars), "initial_cash", initialCash.String())

	rows := indicator.Compute(bars, r.params)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := strategy.NewEngine(r.params).Evaluate(rows)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	policy := strategy.NewPositionPolicy(r.params)
	ledger := NewLedger(initialCash)
	res.Signals = make([]strategy.SignalRecord, len(raw))
	for i, sig := range raw {
		filtered := policy.Filter(i, sig)
		res.Signals[i] = filtered
		ledger.Apply(filtered)
	}

	res.Trades = ledger.Trades()
	res.Snapshots = ledger.Snapshots()
	res.Performance = Measure(initialCash, res.Trades, res.Snapshots)
	res.Duration = time.Since(res.StartedAt)

	metrics.BacktestRuns.Inc()
	metrics.BacktestDuration.Observe(res.Duration.Seconds())

	r.log.Info("backtest complete",
		"run_id", res.RunID, "symbol", symbol,
		"trades", len(res.Trades),
		"total_return_pct", res.Performance.TotalReturnPct,
		"max_drawdown_pct", res.Performance.MaxDrawdownPct,
		"duration", res.Duration)
	return res, nil
}
