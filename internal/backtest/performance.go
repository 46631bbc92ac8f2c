package backtest

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/JDkeyzl/getStocksData/internal/strategy"
)

// Performance summarizes a completed run. Percentages are in percent units
// (12.5 means 12.5%), matching how the summary is printed.
type Performance struct {
	TotalReturnPct  float64         `json:"total_return"`
	AnnualReturnPct float64         `json:"annual_return"`
	MaxDrawdownPct  float64         `json:"max_drawdown"`
	WinRatePct      float64         `json:"win_rate"`
	SharpeRatio     float64         `json:"sharpe_ratio"`
	TotalTrades     int             `json:"total_trades"`
	BuyTrades       int             `json:"buy_trades"`
	SellTrades      int             `json:"sell_trades"`
	InitialValue    decimal.Decimal `json:"initial_value"`
	FinalValue      decimal.Decimal `json:"final_value"`
}

// Measure computes the performance summary from a run's fills and equity
// snapshots. With no snapshots (no decision days at all) it returns the
// zero summary with the balances filled in.
func Measure(initial decimal.Decimal, trades []Trade, snapshots []Snapshot) Performance {
	perf := Performance{InitialValue: initial, FinalValue: initial}
	for _, t := range trades {
		perf.TotalTrades++
		if t.Action == strategy.ActionSell {
			perf.SellTrades++
		} else {
			perf.BuyTrades++
		}
	}
	if len(snapshots) == 0 {
		return perf
	}

	final := snapshots[len(snapshots)-1].Equity
	perf.FinalValue = final

	initF, _ := initial.Float64()
	finalF, _ := final.Float64()
	if initF > 0 {
		perf.TotalReturnPct = (finalF - initF) / initF * 100
	}

	// Annualized over calendar days between the first and last decision day.
	days := snapshots[len(snapshots)-1].Date.Sub(snapshots[0].Date).Hours() / 24
	if days > 0 && initF > 0 {
		perf.AnnualReturnPct = (math.Pow(finalF/initF, 365/days) - 1) * 100
	}

	perf.MaxDrawdownPct = maxDrawdown(initF, snapshots)
	perf.WinRatePct = winRate(trades)
	perf.SharpeRatio = sharpe(snapshots)
	return perf
}

// maxDrawdown tracks the running equity peak, seeded with the initial
// balance so a run that only ever loses money still registers a drawdown.
func maxDrawdown(initial float64, snapshots []Snapshot) float64 {
	peak := initial
	maxDD := 0.0
	for _, s := range snapshots {
		eq, _ := s.Equity.Float64()
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			if dd := (peak - eq) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// winRate is the share of SELL fills with positive realized profit. Entries
// are excluded; a run with no exits has no win rate and reports zero.
func winRate(trades []Trade) float64 {
	sells, wins := 0, 0
	for _, t := range trades {
		if t.Action != strategy.ActionSell {
			continue
		}
		sells++
		if t.Profit.IsPositive() {
			wins++
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells) * 100
}

// sharpe annualizes mean/stddev of snapshot-to-snapshot equity returns by
// sqrt(252). The deviation is the population form (divisor n, not n-1).
func sharpe(snapshots []Snapshot) float64 {
	if len(snapshots) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev, _ := snapshots[i-1].Equity.Float64()
		cur, _ := snapshots[i].Equity.Float64()
		if prev == 0 {
			continue
		}
		rets = append(rets, (cur-prev)/prev)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := stat.Mean(rets, nil)
	n := float64(len(rets))
	std := math.Sqrt(stat.Variance(rets, nil) * (n - 1) / n)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}
