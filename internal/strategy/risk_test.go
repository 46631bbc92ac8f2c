package strategy

import (
	"math"
	"testing"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/indicator"
)

func assessRow(close, atr, trend float64, regime string) indicator.Row {
	return indicator.Row{Close: close, ATR: atr, TrendStrength: trend, VolRegime: regime}
}

func TestAssess_StopAndTakeProfit(t *testing.T) {
	p := config.DefaultStrategyParams() // stop mult 3, tp mult 2
	a := Assess(assessRow(100, 2, 0.03, indicator.RegimeNormal), p)

	// stop = 100 - 3*2 = 94; tp = 100 + 2*3*2 = 112; rr = 12/6 = 2
	if a.StopLoss != 94 {
		t.Errorf("stop = %f, want 94", a.StopLoss)
	}
	if a.TakeProfit != 112 {
		t.Errorf("take profit = %f, want 112", a.TakeProfit)
	}
	if math.Abs(a.RiskReward-2.0) > 1e-12 {
		t.Errorf("risk/reward = %f, want 2", a.RiskReward)
	}
}

func TestAssess_ZeroATRUndefinedRiskReward(t *testing.T) {
	p := config.DefaultStrategyParams()
	a := Assess(assessRow(100, 0, 0.03, indicator.RegimeNormal), p)
	if !math.IsNaN(a.RiskReward) {
		t.Errorf("zero stop distance gave rr=%f, want NaN", a.RiskReward)
	}
	// NaN must read as "condition false" in the entry gate.
	if a.RiskReward > 1.5 {
		t.Error("NaN risk/reward compared true")
	}
}

func TestPositionSize_MultipliersAndCap(t *testing.T) {
	p := config.DefaultStrategyParams() // base 0.01, cap 0.05

	// trend 0.03 -> trendAdj 0.3 clamped to 0.5; normal regime 1.0;
	// rr 2 -> rrAdj 1.0. size = 0.01 * 0.5 = 0.005.
	a := Assess(assessRow(100, 2, 0.03, indicator.RegimeNormal), p)
	if math.Abs(a.PositionSize-0.005) > 1e-12 {
		t.Errorf("size = %f, want 0.005", a.PositionSize)
	}

	// trend 0.2 -> 2.0 clamped to 1.5; high regime 1.2; rr 2 -> 1.0.
	// size = 0.01 * 1.5 * 1.2 = 0.018.
	a = Assess(assessRow(100, 2, 0.2, indicator.RegimeHigh), p)
	if math.Abs(a.PositionSize-0.018) > 1e-12 {
		t.Errorf("size = %f, want 0.018", a.PositionSize)
	}

	// Push the base so the cap binds.
	p.RiskFractionPerTrade = 0.2
	a = Assess(assessRow(100, 2, 0.2, indicator.RegimeHigh), p)
	if a.PositionSize != p.MaxPositionRisk {
		t.Errorf("size = %f, want capped at %f", a.PositionSize, p.MaxPositionRisk)
	}
}

func TestRiskLevel_Buckets(t *testing.T) {
	p := config.DefaultStrategyParams()

	// Low: low regime (0) + strong trend 0.06 (0) + wide stop (0) = 0.
	// stop distance pct = 3*6/100 = 0.18 > 0.15.
	a := Assess(assessRow(100, 6, 0.06, indicator.RegimeLow), p)
	if a.Level != RiskLow {
		t.Errorf("level = %s, want LOW", a.Level)
	}

	// Medium: normal regime (1) + mid trend 0.03 (1) + mid stop (1) = 3.
	// stop distance pct = 3*2/100 = 0.06 in [0.05, 0.15].
	a = Assess(assessRow(100, 2, 0.03, indicator.RegimeNormal), p)
	if a.Level != RiskMedium {
		t.Errorf("level = %s, want MEDIUM", a.Level)
	}

	// High: high regime (2) + weak trend 0.005 (2) + tight stop (2) = 6.
	// stop distance pct = 3*1/100 = 0.03 < 0.05.
	a = Assess(assessRow(100, 1, 0.005, indicator.RegimeHigh), p)
	if a.Level != RiskHigh {
		t.Errorf("level = %s, want HIGH", a.Level)
	}
}
