package config

import "fmt"

// StrategyParams is the immutable parameter set for the momentum/volatility/
// breakout strategy. Construct with DefaultStrategyParams, adjust fields, then
// call Validate once before handing it to the pipeline; invalid combinations
// fail fast instead of silently producing NaN-propagated signals.
type StrategyParams struct {
	// Sizing
	RiskFractionPerTrade float64 // base position size as fraction of capital
	MaxPositionRisk      float64 // cap on the computed position fraction

	// Moving averages and breakout channels (trading days)
	FastMAWindow        int
	SlowMAWindow        int
	EntryBreakoutWindow int // Donchian high lookback
	ExitBreakWindow     int // Donchian low lookback

	// Volatility filter
	ATRWindow             int
	ATRMultipleStop       float64 // stop distance in ATR units
	VolMinPct             float64 // lower bound on ATR%%/median ratio
	VolMaxPct             float64 // upper bound on ATR%%/median ratio
	VolatilityLookback    int     // rolling median window for the ATR%% baseline
	VolExpandMultipleAdd  float64 // ATR ratio above which ADDs are considered
	TakeProfitMultiple    float64 // take profit = multiple * stop distance
	TrendStrengthThreshold float64 // strong/weak trend cutoff on (fast-slow)/slow

	// Position policy (enforced by strategy.PositionPolicy, not the engine)
	EnablePyramiding      bool
	MaxPyramidLayers      int
	MinHoldDays           int
	CooldownDaysAfterExit int
}

// DefaultStrategyParams returns the documented defaults.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		RiskFractionPerTrade: 0.01,
		MaxPositionRisk:      0.05,

		FastMAWindow:        20,
		SlowMAWindow:        60,
		EntryBreakoutWindow: 10,
		ExitBreakWindow:     10,

		ATRWindow:              14,
		ATRMultipleStop:        3.0,
		VolMinPct:              0.7,
		VolMaxPct:              2.0,
		VolatilityLookback:     60,
		VolExpandMultipleAdd:   1.1,
		TakeProfitMultiple:     2.0,
		TrendStrengthThreshold: 0.02,

		EnablePyramiding:      true,
		MaxPyramidLayers:      3,
		MinHoldDays:           5,
		CooldownDaysAfterExit: 5,
	}
}

// MinLookback is the number of leading bars with undefined indicators; the
// engine emits HOLD for every one of them.
func (p StrategyParams) MinLookback() int {
	if p.SlowMAWindow > p.VolatilityLookback {
		return p.SlowMAWindow
	}
	return p.VolatilityLookback
}

// Validate checks parameter sanity. It returns a descriptive error for the
// first violated constraint.
func (p StrategyParams) Validate() error {
	for _, w := range []struct {
		name string
		val  int
	}{
		{"fast_ma_window", p.FastMAWindow},
		{"slow_ma_window", p.SlowMAWindow},
		{"entry_breakout_window", p.EntryBreakoutWindow},
		{"exit_break_window", p.ExitBreakWindow},
		{"atr_window", p.ATRWindow},
		{"volatility_lookback", p.VolatilityLookback},
	} {
		if w.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", w.name, w.val)
		}
	}
	if p.FastMAWindow >= p.SlowMAWindow {
		return fmt.Errorf("fast_ma_window (%d) must be below slow_ma_window (%d)", p.FastMAWindow, p.SlowMAWindow)
	}
	if p.VolMinPct <= 0 || p.VolMaxPct <= 0 || p.VolMinPct >= p.VolMaxPct {
		return fmt.Errorf("volatility band invalid: need 0 < vol_min_pct (%f) < vol_max_pct (%f)", p.VolMinPct, p.VolMaxPct)
	}
	if p.RiskFractionPerTrade <= 0 || p.RiskFractionPerTrade > 1 {
		return fmt.Errorf("risk_fraction_per_trade must be in (0,1], got %f", p.RiskFractionPerTrade)
	}
	if p.MaxPositionRisk <= 0 || p.MaxPositionRisk > 1 {
		return fmt.Errorf("max_position_risk must be in (0,1], got %f", p.MaxPositionRisk)
	}
	if p.ATRMultipleStop <= 0 {
		return fmt.Errorf("atr_multiple_stop must be positive, got %f", p.ATRMultipleStop)
	}
	if p.TakeProfitMultiple <= 0 {
		return fmt.Errorf("take_profit_multiple must be positive, got %f", p.TakeProfitMultiple)
	}
	if p.TrendStrengthThreshold <= 0 {
		return fmt.Errorf("trend_strength_threshold must be positive, got %f", p.TrendStrengthThreshold)
	}
	if p.VolExpandMultipleAdd <= 0 {
		return fmt.Errorf("vol_expand_multiple_for_add must be positive, got %f", p.VolExpandMultipleAdd)
	}
	if p.MaxPyramidLayers < 0 || p.MinHoldDays < 0 || p.CooldownDaysAfterExit < 0 {
		return fmt.Errorf("policy day/layer counts must be non-negative")
	}
	return nil
}
