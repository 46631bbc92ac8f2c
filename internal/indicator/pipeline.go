package indicator

import (
	"time"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/model"
)

// Volatility regime tags, classified from the ATR-to-median ratio.
const (
	RegimeLow    = "low"
	RegimeNormal = "normal"
	RegimeHigh   = "high"
)

// Trend state tags, classified from the trend-strength ratio. Ties at exactly
// the threshold fall into the weaker bucket. Rows with an undefined trend
// strength stay neutral.
const (
	TrendNeutral         = "neutral"
	TrendStrongUptrend   = "strong_uptrend"
	TrendWeakUptrend     = "weak_uptrend"
	TrendWeakDowntrend   = "weak_downtrend"
	TrendStrongDowntrend = "strong_downtrend"
)

// Row carries the derived indicator values for one trading day. Numeric fields
// are NaN until their rolling window has enough history; a Row is fully
// defined only from index StrategyParams.MinLookback onward.
type Row struct {
	Date  time.Time
	Close float64

	FastMA float64
	SlowMA float64

	ATR          float64
	ATRPct       float64 // ATR / close
	ATRPctMedian float64 // rolling median baseline of ATRPct
	ATRRatio     float64 // ATRPct / ATRPctMedian

	DonchianHigh float64 // trailing max high (entry breakout channel)
	DonchianLow  float64 // trailing min low (exit break channel)

	TrendStrength float64 // (fast - slow) / slow
	VolRegime     string
	TrendState    string
}

// Compute derives the full indicator series for an ordered bar sequence.
// The output has the same length and date ordering as the input; no value at
// index i depends on any bar after i.
func Compute(bars []model.Bar, p config.StrategyParams) []Row {
	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range bars {
		closes[i] = bars[i].Close
		highs[i] = bars[i].High
		lows[i] = bars[i].Low
	}

	fast := RollingMean(closes, p.FastMAWindow)
	slow := RollingMean(closes, p.SlowMAWindow)
	atr := ATR(bars, p.ATRWindow)
	donHigh := RollingMax(highs, p.EntryBreakoutWindow)
	donLow := RollingMin(lows, p.ExitBreakWindow)

	atrPct := make([]float64, n)
	for i := range atrPct {
		atrPct[i] = atr[i] / closes[i]
	}
	atrPctMedian := RollingMedian(atrPct, p.VolatilityLookback)

	rows := make([]Row, n)
	for i := range rows {
		r := &rows[i]
		r.Date = bars[i].Date
		r.Close = closes[i]
		r.FastMA = fast[i]
		r.SlowMA = slow[i]
		r.ATR = atr[i]
		r.ATRPct = atrPct[i]
		r.ATRPctMedian = atrPctMedian[i]
		// IEEE division keeps the sentinel semantics: x/0 is +Inf, 0/0 is NaN,
		// and both fail every gating comparison downstream.
		r.ATRRatio = atrPct[i] / atrPctMedian[i]
		r.DonchianHigh = donHigh[i]
		r.DonchianLow = donLow[i]
		r.TrendStrength = (fast[i] - slow[i]) / slow[i]
		r.VolRegime = classifyRegime(r.ATRRatio, p)
		r.TrendState = classifyTrend(r.TrendStrength, p)
	}
	return rows
}

func classifyRegime(ratio float64, p config.StrategyParams) string {
	switch {
	case ratio < p.VolMinPct:
		return RegimeLow
	case ratio > p.VolMaxPct:
		return RegimeHigh
	default:
		return RegimeNormal
	}
}

func classifyTrend(strength float64, p config.StrategyParams) string {
	thr := p.TrendStrengthThreshold
	switch {
	case strength > thr:
		return TrendStrongUptrend
	case strength < -thr:
		return TrendStrongDowntrend
	case strength >= 0 && strength <= thr:
		return TrendWeakUptrend
	case strength >= -thr && strength < 0:
		return TrendWeakDowntrend
	default:
		// Undefined trend strength (NaN) fails every comparison above.
		return TrendNeutral
	}
}
