package strategy

import (
	"math"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/indicator"
)

// Assessment is the RiskModel output for a single indicator row.
type Assessment struct {
	StopLoss     float64
	TakeProfit   float64
	RiskReward   float64 // (tp - close) / (close - stop); NaN when the stop distance is <= 0
	PositionSize float64 // bounded fraction of capital
	Level        RiskLevel
}

// Assess computes the ATR-based stop/take-profit prices, the bounded position
// size, and the qualitative risk tier for one row. Pure function; undefined
// inputs propagate as NaN and must be treated as "condition false" by callers.
func Assess(row indicator.Row, p config.StrategyParams) Assessment {
	stopDist := p.ATRMultipleStop * row.ATR
	stop := row.Close - stopDist
	tp := row.Close + p.TakeProfitMultiple*stopDist

	rr := math.NaN()
	if stopDist > 0 {
		rr = (tp - row.Close) / (row.Close - stop)
	}

	return Assessment{
		StopLoss:     stop,
		TakeProfit:   tp,
		RiskReward:   rr,
		PositionSize: positionSize(row, rr, p),
		Level:        riskLevel(row, stopDist),
	}
}

// positionSize scales the base risk fraction by three independent multipliers
// (trend strength, volatility regime, risk/reward), each clamped to [0.5,1.5]
// except the regime multiplier which is a fixed 0.8/1.0/1.2 step, then caps
// the result at max_position_risk.
func positionSize(row indicator.Row, rr float64, p config.StrategyParams) float64 {
	trendAdj := clamp(math.Abs(row.TrendStrength)*10, 0.5, 1.5)

	volAdj := 1.0
	switch row.VolRegime {
	case indicator.RegimeLow:
		volAdj = 0.8
	case indicator.RegimeHigh:
		volAdj = 1.2
	}

	rrAdj := clamp(rr/2, 0.5, 1.5)

	size := p.RiskFractionPerTrade * trendAdj * volAdj * rrAdj
	return math.Min(size, p.MaxPositionRisk)
}

// riskLevel is a three-factor additive score: volatility regime, trend
// strength against two cutoffs, and stop distance (as a fraction of price)
// against two cutoffs. Each factor contributes 0, 1, or 2 points.
func riskLevel(row indicator.Row, stopDist float64) RiskLevel {
	score := 0

	switch row.VolRegime {
	case indicator.RegimeHigh:
		score += 2
	case indicator.RegimeNormal:
		score++
	}

	switch {
	case row.TrendStrength < 0.01:
		score += 2
	case row.TrendStrength > 0.05:
		// strong trend, no penalty
	default:
		score++
	}

	distPct := stopDist / row.Close
	switch {
	case distPct < 0.05:
		score += 2
	case distPct > 0.15:
		// wide stop, no penalty
	default:
		score++
	}

	switch {
	case score <= 2:
		return RiskLow
	case score <= 4:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
