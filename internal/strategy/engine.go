package strategy

import (
	"math"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/indicator"
)

// rule pairs an enumerated reason with a pure predicate over one day's
// indicator row and risk assessment. Rules are evaluated in priority order and
// the first match wins, so at most one of BUY/SELL/ADD fires per day.
type rule struct {
	action Action
	reason Reason
	match  func(row indicator.Row, a Assessment, p config.StrategyParams) bool
}

// The decision order is fixed: entry first, then the four exit causes in
// stop-loss, support-break, take-profit, trend-reversal order, then pyramid
// adds. NaN indicator values fail every comparison, so undefined rows can
// never match.
var rules = []rule{
	{ActionBuy, ReasonTrendEntry, func(r indicator.Row, a Assessment, p config.StrategyParams) bool {
		return r.FastMA > r.SlowMA &&
			r.Close > r.FastMA &&
			r.ATRRatio >= p.VolMinPct && r.ATRRatio <= p.VolMaxPct &&
			a.RiskReward > 1.5
	}},
	{ActionSell, ReasonStopLoss, func(r indicator.Row, a Assessment, p config.StrategyParams) bool {
		return r.Close < a.StopLoss
	}},
	{ActionSell, ReasonSupportBreak, func(r indicator.Row, a Assessment, p config.StrategyParams) bool {
		return r.Close < r.DonchianLow
	}},
	{ActionSell, ReasonTakeProfit, func(r indicator.Row, a Assessment, p config.StrategyParams) bool {
		return r.Close > a.TakeProfit
	}},
	{ActionSell, ReasonTrendReversal, func(r indicator.Row, a Assessment, p config.StrategyParams) bool {
		return r.TrendStrength < -p.TrendStrengthThreshold
	}},
	{ActionAdd, ReasonPyramidAdd, func(r indicator.Row, a Assessment, p config.StrategyParams) bool {
		return r.TrendStrength > 1.5*p.TrendStrengthThreshold &&
			r.ATRRatio > p.VolExpandMultipleAdd
	}},
}

// Engine walks an indicator series day by day and emits one SignalRecord per
// day. It keeps no position state; every day is a pure function of that day's
// row and the strategy parameters.
type Engine struct {
	params config.StrategyParams
}

// NewEngine creates a signal engine for validated parameters.
func NewEngine(p config.StrategyParams) *Engine {
	return &Engine{params: p}
}

// Evaluate emits one signal per indicator row, in the same date order. Rows
// before the minimum lookback are always HOLD.
func (e *Engine) Evaluate(rows []indicator.Row) []SignalRecord {
	signals := make([]SignalRecord, len(rows))
	minLookback := e.params.MinLookback()

	for i, row := range rows {
		sig := SignalRecord{
			Date:   row.Date,
			Action: ActionHold,
			Price:  row.Close,
		}
		if i < minLookback {
			sig.Reason = ReasonWarmup
			signals[i] = sig
			continue
		}
		signals[i] = e.evaluateDay(row, sig)
	}
	return signals
}

func (e *Engine) evaluateDay(row indicator.Row, sig SignalRecord) SignalRecord {
	assess := Assess(row, e.params)

	for _, rl := range rules {
		if !rl.match(row, assess, e.params) {
			continue
		}
		sig.Action = rl.action
		sig.Reason = rl.reason

		switch rl.action {
		case ActionBuy:
			sig.Strength = math.Min(1.0, row.TrendStrength*10)
			sig.StopLoss = assess.StopLoss
			sig.TakeProfit = assess.TakeProfit
			sig.PositionSize = assess.PositionSize
			sig.RiskLevel = assess.Level
		case ActionSell:
			sig.Strength = 1.0
		case ActionAdd:
			sig.Strength = 0.8
			sig.StopLoss = assess.StopLoss
			sig.TakeProfit = assess.TakeProfit
			sig.PositionSize = assess.PositionSize * 0.5
			sig.RiskLevel = assess.Level
		}
		return sig
	}
	return sig
}
