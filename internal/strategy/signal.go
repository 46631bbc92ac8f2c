// Package strategy turns indicator rows into per-day trading signals.
//
// The SignalEngine is stateless: each day is evaluated independently against
// an ordered rule list, and the first matching rule wins. Position-aware
// gating (pyramid caps, minimum hold, cooldown) lives in PositionPolicy, which
// filters the raw signal stream before it reaches the ledger.
package strategy

import (
	"time"
)

// Action is the discrete per-day trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionAdd  Action = "ADD"
	ActionHold Action = "HOLD"
)

// Reason is the enumerated cause tag attached to a signal.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonWarmup        Reason = "warmup"
	ReasonTrendEntry    Reason = "trend_entry" // trend start + close above fast MA + vol filter + risk/reward
	ReasonStopLoss      Reason = "stop_loss_hit"
	ReasonSupportBreak  Reason = "support_break"
	ReasonTakeProfit    Reason = "take_profit_hit"
	ReasonTrendReversal Reason = "trend_reversal"
	ReasonPyramidAdd    Reason = "trend_strengthening_vol_expansion"

	// Tags applied by PositionPolicy when it suppresses a raw signal.
	ReasonCooldown   Reason = "cooldown_after_exit"
	ReasonPyramidCap Reason = "pyramid_layer_cap"
	ReasonMinHold    Reason = "min_hold_days"
	ReasonNoPosition Reason = "no_open_position"
)

// RiskLevel is the qualitative risk tier for an entry.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// SignalRecord is one day's decision. Stop/take-profit prices, position size,
// and risk level are populated for BUY and ADD only; SELL and HOLD leave them
// zero. Never mutated after creation.
type SignalRecord struct {
	Date     time.Time `json:"date"`
	Action   Action    `json:"action"`
	Reason   Reason    `json:"reason"`
	Price    float64   `json:"price"`    // close price the signal refers to
	Strength float64   `json:"strength"` // in [0,1]

	StopLoss     float64   `json:"stop_loss,omitempty"`
	TakeProfit   float64   `json:"take_profit,omitempty"`
	PositionSize float64   `json:"position_size,omitempty"` // fraction of capital (reporting only)
	RiskLevel    RiskLevel `json:"risk_level,omitempty"`
}
