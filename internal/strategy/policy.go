package strategy

import "github.com/JDkeyzl/getStocksData/config"

// PositionPolicy layers position-aware gating on top of the stateless engine:
// pyramid layer caps, minimum hold days, and a cooldown after exits. The raw
// engine deliberately knows nothing about holdings, so any signal it emits
// passes through here before reaching the ledger. Suppressed signals are
// re-tagged HOLD with the policy reason so the decision remains visible in
// the output stream.
//
// Stop-loss and take-profit exits are never suppressed: the minimum-hold rule
// applies only to the softer support-break and trend-reversal exits.
type PositionPolicy struct {
	params config.StrategyParams

	openLayers   int
	lastEntryDay int // day index of the most recent BUY/ADD that passed
	lastExitDay  int // day index of the most recent SELL that passed
}

// NewPositionPolicy creates a policy with no position and no exit history.
func NewPositionPolicy(p config.StrategyParams) *PositionPolicy {
	return &PositionPolicy{params: p, lastEntryDay: -1, lastExitDay: -1}
}

// OpenLayers returns the number of entry layers the policy believes are open.
func (pp *PositionPolicy) OpenLayers() int { return pp.openLayers }

// Filter inspects the raw signal for day index day and either passes it
// through or returns it re-tagged as HOLD. It must be called strictly in day
// order, once per day.
func (pp *PositionPolicy) Filter(day int, sig SignalRecord) SignalRecord {
	switch sig.Action {
	case ActionBuy:
		if pp.inCooldown(day) {
			return suppress(sig, ReasonCooldown)
		}
		if pp.openLayers > 0 && !pp.params.EnablePyramiding {
			return suppress(sig, ReasonPyramidCap)
		}
		if pp.openLayers >= pp.params.MaxPyramidLayers {
			return suppress(sig, ReasonPyramidCap)
		}
		pp.openLayers++
		pp.lastEntryDay = day
		return sig

	case ActionAdd:
		if pp.openLayers == 0 {
			return suppress(sig, ReasonNoPosition)
		}
		if !pp.params.EnablePyramiding || pp.openLayers >= pp.params.MaxPyramidLayers {
			return suppress(sig, ReasonPyramidCap)
		}
		pp.openLayers++
		pp.lastEntryDay = day
		return sig

	case ActionSell:
		if pp.openLayers == 0 {
			// Nothing to close; the ledger would no-op anyway.
			return sig
		}
		if pp.heldTooShort(day) && softExit(sig.Reason) {
			return suppress(sig, ReasonMinHold)
		}
		pp.openLayers = 0
		pp.lastExitDay = day
		return sig

	default:
		return sig
	}
}

func (pp *PositionPolicy) inCooldown(day int) bool {
	return pp.lastExitDay >= 0 && day-pp.lastExitDay < pp.params.CooldownDaysAfterExit
}

func (pp *PositionPolicy) heldTooShort(day int) bool {
	return pp.lastEntryDay >= 0 && day-pp.lastEntryDay < pp.params.MinHoldDays
}

func softExit(r Reason) bool {
	return r == ReasonSupportBreak || r == ReasonTrendReversal
}

func suppress(sig SignalRecord, why Reason) SignalRecord {
	sig.Action = ActionHold
	sig.Reason = why
	sig.Strength = 0
	sig.StopLoss = 0
	sig.TakeProfit = 0
	sig.PositionSize = 0
	sig.RiskLevel = ""
	return sig
}
