// Package backtest simulates trading a signal stream against a cash ledger
// and measures the resulting equity curve.
//
// Money is held as decimal values so cash, trade proceeds, and realized
// profits are exact. Indicator math stays float64 upstream; the boundary is
// the signal price, converted once per applied signal.
package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JDkeyzl/getStocksData/internal/model"
	"github.com/JDkeyzl/getStocksData/internal/strategy"
)

// sizingFraction is the fraction of available cash committed per entry at
// full signal strength.
var sizingFraction = decimal.NewFromFloat(0.1)

// Lot is one open entry layer: a share count bought at a single price on a
// single day. SELL closes lots whole; there are no partial reductions.
type Lot struct {
	EntryDate  time.Time       `json:"entry_date"`
	Shares     int64           `json:"shares"`
	EntryPrice decimal.Decimal `json:"entry_price"`
}

// Trade is one executed fill. SELL fills are per closed lot, so a single
// SELL signal over three open lots produces three Trade entries. Profit and
// EntryDate are set on SELL fills only.
type Trade struct {
	Date      time.Time       `json:"date"`
	Action    strategy.Action `json:"action"`
	Price     decimal.Decimal `json:"price"`
	Shares    int64           `json:"shares"`
	Profit    decimal.Decimal `json:"profit"`
	EntryDate time.Time       `json:"entry_date,omitempty"`
	Reason    strategy.Reason `json:"reason"`
	CashAfter decimal.Decimal `json:"cash_after"`
}

// Snapshot is the ledger state after one applied decision day. Equity marks
// every open lot at that day's signal price.
type Snapshot struct {
	Date     time.Time       `json:"date"`
	Cash     decimal.Decimal `json:"cash"`
	Equity   decimal.Decimal `json:"equity"`
	OpenLots int             `json:"open_lots"`
	Action   strategy.Action `json:"action"`
	Reason   strategy.Reason `json:"reason"`
}

// Ledger replays signals against a single cash account. Lots are kept in
// entry order. The ledger sizes positions from cash and signal strength
// alone; risk-model sizing on the signal is advisory output, not an input
// here.
type Ledger struct {
	initial   decimal.Decimal
	cash      decimal.Decimal
	lots      []Lot
	trades    []Trade
	snapshots []Snapshot
}

// NewLedger creates a ledger holding initialCash and no positions.
func NewLedger(initialCash decimal.Decimal) *Ledger {
	return &Ledger{initial: initialCash, cash: initialCash}
}

// Apply executes one signal. HOLD days are ignored entirely; every other
// action appends a snapshot even when no fill results (a BUY too small to
// afford one share, a SELL against an empty book). Signals must arrive in
// date order.
func (l *Ledger) Apply(sig strategy.SignalRecord) {
	if sig.Action == strategy.ActionHold {
		return
	}
	price := decimal.NewFromFloat(sig.Price)

	switch sig.Action {
	case strategy.ActionBuy, strategy.ActionAdd:
		l.open(sig, price)
	case strategy.ActionSell:
		l.closeThrough(sig, price)
	}

	l.snapshots = append(l.snapshots, Snapshot{
		Date:     sig.Date,
		Cash:     l.cash,
		Equity:   l.cash.Add(l.markValue(sig.Date, price)),
		OpenLots: len(l.lots),
		Action:   sig.Action,
		Reason:   sig.Reason,
	})
}

// open commits min(cash * 0.1 * strength, cash) to a new lot, rounded down
// to whole shares. Cash can reach exactly zero but never goes negative.
func (l *Ledger) open(sig strategy.SignalRecord, price decimal.Decimal) {
	if !l.cash.IsPositive() || !price.IsPositive() {
		return
	}
	value := l.cash.Mul(sizingFraction).Mul(decimal.NewFromFloat(sig.Strength))
	if value.GreaterThan(l.cash) {
		value = l.cash
	}
	shares := value.Div(price).IntPart()
	if shares < 1 {
		return
	}

	cost := price.Mul(decimal.NewFromInt(shares))
	l.cash = l.cash.Sub(cost)
	l.lots = append(l.lots, Lot{EntryDate: sig.Date, Shares: shares, EntryPrice: price})
	l.trades = append(l.trades, Trade{
		Date:      sig.Date,
		Action:    strategy.ActionBuy,
		Price:     price,
		Shares:    shares,
		Reason:    sig.Reason,
		CashAfter: l.cash,
	})
}

// closeThrough sells every lot entered on or before the signal date, one
// fill per lot, oldest first.
func (l *Ledger) closeThrough(sig strategy.SignalRecord, price decimal.Decimal) {
	remaining := l.lots[:0]
	for _, lot := range l.lots {
		if lot.EntryDate.After(sig.Date) {
			remaining = append(remaining, lot)
			continue
		}
		shares := decimal.NewFromInt(lot.Shares)
		l.cash = l.cash.Add(price.Mul(shares))
		l.trades = append(l.trades, Trade{
			Date:      sig.Date,
			Action:    strategy.ActionSell,
			Price:     price,
			Shares:    lot.Shares,
			Profit:    price.Sub(lot.EntryPrice).Mul(shares),
			EntryDate: lot.EntryDate,
			Reason:    sig.Reason,
			CashAfter: l.cash,
		})
	}
	l.lots = remaining
}

// markValue prices every lot entered on or before date at price.
func (l *Ledger) markValue(date time.Time, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		if !lot.EntryDate.After(date) {
			total = total.Add(price.Mul(decimal.NewFromInt(lot.Shares)))
		}
	}
	return total
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// InitialCash returns the starting balance.
func (l *Ledger) InitialCash() decimal.Decimal { return l.initial }

// OpenLots returns a copy of the open lots in entry order.
func (l *Ledger) OpenLots() []Lot {
	cp := make([]Lot, len(l.lots))
	copy(cp, l.lots)
	return cp
}

// Trades returns all fills in execution order.
func (l *Ledger) Trades() []Trade {
	cp := make([]Trade, len(l.trades))
	copy(cp, l.trades)
	return cp
}

// Snapshots returns the per-decision-day equity records.
func (l *Ledger) Snapshots() []Snapshot {
	cp := make([]Snapshot, len(l.snapshots))
	copy(cp, l.snapshots)
	return cp
}

// FinalEquity marks the book at the closing price of the last bar. With no
// bars it falls back to cash.
func (l *Ledger) FinalEquity(bars []model.Bar) decimal.Decimal {
	if len(bars) == 0 {
		return l.cash
	}
	last := bars[len(bars)-1]
	return l.cash.Add(l.markValue(last.Date, decimal.NewFromFloat(last.Close)))
}
