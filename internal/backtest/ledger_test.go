package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JDkeyzl/getStocksData/internal/strategy"
)

func btDay(i int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

// ────────────────────────────────────────────────────────────
// Entry sizing
// ────────────────────────────────────────────────────────────

func TestLedger_BuySizing(t *testing.T) {
	l := NewLedger(dec("1000000"))
	l.Apply(strategy.SignalRecord{
		Date: btDay(0), Action: strategy.ActionBuy, Reason: strategy.ReasonTrendEntry,
		Price: 10.00, Strength: 1.0,
	})

	// Commit = 1,000,000 * 0.1 * 1.0 = 100,000 -> 10,000 whole shares.
	lots := l.OpenLots()
	if len(lots) != 1 {
		t.Fatalf("open lots = %d, want 1", len(lots))
	}
	if lots[0].Shares != 10000 {
		t.Errorf("shares = %d, want 10000", lots[0].Shares)
	}
	assertDecimal(t, lots[0].EntryPrice, "10", "entry price")
	assertDecimal(t, l.Cash(), "900000", "cash after")

	trades := l.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	assertDecimal(t, trades[0].CashAfter, "900000", "trade cash_after")

	snaps := l.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	// Equity is unchanged by the fill itself: cash down, position up.
	assertDecimal(t, snaps[0].Equity, "1000000", "snapshot equity")
	if snaps[0].OpenLots != 1 {
		t.Errorf("snapshot open lots = %d, want 1", snaps[0].OpenLots)
	}
}

func TestLedger_BuySharesRoundDown(t *testing.T) {
	l := NewLedger(dec("1000"))
	l.Apply(strategy.SignalRecord{
		Date: btDay(0), Action: strategy.ActionBuy, Reason: strategy.ReasonTrendEntry,
		Price: 33.00, Strength: 1.0,
	})

	// Commit = 100, 100/33 = 3.03 -> 3 shares, cost 99.
	lots := l.OpenLots()
	if len(lots) != 1 || lots[0].Shares != 3 {
		t.Fatalf("lots = %+v, want one lot of 3 shares", lots)
	}
	assertDecimal(t, l.Cash(), "901", "cash after")
}

func TestLedger_BuyTooSmallForOneShare(t *testing.T) {
	l := NewLedger(dec("1000"))
	l.Apply(strategy.SignalRecord{
		Date: btDay(0), Action: strategy.ActionBuy, Reason: strategy.ReasonTrendEntry,
		Price: 500.00, Strength: 1.0, // commit 100 < one share
	})

	if n := len(l.OpenLots()); n != 0 {
		t.Errorf("open lots = %d, want 0", n)
	}
	if n := len(l.Trades()); n != 0 {
		t.Errorf("trades = %d, want 0", n)
	}
	// The decision day is still recorded.
	if n := len(l.Snapshots()); n != 1 {
		t.Errorf("snapshots = %d, want 1", n)
	}
	assertDecimal(t, l.Cash(), "1000", "cash")
}

func TestLedger_CashNeverNegative(t *testing.T) {
	l := NewLedger(dec("100"))
	for i := 0; i < 10; i++ {
		l.Apply(strategy.SignalRecord{
			Date: btDay(i), Action: strategy.ActionBuy, Reason: strategy.ReasonTrendEntry,
			Price: 1.00, Strength: 1.0,
		})
		if l.Cash().IsNegative() {
			t.Fatalf("cash went negative after buy %d: %s", i, l.Cash())
		}
	}
}

func TestLedger_AddFillsJournaledAsBuys(t *testing.T) {
	l := NewLedger(dec("100000"))
	l.Apply(strategy.SignalRecord{
		Date: btDay(0), Action: strategy.ActionBuy, Reason: strategy.ReasonTrendEntry,
		Price: 10.00, Strength: 1.0,
	})
	l.Apply(strategy.SignalRecord{
		Date: btDay(1), Action: strategy.ActionAdd, Reason: strategy.ReasonPyramidAdd,
		Price: 11.00, Strength: 0.8,
	})

	if n := len(l.OpenLots()); n != 2 {
		t.Fatalf("open lots = %d, want 2", n)
	}
	trades := l.Trades()
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if trades[1].Action != strategy.ActionBuy || trades[1].Reason != strategy.ReasonPyramidAdd {
		t.Errorf("add fill journaled as %s/%s, want BUY/%s",
			trades[1].Action, trades[1].Reason, strategy.ReasonPyramidAdd)
	}
}

// ────────────────────────────────────────────────────────────
// Exits
// ────────────────────────────────────────────────────────────

func TestLedger_SellClosesAllLots(t *testing.T) {
	l := &Ledger{
		initial: dec("10000"),
		cash:    dec("10000"),
		lots: []Lot{
			{EntryDate: btDay(0), Shares: 100, EntryPrice: dec("10")},
			{EntryDate: btDay(3), Shares: 50, EntryPrice: dec("12")},
		},
	}
	l.Apply(strategy.SignalRecord{
		Date: btDay(10), Action: strategy.ActionSell, Reason: strategy.ReasonStopLoss,
		Price: 15.00, Strength: 1.0,
	})

	trades := l.Trades()
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2 (one per lot)", len(trades))
	}
	assertDecimal(t, trades[0].Profit, "500", "lot 1 profit")
	assertDecimal(t, trades[1].Profit, "150", "lot 2 profit")
	if !trades[0].EntryDate.Equal(btDay(0)) || !trades[1].EntryDate.Equal(btDay(3)) {
		t.Error("sell fills did not carry their lot entry dates")
	}

	// Proceeds: 100*15 + 50*15 = 2250.
	assertDecimal(t, l.Cash(), "12250", "cash after")
	if n := len(l.OpenLots()); n != 0 {
		t.Errorf("open lots = %d, want 0", n)
	}
}

func TestLedger_SellSkipsFutureLots(t *testing.T) {
	l := &Ledger{
		initial: dec("10000"),
		cash:    dec("10000"),
		lots: []Lot{
			{EntryDate: btDay(0), Shares: 100, EntryPrice: dec("10")},
			{EntryDate: btDay(20), Shares: 50, EntryPrice: dec("12")},
		},
	}
	l.Apply(strategy.SignalRecord{
		Date: btDay(10), Action: strategy.ActionSell, Reason: strategy.ReasonTrendReversal,
		Price: 15.00, Strength: 1.0,
	})

	if n := len(l.Trades()); n != 1 {
		t.Fatalf("trades = %d, want 1", n)
	}
	lots := l.OpenLots()
	if len(lots) != 1 || !lots[0].EntryDate.Equal(btDay(20)) {
		t.Fatalf("remaining lots = %+v, want only the later entry", lots)
	}
}

func TestLedger_SellOnEmptyBook(t *testing.T) {
	l := NewLedger(dec("5000"))
	l.Apply(strategy.SignalRecord{
		Date: btDay(0), Action: strategy.ActionSell, Reason: strategy.ReasonTrendReversal,
		Price: 15.00, Strength: 1.0,
	})

	if n := len(l.Trades()); n != 0 {
		t.Errorf("trades = %d, want 0", n)
	}
	if n := len(l.Snapshots()); n != 1 {
		t.Errorf("snapshots = %d, want 1", n)
	}
	assertDecimal(t, l.Cash(), "5000", "cash")
}

func TestLedger_HoldDaysLeaveNoTrace(t *testing.T) {
	l := NewLedger(dec("5000"))
	l.Apply(strategy.SignalRecord{Date: btDay(0), Action: strategy.ActionHold, Price: 10})
	l.Apply(strategy.SignalRecord{Date: btDay(1), Action: strategy.ActionHold, Reason: strategy.ReasonWarmup, Price: 10})

	if n := len(l.Snapshots()); n != 0 {
		t.Errorf("snapshots = %d, want 0", n)
	}
	if n := len(l.Trades()); n != 0 {
		t.Errorf("trades = %d, want 0", n)
	}
}

func TestLedger_RoundTripExact(t *testing.T) {
	// Buy then sell at the same price: cash must return exactly to start.
	l := NewLedger(dec("1000000"))
	l.Apply(strategy.SignalRecord{
		Date: btDay(0), Action: strategy.ActionBuy, Reason: strategy.ReasonTrendEntry,
		Price: 10.37, Strength: 1.0,
	})
	l.Apply(strategy.SignalRecord{
		Date: btDay(5), Action: strategy.ActionSell, Reason: strategy.ReasonTakeProfit,
		Price: 10.37, Strength: 1.0,
	})

	assertDecimal(t, l.Cash(), "1000000", "cash after round trip")
	trades := l.Trades()
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if !trades[1].Profit.IsZero() {
		t.Errorf("round-trip profit = %s, want 0", trades[1].Profit)
	}
}
