package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/backtest"
	"github.com/JDkeyzl/getStocksData/internal/model"
	"github.com/JDkeyzl/getStocksData/internal/strategy"
)

// Money columns are stored as decimal strings, never as REAL, so a journaled
// run reads back exactly what the ledger computed.

// RunRecord is a row from the runs table with its JSON columns decoded.
type RunRecord struct {
	RunID       string                `json:"run_id"`
	Symbol      string                `json:"symbol"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	Bars        int                   `json:"bars"`
	Params      config.StrategyParams `json:"params"`
	Performance backtest.Performance  `json:"performance"`
}

// SaveRun journals a completed backtest: the run row plus every fill and
// snapshot, in one transaction.
func (w *Writer) SaveRun(res *backtest.Result, params config.StrategyParams) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	perfJSON, err := json.Marshal(res.Performance)
	if err != nil {
		return fmt.Errorf("marshal performance: %w", err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, symbol, started_at, duration_ms, bars, params, performance)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Symbol, res.StartedAt.UTC().Format(time.RFC3339),
		res.Duration.Milliseconds(), res.Bars, string(paramsJSON), string(perfJSON))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert run: %w", err)
	}

	tradeStmt, err := tx.Prepare(`
		INSERT INTO trades (run_id, date, action, price, shares, profit, entry_date, reason, cash_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare trades: %w", err)
	}
	defer tradeStmt.Close()

	for _, t := range res.Trades {
		entryDate := ""
		if !t.EntryDate.IsZero() {
			entryDate = t.EntryDate.Format(model.DateLayout)
		}
		_, err := tradeStmt.Exec(res.RunID, t.Date.Format(model.DateLayout), string(t.Action),
			t.Price.String(), t.Shares, t.Profit.String(), entryDate, string(t.Reason), t.CashAfter.String())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert trade: %w", err)
		}
	}

	snapStmt, err := tx.Prepare(`
		INSERT INTO snapshots (run_id, date, cash, equity, open_lots, action, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare snapshots: %w", err)
	}
	defer snapStmt.Close()

	for _, s := range res.Snapshots {
		_, err := snapStmt.Exec(res.RunID, s.Date.Format(model.DateLayout),
			s.Cash.String(), s.Equity.String(), s.OpenLots, string(s.Action), string(s.Reason))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert snapshot: %w", err)
		}
	}

	return tx.Commit()
}

// GetRuns returns the last limit runs, newest first.
func (r *Reader) GetRuns(limit int) ([]RunRecord, error) {
	rows, err := r.db.Query(`
		SELECT run_id, symbol, started_at, duration_ms, bars, params, performance
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedAt, paramsJSON, perfJSON string
		var durationMs int64
		if err := rows.Scan(&rec.RunID, &rec.Symbol, &startedAt, &durationMs, &rec.Bars, &paramsJSON, &perfJSON); err != nil {
			return nil, fmt.Errorf("sqlite scan run: %w", err)
		}
		rec.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite run started_at %q: %w", startedAt, err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
			return nil, fmt.Errorf("unmarshal run params: %w", err)
		}
		if err := json.Unmarshal([]byte(perfJSON), &rec.Performance); err != nil {
			return nil, fmt.Errorf("unmarshal run performance: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// GetTrades returns the fills of one run in execution order.
func (r *Reader) GetTrades(runID string) ([]backtest.Trade, error) {
	rows, err := r.db.Query(`
		SELECT date, action, price, shares, profit, entry_date, reason, cash_after
		FROM trades WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []backtest.Trade
	for rows.Next() {
		var t backtest.Trade
		var date, action, price, profit, entryDate, reason, cashAfter string
		if err := rows.Scan(&date, &action, &price, &t.Shares, &profit, &entryDate, &reason, &cashAfter); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		if t.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, fmt.Errorf("sqlite trade date %q: %w", date, err)
		}
		if entryDate != "" {
			if t.EntryDate, err = time.Parse(model.DateLayout, entryDate); err != nil {
				return nil, fmt.Errorf("sqlite trade entry_date %q: %w", entryDate, err)
			}
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite trade price %q: %w", price, err)
		}
		if t.Profit, err = decimal.NewFromString(profit); err != nil {
			return nil, fmt.Errorf("sqlite trade profit %q: %w", profit, err)
		}
		if t.CashAfter, err = decimal.NewFromString(cashAfter); err != nil {
			return nil, fmt.Errorf("sqlite trade cash_after %q: %w", cashAfter, err)
		}
		t.Action = strategy.Action(action)
		t.Reason = strategy.Reason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetSnapshots returns the equity curve of one run in date order.
func (r *Reader) GetSnapshots(runID string) ([]backtest.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT date, cash, equity, open_lots, action, reason
		FROM snapshots WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []backtest.Snapshot
	for rows.Next() {
		var s backtest.Snapshot
		var date, cash, equity, action, reason string
		if err := rows.Scan(&date, &cash, &equity, &s.OpenLots, &action, &reason); err != nil {
			return nil, fmt.Errorf("sqlite scan snapshot: %w", err)
		}
		if s.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, fmt.Errorf("sqlite snapshot date %q: %w", date, err)
		}
		if s.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("sqlite snapshot cash %q: %w", cash, err)
		}
		if s.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("sqlite snapshot equity %q: %w", equity, err)
		}
		s.Action = strategy.Action(action)
		s.Reason = strategy.Reason(reason)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
