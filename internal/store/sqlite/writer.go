// Package sqlite persists daily bars and backtest results. One writer per
// database file; WAL mode keeps concurrent readers cheap.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JDkeyzl/getStocksData/internal/metrics"
	"github.com/JDkeyzl/getStocksData/internal/model"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Writer owns the single write connection.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens (or creates) the database with WAL mode and the bar schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol  TEXT NOT NULL,
			date    TEXT NOT NULL,
			open    REAL NOT NULL,
			high    REAL NOT NULL,
			low     REAL NOT NULL,
			close   REAL NOT NULL,
			volume  REAL NOT NULL,
			PRIMARY KEY (symbol, date)
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			symbol       TEXT NOT NULL,
			started_at   DATETIME NOT NULL,
			duration_ms  INTEGER NOT NULL,
			bars         INTEGER NOT NULL,
			params       TEXT NOT NULL,
			performance  TEXT NOT NULL,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			date        TEXT NOT NULL,
			action      TEXT NOT NULL,
			price       TEXT NOT NULL,
			shares      INTEGER NOT NULL,
			profit      TEXT NOT NULL,
			entry_date  TEXT,
			reason      TEXT NOT NULL,
			cash_after  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);

		CREATE TABLE IF NOT EXISTS snapshots (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			date      TEXT NOT NULL,
			cash      TEXT NOT NULL,
			equity    TEXT NOT NULL,
			open_lots INTEGER NOT NULL,
			action    TEXT NOT NULL,
			reason    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id);
	`)
	return err
}

// UpsertBars writes a bar slice in one transaction. Re-fetched days replace
// the stored row, so incremental updates are idempotent.
func (w *Writer) UpsertBars(symbol string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, b.DateString(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s: %w", b.DateString(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}

	metrics.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	log.Printf("[sqlite] committed %d bars for %s in %v", len(bars), symbol, time.Since(start))
	return nil
}

// LastBarDate returns the latest stored bar date for a symbol, or the zero
// time when none exist. Used to resume incremental fetches.
func (w *Writer) LastBarDate(symbol string) (time.Time, error) {
	var date sql.NullString
	err := w.db.QueryRow(
		`SELECT MAX(date) FROM daily_bars WHERE symbol = ?`, symbol,
	).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite last bar date: %w", err)
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, date.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite last bar date %q: %w", date.String, err)
	}
	return t, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
