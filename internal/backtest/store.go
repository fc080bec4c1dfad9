package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ResultStore persists finished runs so they can be compared later.
type ResultStore struct {
	db *sql.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store: path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ResultStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			symbol TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			stats TEXT NOT NULL,
			equity TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			quantity REAL NOT NULL,
			entry_time INTEGER NOT NULL,
			exit_time INTEGER NOT NULL,
			exit_reason TEXT NOT NULL,
			pnl_amount REAL NOT NULL,
			pnl_pct REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("result store schema: %w", err)
		}
	}
	return nil
}

func (s *ResultStore) Save(ctx context.Context, res *Result) error {
	if res == nil || res.RunID == "" {
		return fmt.Errorf("result store: empty result")
	}
	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return err
	}
	equity, err := json.Marshal(res.Equity)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (run_id, scenario, symbol, started_at, finished_at, created_at, stats, equity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Scenario, res.Symbol,
		res.StartedAt.UnixMilli(), res.FinishedAt.UnixMilli(), time.Now().UnixMilli(),
		string(stats), string(equity))
	if err != nil {
		return fmt.Errorf("result store: insert run: %w", err)
	}
	for _, t := range res.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO backtest_trades (run_id, symbol, side, entry_price, exit_price, quantity,
				entry_time, exit_time, exit_reason, pnl_amount, pnl_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice, t.Quantity,
			t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(), string(t.ExitReason), t.PnLAmount, t.PnLPct)
		if err != nil {
			return fmt.Errorf("result store: insert trade: %w", err)
		}
	}
	return tx.Commit()
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID     string
	Scenario  string
	Symbol    string
	CreatedAt time.Time
	Stats     Stats
}

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, scenario, symbol, created_at, stats
		FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var createdAt int64
		var stats string
		if err := rows.Scan(&r.RunID, &r.Scenario, &r.Symbol, &createdAt, &stats); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(stats), &r.Stats); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
