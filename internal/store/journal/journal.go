// Package journal keeps an append-only record of every sizing evaluation:
// the inputs (state, evaluation, risk, reference price) and the outcome
// (orders created, or why none were). It is the audit trail consulted when a
// position looks wrong after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Entry struct {
	ID             int64   `json:"id"`
	Symbol         string  `json:"symbol"`
	State          string  `json:"state"`
	Evaluation     float64 `json:"evaluation"`
	Risk           float64 `json:"risk"`
	ReferencePrice float64 `json:"reference_price"`
	OrderCount     int     `json:"order_count"`
	Outcome        string  `json:"outcome"`
	CreatedAt      int64   `json:"created_at"`
}

const (
	OutcomeCreated  = "created"
	OutcomeNoOp     = "no_op"
	OutcomeSkipped  = "skipped"
	OutcomeNoFunds  = "insufficient_funds"
	OutcomeNoMarket = "no_market_data"
	OutcomeError    = "error"
)

type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
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
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sizing_journal (
		    id INTEGER PRIMARY KEY AUTOINCREMENT,
		    symbol TEXT NOT NULL,
		    state TEXT NOT NULL,
		    evaluation REAL NOT NULL,
		    risk REAL NOT NULL,
		    reference_price REAL NOT NULL,
		    order_count INTEGER NOT NULL,
		    outcome TEXT NOT NULL,
		    created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sizing_journal_symbol
		    ON sizing_journal(symbol, created_at)`)
	return err
}

// Append records one sizing evaluation. CreatedAt is filled when zero.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sizing_journal
		    (symbol, state, evaluation, risk, reference_price, order_count, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Symbol, e.State, e.Evaluation, e.Risk, e.ReferencePrice, e.OrderCount, e.Outcome, e.CreatedAt)
	return err
}

// Recent returns the latest entries for a symbol, newest first. An empty
// symbol returns entries across all symbols.
func (j *Journal) Recent(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, symbol, state, evaluation, risk, reference_price, order_count, outcome, created_at
		FROM sizing_journal`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Symbol, &e.State, &e.Evaluation, &e.Risk,
			&e.ReferencePrice, &e.OrderCount, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
