// Package ledger is the append-only external trade history. Every entry,
// exit and stop revision is recorded here; reconciliation replays it after a
// restart to rebuild the true set of open positions.
package ledger

import (
	"context"
	"time"
)

// Actions beyond the exit reasons recorded by the position machinery.
const (
	ActionEntry  = "ENTRY"
	ActionUpdate = "UPDATE"
)

// Record is one append-only ledger row, keyed by (mode, symbol, timestamp).
// Action is ENTRY, UPDATE or an exit reason; Side is the order direction that
// was executed. PnL fields are zero for entries and updates.
type Record struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Side      string    `json:"side,omitempty"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	PnLPct    float64   `json:"pnl_pct"`
	PnLAmount float64   `json:"pnl_amount"`
	Rationale string    `json:"rationale,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Query filters records. Zero values mean "any"; Limit 0 means no limit.
type Query struct {
	Mode       string
	Symbol     string
	Action     string
	After      time.Time
	Limit      int
	Descending bool
}

type Ledger interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
