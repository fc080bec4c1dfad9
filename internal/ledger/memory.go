package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process ledger used by the backtest recorder and by tests.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	rows   []Record
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, rec)
	return nil
}

func (m *Memory) Query(_ context.Context, q Query) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.rows))
	for _, rec := range m.rows {
		if q.Mode != "" && rec.Mode != q.Mode {
			continue
		}
		if q.Symbol != "" && rec.Symbol != q.Symbol {
			continue
		}
		if q.Action != "" && rec.Action != q.Action {
			continue
		}
		if !q.After.IsZero() && !rec.Timestamp.After(q.After) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			if q.Descending {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		}
		if q.Descending {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// All returns a copy of every record in insertion order.
func (m *Memory) All() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.rows))
	copy(out, m.rows)
	return out
}

func (m *Memory) Close() error { return nil }

var _ Ledger = (*Memory)(nil)
