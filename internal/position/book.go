package position

import (
	"sync"

	"marlin/internal/types"
)

// Book is the in-memory set of open positions, at most one per symbol. The
// lock is held only for map access; order placement happens outside it.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*types.Position
}

func NewBook() *Book {
	return &Book{positions: make(map[string]*types.Position)}
}

func (b *Book) Get(symbol string) (*types.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[symbol]
	return p, ok
}

func (b *Book) Set(p *types.Position) {
	if p == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[p.Symbol] = p
}

func (b *Book) Remove(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.positions, symbol)
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Snapshot returns deep copies keyed by symbol, safe to persist or inspect
// while the book keeps mutating.
func (b *Book) Snapshot() map[string]*types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*types.Position, len(b.positions))
	for sym, p := range b.positions {
		out[sym] = p.Clone()
	}
	return out
}

// Replace swaps the whole book contents, used after reconciliation.
func (b *Book) Replace(positions map[string]*types.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = make(map[string]*types.Position, len(positions))
	for sym, p := range positions {
		if p != nil {
			b.positions[sym] = p.Clone()
		}
	}
}
