package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"marlin/internal/ledger"
	"marlin/internal/logger"
	"marlin/internal/types"
)

// recoveryLimit caps how many recent entry records are replayed at startup.
const recoveryLimit = 50

// Config carries the risk parameters needed to synthesize missing fields on
// recovered positions.
type Config struct {
	Mode string
	// SLMultiplier and TPMultiplier recompute stop/target for records that
	// lost them; they must match the live risk configuration.
	SLMultiplier float64
	TPMultiplier float64
	// SyntheticRiskPct is the risk distance assumed when a recovered
	// position has none, as a fraction of entry price.
	SyntheticRiskPct float64
}

func (c Config) withDefaults() Config {
	if c.SLMultiplier <= 0 {
		c.SLMultiplier = 2.5
	}
	if c.TPMultiplier <= 0 {
		c.TPMultiplier = 3.0
	}
	if c.SyntheticRiskPct <= 0 {
		c.SyntheticRiskPct = 0.01
	}
	return c
}

// Manager merges the local snapshot with the ledger history into the true set
// of open positions. Reconcile is idempotent: a second run against the same
// ledger and snapshot returns the same set.
type Manager struct {
	cfg   Config
	store *Store
	led   ledger.Ledger
}

func NewManager(cfg Config, store *Store, led ledger.Ledger) *Manager {
	return &Manager{cfg: cfg.withDefaults(), store: store, led: led}
}

// Reconcile rebuilds the open set from both stores. The snapshot is the base:
// a position held there is real even when its entry record never reached the
// ledger (appends are tolerated to fail while trading). The ledger then adds
// positions whose snapshot flush was lost and removes anything it shows a
// later exit record for. The merged, repaired set is persisted back to the
// snapshot.
func (m *Manager) Reconcile(ctx context.Context) (map[string]*types.Position, error) {
	snapshot, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	entries, err := m.led.Query(ctx, ledger.Query{
		Mode:       m.cfg.Mode,
		Action:     ledger.ActionEntry,
		Descending: true,
		Limit:      recoveryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: query entries: %w", err)
	}

	open := map[string]*types.Position{}
	for sym, snap := range snapshot {
		closed, err := m.closedAfter(ctx, sym, snap.EntryTime)
		if err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		if closed {
			logger.Warnf("reconcile: snapshot position %s was closed in the ledger, dropped", sym)
			continue
		}
		m.repair(snap)
		open[sym] = snap
	}

	seen := map[string]bool{}
	for _, entry := range entries {
		// Only the latest entry per symbol matters; records arrive newest
		// first.
		if seen[entry.Symbol] {
			continue
		}
		seen[entry.Symbol] = true
		closed, err := m.closedAfter(ctx, entry.Symbol, entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		if closed {
			continue
		}
		p := positionFromEntry(entry)
		if p == nil {
			logger.Warnf("reconcile: entry record %d for %s is unusable, skipped", entry.ID, entry.Symbol)
			continue
		}
		if held, ok := open[entry.Symbol]; ok {
			if samePosition(held, p) {
				// The snapshot carries fresher trailing state for the same
				// trade; keep it.
				continue
			}
			if !entry.Timestamp.After(held.EntryTime) {
				continue
			}
			// The ledger holds a newer trade than the snapshot knew about;
			// fall through and replace.
		}
		m.repair(p)
		open[entry.Symbol] = p
	}

	if err := m.store.Save(open); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	logger.Infof("reconcile: %d open position(s) recovered (%d entries scanned)", len(open), len(entries))
	return open, nil
}

// closedAfter reports whether any record for the symbol after the given time
// closes a position: an explicit exit reason, or a legacy record carrying
// realized PnL.
func (m *Manager) closedAfter(ctx context.Context, symbol string, after time.Time) (bool, error) {
	later, err := m.led.Query(ctx, ledger.Query{
		Mode:   m.cfg.Mode,
		Symbol: symbol,
		After:  after,
	})
	if err != nil {
		return false, err
	}
	exits := map[string]bool{}
	for _, r := range types.ExitReasons() {
		exits[r] = true
	}
	for _, rec := range later {
		if exits[rec.Action] || rec.PnLAmount != 0 {
			return true, nil
		}
	}
	return false, nil
}

// positionFromEntry rebuilds a position from an ENTRY record and its details
// payload. Returns nil when the record cannot describe a live position.
func positionFromEntry(rec ledger.Record) *types.Position {
	if rec.Price <= 0 || rec.Quantity <= 0 {
		return nil
	}
	side := types.SideLong
	if rec.Side == "SELL" {
		side = types.SideShort
	}
	p := &types.Position{
		Symbol:     rec.Symbol,
		Side:       side,
		EntryPrice: rec.Price,
		Quantity:   rec.Quantity,
		EntryTime:  rec.Timestamp,
	}
	if rec.Details != "" {
		d := gjson.Parse(rec.Details)
		p.StopPrice = d.Get("stop_price").Float()
		p.TakeProfit = d.Get("take_profit").Float()
		p.TakeProfit2 = d.Get("take_profit_2").Float()
		p.RiskDistance = d.Get("risk_distance").Float()
		p.ExtremePrice = d.Get("extreme_price").Float()
		p.StopReason = d.Get("stop_reason").String()
		p.TargetReason = d.Get("target_reason").String()
		p.TrendTimeframe = d.Get("trend_tf").String()
		p.EntryTimeframe = d.Get("entry_tf").String()
	}
	return p
}

// repair fills the fields a degraded record may lack so the trading rules
// always see a complete position.
func (m *Manager) repair(p *types.Position) {
	if p.RiskDistance <= 0 {
		p.RiskDistance = p.EntryPrice * m.cfg.SyntheticRiskPct
	}
	atr := p.RiskDistance / m.cfg.SLMultiplier
	if p.StopPrice <= 0 {
		if p.Side == types.SideLong {
			p.StopPrice = p.EntryPrice - p.RiskDistance
		} else {
			p.StopPrice = p.EntryPrice + p.RiskDistance
		}
		p.StopReason = "recovered"
	}
	if p.TakeProfit <= 0 {
		if p.Side == types.SideLong {
			p.TakeProfit = p.EntryPrice + m.cfg.TPMultiplier*atr
		} else {
			p.TakeProfit = p.EntryPrice - m.cfg.TPMultiplier*atr
		}
		p.TargetReason = "recovered"
	}
	if p.ExtremePrice <= 0 {
		p.ExtremePrice = p.EntryPrice
	}
	if p.EntryTime.IsZero() {
		p.EntryTime = time.Now().UTC()
	}
}

// samePosition guards against enriching from a stale snapshot left over from
// an older trade on the same symbol.
func samePosition(snap, led *types.Position) bool {
	return snap.Side == led.Side && closeEnough(snap.EntryPrice, led.EntryPrice) && closeEnough(snap.Quantity, led.Quantity)
}

func closeEnough(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	scale := a
	if scale < 0 {
		scale = -scale
	}
	if scale < 1 {
		scale = 1
	}
	return diff/scale < 1e-6
}
