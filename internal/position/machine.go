package position

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marlin/internal/gateway/exchange"
	"marlin/internal/ledger"
	"marlin/internal/logger"
	"marlin/internal/risk"
	"marlin/internal/signal"
	"marlin/internal/types"
)

// Saver persists the open-position snapshot after every state transition.
// A nil Saver disables persistence (backtests).
type Saver interface {
	Save(positions map[string]*types.Position) error
}

// Machine drives position state transitions. Entries and exits are placed
// through the gateway; a failed exit order leaves the position open so the
// next cycle retries, and a failed entry order creates no position at all.
type Machine struct {
	mode    string
	gateway exchange.Gateway
	engine  *risk.Engine
	ledger  ledger.Ledger
	saver   Saver
	daily   *risk.DailyTracker
	book    *Book

	// now is swapped out by backtests so records carry simulated time.
	now func() time.Time
}

func NewMachine(mode string, gw exchange.Gateway, engine *risk.Engine, led ledger.Ledger, saver Saver, daily *risk.DailyTracker) *Machine {
	return &Machine{
		mode:    mode,
		gateway: gw,
		engine:  engine,
		ledger:  led,
		saver:   saver,
		daily:   daily,
		book:    NewBook(),
		now:     time.Now,
	}
}

func (m *Machine) Book() *Book { return m.book }

// SetClock overrides the wall clock for simulated runs.
func (m *Machine) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// OpenInput is everything a confirmed entry signal carries into the machine.
type OpenInput struct {
	Symbol string
	Action signal.Action
	ATR    float64
	Levels signal.Levels
	// Rule names the signal rule that fired, recorded in the ledger.
	Rule           string
	TrendTimeframe string
	EntryTimeframe string
	Equity         float64
	Cash           float64
	// Filters carries exchange lot/notional rules; the zero value skips
	// rounding and uses the engine's minimum.
	Filters exchange.SymbolFilters
}

// OpenFromSignal sizes, places and records a new position. It returns
// (nil, nil) when the entry is skipped: a position already open for the
// symbol, the signal not actionable, or the sized quantity below the exchange
// minimum. An order failure returns the error and leaves no position behind.
func (m *Machine) OpenFromSignal(ctx context.Context, in OpenInput) (*types.Position, error) {
	if in.Action != signal.ActionBuy && in.Action != signal.ActionSell {
		return nil, nil
	}
	if _, open := m.book.Get(in.Symbol); open {
		return nil, nil
	}
	side := types.SideLong
	orderSide := exchange.OrderBuy
	if in.Action == signal.ActionSell {
		side = types.SideShort
		orderSide = exchange.OrderSell
	}

	quote, err := m.gateway.GetPrice(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("open %s: quote: %w", in.Symbol, err)
	}

	levels := m.engine.Levels(risk.LevelInput{
		Entry:  quote,
		Side:   side,
		ATR:    in.ATR,
		Levels: in.Levels,
	})
	qty, notional, err := m.engine.Size(risk.SizeInput{
		Entry:    quote,
		Equity:   in.Equity,
		Cash:     in.Cash,
		StepSize: in.Filters.StepSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: sizing: %w", in.Symbol, err)
	}
	if qty <= 0 {
		logger.Infof("[%s] entry skipped: notional %.2f below minimum", in.Symbol, notional)
		return nil, nil
	}

	fill, err := m.gateway.PlaceMarketOrder(ctx, in.Symbol, orderSide, qty)
	if err != nil {
		return nil, fmt.Errorf("open %s: entry order: %w", in.Symbol, err)
	}

	now := m.now().UTC()
	p := &types.Position{
		Symbol:         in.Symbol,
		Side:           side,
		EntryPrice:     fill.Price,
		Quantity:       fill.Quantity,
		EntryTime:      now,
		StopPrice:      levels.Stop,
		TakeProfit:     levels.Target,
		TakeProfit2:    levels.Target2,
		RiskDistance:   levels.RiskDistance,
		ExtremePrice:   fill.Price,
		TrendTimeframe: in.TrendTimeframe,
		EntryTimeframe: in.EntryTimeframe,
		StopReason:     levels.StopRule,
		TargetReason:   levels.TargetRule,
	}
	m.book.Set(p)

	if err := m.appendRecord(ctx, ledger.Record{
		Timestamp: now,
		Mode:      m.mode,
		Symbol:    in.Symbol,
		Action:    ledger.ActionEntry,
		Side:      string(orderSide),
		Price:     fill.Price,
		Quantity:  fill.Quantity,
		Rationale: in.Rule,
		Details:   positionDetails(p),
	}); err != nil {
		logger.Errorf("[%s] ledger entry record failed: %v", in.Symbol, err)
	}
	m.persist()
	logger.Infof("[%s] opened %s qty=%.8f @ %.4f sl=%.4f (%s) tp=%.4f (%s)",
		in.Symbol, side, fill.Quantity, fill.Price, p.StopPrice, p.StopReason, p.TakeProfit, p.TargetReason)
	return p.Clone(), nil
}

// ManageInput is the per-cycle market view for one open position.
type ManageInput struct {
	Price float64
	// Bias is the current higher-timeframe bias; BiasKnown false means the
	// trend scan failed this cycle and the flip check is skipped.
	Bias      signal.Bias
	BiasKnown bool
	// EntryAction is the fresh entry-timeframe signal, used for the
	// reversal check.
	EntryAction signal.Action
}

// ManageCycle runs the exit checks for an open position in strict priority
// order: stop loss, take profit, signal reversal, trend flip. When no exit
// fires it applies the trailing rule and records any stop revision. Returns
// the closed trade when the position was exited this cycle.
func (m *Machine) ManageCycle(ctx context.Context, symbol string, in ManageInput) (*types.ClosedTrade, error) {
	p, ok := m.book.Get(symbol)
	if !ok {
		return nil, nil
	}
	if in.Price <= 0 {
		return nil, fmt.Errorf("manage %s: invalid price %v", symbol, in.Price)
	}

	if reason := exitReason(p, in); reason != "" {
		return m.close(ctx, p, reason, in.Price)
	}

	if m.engine.Trail(p, in.Price) {
		now := m.now().UTC()
		if err := m.appendRecord(ctx, ledger.Record{
			Timestamp: now,
			Mode:      m.mode,
			Symbol:    symbol,
			Action:    ledger.ActionUpdate,
			Price:     in.Price,
			Quantity:  p.Quantity,
			Rationale: "trailing_stop",
			Details:   positionDetails(p),
		}); err != nil {
			logger.Errorf("[%s] ledger update record failed: %v", symbol, err)
		}
		m.persist()
		logger.Infof("[%s] trailing stop -> %.4f (extreme %.4f)", symbol, p.StopPrice, p.ExtremePrice)
	}
	return nil, nil
}

// exitReason applies the prioritized exit checks; empty string means hold.
func exitReason(p *types.Position, in ManageInput) types.ExitReason {
	long := p.Side == types.SideLong
	if long && in.Price <= p.StopPrice {
		return types.ExitStopLoss
	}
	if !long && in.Price >= p.StopPrice {
		return types.ExitStopLoss
	}
	if p.TakeProfit > 0 {
		if long && in.Price >= p.TakeProfit {
			return types.ExitTakeProfit
		}
		if !long && in.Price <= p.TakeProfit {
			return types.ExitTakeProfit
		}
	}
	if (long && in.EntryAction == signal.ActionSell) || (!long && in.EntryAction == signal.ActionBuy) {
		return types.ExitSignalReversal
	}
	if in.BiasKnown && in.Bias.Opposes(long) {
		return types.ExitTrendFlip
	}
	return ""
}

// Close exits a position outside the normal cycle (operator command or end of
// a backtest). Missing position is not an error.
func (m *Machine) Close(ctx context.Context, symbol string, reason types.ExitReason) (*types.ClosedTrade, error) {
	p, ok := m.book.Get(symbol)
	if !ok {
		return nil, nil
	}
	price, err := m.gateway.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("close %s: quote: %w", symbol, err)
	}
	return m.close(ctx, p, reason, price)
}

// close places the exit order and finalizes the trade. If the order fails the
// position stays in the book untouched and the caller sees the error; the
// next cycle re-evaluates and retries.
func (m *Machine) close(ctx context.Context, p *types.Position, reason types.ExitReason, price float64) (*types.ClosedTrade, error) {
	orderSide := exchange.OrderSell
	if p.Side == types.SideShort {
		orderSide = exchange.OrderBuy
	}
	fill, err := m.gateway.PlaceMarketOrder(ctx, p.Symbol, orderSide, p.Quantity)
	if err != nil {
		logger.Warnf("[%s] exit order failed (%s), position stays open: %v", p.Symbol, reason, err)
		return nil, fmt.Errorf("close %s: exit order: %w", p.Symbol, err)
	}

	now := m.now().UTC()
	amount, pct := NetPnL(p.Side, p.EntryPrice, fill.Price, p.Quantity, m.engine.Config().FeeRate)
	trade := &types.ClosedTrade{
		Symbol:         p.Symbol,
		Side:           p.Side,
		EntryPrice:     p.EntryPrice,
		ExitPrice:      fill.Price,
		Quantity:       p.Quantity,
		EntryTime:      p.EntryTime,
		ExitTime:       now,
		ExitReason:     reason,
		PnLAmount:      amount,
		PnLPct:         pct,
		TrendTimeframe: p.TrendTimeframe,
		EntryTimeframe: p.EntryTimeframe,
	}
	m.book.Remove(p.Symbol)

	if err := m.appendRecord(ctx, ledger.Record{
		Timestamp: now,
		Mode:      m.mode,
		Symbol:    p.Symbol,
		Action:    string(reason),
		Side:      string(orderSide),
		Price:     fill.Price,
		Quantity:  p.Quantity,
		PnLPct:    pct,
		PnLAmount: amount,
		Details:   positionDetails(p),
	}); err != nil {
		logger.Errorf("[%s] ledger exit record failed: %v", p.Symbol, err)
	}
	m.persist()
	if m.daily != nil {
		m.daily.RecordPnL(now, amount)
	}
	logger.Infof("[%s] closed %s (%s) @ %.4f pnl=%.4f (%.2f%%)",
		p.Symbol, p.Side, reason, fill.Price, amount, pct)
	return trade, nil
}

// Flush persists the current book, used on shutdown.
func (m *Machine) Flush() {
	m.persist()
}

func (m *Machine) appendRecord(ctx context.Context, rec ledger.Record) error {
	if m.ledger == nil {
		return nil
	}
	return m.ledger.Append(ctx, rec)
}

func (m *Machine) persist() {
	if m.saver == nil {
		return
	}
	if err := m.saver.Save(m.book.Snapshot()); err != nil {
		logger.Errorf("position snapshot persist failed: %v", err)
	}
}

// positionDetails serializes the risk levels for the ledger details column.
func positionDetails(p *types.Position) string {
	raw, err := json.Marshal(map[string]any{
		"stop_price":    p.StopPrice,
		"take_profit":   p.TakeProfit,
		"take_profit_2": p.TakeProfit2,
		"risk_distance": p.RiskDistance,
		"extreme_price": p.ExtremePrice,
		"stop_reason":   p.StopReason,
		"target_reason": p.TargetReason,
		"trend_tf":      p.TrendTimeframe,
		"entry_tf":      p.EntryTimeframe,
	})
	if err != nil {
		return ""
	}
	return string(raw)
}
