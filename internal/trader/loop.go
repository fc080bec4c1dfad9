// Package trader runs the live/paper control loop: one sequential sweep over
// the configured symbols per cycle, exits evaluated before entries, with the
// daily loss breaker gating new entries.
package trader

import (
	"context"
	"time"

	"marlin/internal/gateway/exchange"
	"marlin/internal/logger"
	"marlin/internal/market"
	"marlin/internal/position"
	"marlin/internal/risk"
	"marlin/internal/signal"
)

type Config struct {
	Symbols []string
	// TrendTimeframes are scanned slowest first; the trending one with the
	// strongest ADX sets the bias for the cycle.
	TrendTimeframes []string
	// EntryTimeframes are scanned in order; the first actionable signal wins.
	EntryTimeframes  []string
	Interval         time.Duration
	MaxOpenPositions int
	HistoryBars      int
	QuoteAsset       string
	// Equity is the sizing base used when the gateway cannot report
	// balances (paper mode).
	Equity float64
}

func (c Config) withDefaults() Config {
	if len(c.TrendTimeframes) == 0 {
		c.TrendTimeframes = []string{"4h", "2h", "1h"}
	}
	if len(c.EntryTimeframes) == 0 {
		c.EntryTimeframes = []string{"30m", "15m"}
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.MaxOpenPositions <= 0 {
		c.MaxOpenPositions = 3
	}
	if c.HistoryBars <= 0 {
		c.HistoryBars = 150
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	return c
}

// Loop drives the trading cycle. All state transitions go through the
// position machine; the loop itself only decides what to look at.
type Loop struct {
	cfg      Config
	source   market.Source
	provider *signal.Provider
	machine  *position.Machine
	daily    *risk.DailyTracker
	gateway  exchange.Gateway

	now func() time.Time
}

func NewLoop(cfg Config, source market.Source, provider *signal.Provider, machine *position.Machine, daily *risk.DailyTracker, gw exchange.Gateway) *Loop {
	return &Loop{
		cfg:      cfg.withDefaults(),
		source:   source,
		provider: provider,
		machine:  machine,
		daily:    daily,
		gateway:  gw,
		now:      time.Now,
	}
}

// Run sweeps the symbols until the context is cancelled. A failure on one
// symbol is logged and never blocks the rest of the sweep. Each cycle waits
// out the remainder of the interval, with a one second floor so a slow sweep
// cannot spin.
func (l *Loop) Run(ctx context.Context) error {
	logger.Infof("control loop started: %d symbol(s), interval %s", len(l.cfg.Symbols), l.cfg.Interval)
	defer l.machine.Flush()
	for {
		start := l.now()
		for _, symbol := range l.cfg.Symbols {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := l.evaluate(ctx, symbol); err != nil {
				logger.Errorf("[%s] cycle failed: %v", symbol, err)
			}
		}
		wait := l.cfg.Interval - l.now().Sub(start)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// trendView is the outcome of the higher-timeframe scan for one symbol.
type trendView struct {
	Bias      signal.Bias
	ADX       float64
	Timeframe string
	// Known means at least one timeframe produced a directional bias, so
	// the trend-flip exit check is meaningful this cycle.
	Known bool
	// Trending means the bias also clears the ADX threshold and may admit
	// new entries.
	Trending bool
}

// entryView is the outcome of the entry-timeframe scan.
type entryView struct {
	Action    signal.Action
	Rule      string
	Timeframe string
	ATR       float64
	Levels    signal.Levels
}

func (l *Loop) evaluate(ctx context.Context, symbol string) error {
	trend := l.scanTrend(ctx, symbol)
	entry := l.scanEntry(ctx, symbol, trend.Bias)

	if _, open := l.machine.Book().Get(symbol); open {
		price, err := l.gateway.GetPrice(ctx, symbol)
		if err != nil {
			return err
		}
		_, err = l.machine.ManageCycle(ctx, symbol, position.ManageInput{
			Price:       price,
			Bias:        trend.Bias,
			BiasKnown:   trend.Known,
			EntryAction: entry.Action,
		})
		return err
	}

	if entry.Action == signal.ActionHold {
		return nil
	}
	if !trend.Trending {
		logger.Debugf("[%s] %s signal (%s) without qualifying trend, skipped", symbol, entry.Action, entry.Rule)
		return nil
	}
	now := l.now()
	if !l.daily.AllowEntries(now) {
		logger.Warnf("[%s] entry suppressed: daily loss breaker active", symbol)
		return nil
	}
	if l.machine.Book().Len() >= l.cfg.MaxOpenPositions {
		logger.Debugf("[%s] entry skipped: %d positions already open", symbol, l.machine.Book().Len())
		return nil
	}

	equity, cash := l.balances(ctx)
	_, err := l.machine.OpenFromSignal(ctx, position.OpenInput{
		Symbol:         symbol,
		Action:         entry.Action,
		ATR:            entry.ATR,
		Levels:         entry.Levels,
		Rule:           entry.Rule,
		TrendTimeframe: trend.Timeframe,
		EntryTimeframe: entry.Timeframe,
		Equity:         equity,
		Cash:           cash,
		Filters:        l.filters(ctx, symbol),
	})
	return err
}

// scanTrend walks the trend timeframes and keeps the strongest directional
// read. Fetch failures on individual timeframes are tolerated; the scan just
// knows less.
func (l *Loop) scanTrend(ctx context.Context, symbol string) trendView {
	out := trendView{Bias: signal.BiasNeutral}
	for _, tf := range l.cfg.TrendTimeframes {
		candles, err := l.source.FetchHistory(ctx, symbol, tf, l.cfg.HistoryBars)
		if err != nil {
			logger.Warnf("[%s] trend fetch %s failed: %v", symbol, tf, err)
			continue
		}
		bias, adx := l.provider.TrendBias(candles)
		if bias == signal.BiasNeutral {
			continue
		}
		cand := trendView{Bias: bias, ADX: adx, Timeframe: tf, Known: true, Trending: l.provider.Trending(bias, adx)}
		switch {
		case !out.Known:
			out = cand
		case cand.Trending && !out.Trending:
			out = cand
		case cand.Trending == out.Trending && cand.ADX > out.ADX:
			out = cand
		}
	}
	return out
}

// scanEntry walks the entry timeframes and returns the first actionable
// signal along with the structural levels from the same timeframe.
func (l *Loop) scanEntry(ctx context.Context, symbol string, bias signal.Bias) entryView {
	out := entryView{Action: signal.ActionHold}
	for _, tf := range l.cfg.EntryTimeframes {
		candles, err := l.source.FetchHistory(ctx, symbol, tf, l.cfg.HistoryBars)
		if err != nil {
			logger.Warnf("[%s] entry fetch %s failed: %v", symbol, tf, err)
			continue
		}
		action, rule := l.provider.EntrySignal(candles, bias)
		if action == signal.ActionHold {
			continue
		}
		s := signal.ComputeSeries(candles)
		return entryView{
			Action:    action,
			Rule:      rule,
			Timeframe: tf,
			ATR:       signal.LatestATR(candles),
			Levels:    signal.DetectLevels(candles, s.ATR),
		}
	}
	return out
}

func (l *Loop) balances(ctx context.Context) (equity, cash float64) {
	if src, ok := l.gateway.(exchange.AccountSource); ok {
		free, total, err := src.AccountBalance(ctx, l.cfg.QuoteAsset)
		if err == nil {
			return total, free
		}
		logger.Warnf("account balance unavailable, using configured equity: %v", err)
	}
	return l.cfg.Equity, l.cfg.Equity
}

func (l *Loop) filters(ctx context.Context, symbol string) exchange.SymbolFilters {
	if src, ok := l.gateway.(exchange.FilterSource); ok {
		f, err := src.SymbolFilters(ctx, symbol)
		if err == nil {
			return f
		}
		logger.Warnf("[%s] symbol filters unavailable: %v", symbol, err)
	}
	return exchange.SymbolFilters{}
}
