package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"marlin/internal/config"
	"marlin/internal/gateway/binance"
	"marlin/internal/gateway/exchange"
	"marlin/internal/ledger"
	"marlin/internal/logger"
	"marlin/internal/position"
	"marlin/internal/reconcile"
	"marlin/internal/risk"
	"marlin/internal/signal"
	"marlin/internal/trader"
)

type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	bn := binance.New(binance.Config{
		APIKey:         cfg.Binance.APIKey,
		APISecret:      cfg.Binance.APISecret,
		Testnet:        cfg.Binance.Testnet,
		HTTPTimeout:    time.Duration(cfg.Binance.TimeoutSeconds) * time.Second,
		RequestsPerSec: cfg.Binance.RequestsPerSec,
	})

	app := &App{cfg: cfg, commands: os.Stdin, fetch: bn}
	if cfg.App.Mode == config.ModeBacktest {
		return app, nil
	}

	gw, err := b.orderGateway(bn)
	if err != nil {
		return nil, err
	}

	led, err := ledger.NewGormLedger(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open trade ledger: %w", err)
	}
	snapshots, err := reconcile.NewStore(cfg.App.SnapshotPath)
	if err != nil {
		_ = led.Close()
		return nil, err
	}

	engine := risk.NewEngine(risk.Config{
		SLMultiplier:        cfg.Risk.SLMultiplier,
		TPMultiplier:        cfg.Risk.TPMultiplier,
		RiskReward:          cfg.Risk.RiskReward,
		FeeRate:             cfg.Risk.FeeRate,
		RiskPerTrade:        cfg.Risk.RiskPerTrade,
		PositionSizePct:     cfg.Risk.PositionSizePct,
		MaxPositionNotional: cfg.Risk.MaxPositionNotional,
	})
	daily := risk.NewDailyTracker(
		b.dayStartEquity(ctx, bn),
		cfg.Trading.DailyLossPct,
		time.Duration(cfg.Trading.CooldownMinutes)*time.Minute,
	)

	machine := position.NewMachine(cfg.App.Mode, gw, engine, led, snapshots, daily)
	manager := reconcile.NewManager(reconcile.Config{
		Mode:         cfg.App.Mode,
		SLMultiplier: cfg.Risk.SLMultiplier,
		TPMultiplier: cfg.Risk.TPMultiplier,
	}, snapshots, led)

	loop := trader.NewLoop(trader.Config{
		Symbols:          cfg.Trading.Symbols,
		TrendTimeframes:  cfg.Trading.TrendTimeframes,
		EntryTimeframes:  cfg.Trading.EntryTimeframes,
		Interval:         time.Duration(cfg.Trading.IntervalSeconds) * time.Second,
		MaxOpenPositions: cfg.Trading.MaxOpenPositions,
		HistoryBars:      cfg.Trading.HistoryBars,
		QuoteAsset:       cfg.Trading.QuoteAsset,
		Equity:           cfg.Trading.Equity,
	}, bn, signal.NewProvider(0), machine, daily, gw)

	app.loop = loop
	app.machine = machine
	app.manager = manager
	app.led = led
	return app, nil
}

// orderGateway picks the order surface for the mode: live orders go to the
// exchange, paper mode fills at real prices without sending anything.
func (b *AppBuilder) orderGateway(bn *binance.Gateway) (exchange.Gateway, error) {
	if b.cfg.App.Mode == config.ModeLive {
		return bn, nil
	}
	return exchange.NewPaper(bn, "paper")
}

// dayStartEquity seeds the daily loss breaker from the real account balance
// when available, otherwise from the configured equity.
func (b *AppBuilder) dayStartEquity(ctx context.Context, bn *binance.Gateway) float64 {
	if b.cfg.App.Mode != config.ModeLive {
		return b.cfg.Trading.Equity
	}
	_, total, err := bn.AccountBalance(ctx, b.cfg.Trading.QuoteAsset)
	if err != nil || total <= 0 {
		logger.Warnf("day-start equity unavailable from exchange, using configured %v: %v", b.cfg.Trading.Equity, err)
		return b.cfg.Trading.Equity
	}
	return total
}
