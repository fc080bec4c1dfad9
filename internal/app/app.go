// Package app assembles the configured run mode: backtest replay, paper
// trading against live prices, or live trading.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"marlin/internal/backtest"
	"marlin/internal/config"
	"marlin/internal/ledger"
	"marlin/internal/logger"
	"marlin/internal/market"
	"marlin/internal/position"
	"marlin/internal/reconcile"
	"marlin/internal/trader"
)

type App struct {
	cfg *config.Config

	// Trading-mode components; nil in backtest mode.
	loop    *trader.Loop
	machine *position.Machine
	manager *reconcile.Manager
	led     ledger.Ledger

	// commands is the operator command stream, stdin by default.
	commands io.Reader

	// fetch loads candle history for backtests.
	fetch market.Source
}

// New builds the application for the configured mode.
func New(cfg *config.Config) (*App, error) {
	return buildAppWithWire(context.Background(), cfg)
}

// Run blocks until the work is done (backtest) or the context is cancelled
// (trading modes).
func (a *App) Run(ctx context.Context) error {
	if a.cfg.App.Mode == config.ModeBacktest {
		return a.runBacktest(ctx)
	}
	return a.runTrading(ctx)
}

func (a *App) runTrading(ctx context.Context) error {
	defer func() {
		if a.led != nil {
			_ = a.led.Close()
		}
	}()

	open, err := a.manager.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}
	a.machine.Book().Replace(open)

	if a.cfg.Path != "" {
		if err := config.WatchLogLevel(ctx, a.cfg.Path); err != nil {
			logger.Warnf("config watch disabled: %v", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, runCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return a.loop.Run(runCtx) })
	g.Go(func() error {
		err := a.loop.RunCommands(runCtx, a.commands)
		if errors.Is(err, trader.ErrStopRequested) {
			cancel()
			return nil
		}
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Infof("%s mode stopped", a.cfg.App.Mode)
	return err
}

func (a *App) runBacktest(ctx context.Context) error {
	sc, err := backtest.LoadScenario(a.cfg.Backtest.ScenarioPath)
	if err != nil {
		return err
	}
	logger.Infof("backtest %s: %s %s/%s over %d bars", sc.Name, sc.Symbol, sc.EntryInterval, sc.TrendInterval, sc.Bars)

	entry, err := a.fetch.FetchHistory(ctx, sc.Symbol, sc.EntryInterval, sc.Bars)
	if err != nil {
		return fmt.Errorf("fetch entry candles: %w", err)
	}
	trendBars := sc.Bars
	if trendBars > 1000 {
		trendBars = 1000
	}
	trend, err := a.fetch.FetchHistory(ctx, sc.Symbol, sc.TrendInterval, trendBars)
	if err != nil {
		return fmt.Errorf("fetch trend candles: %w", err)
	}

	res, err := backtest.NewSimulator(sc).Run(ctx, entry, trend)
	if err != nil {
		return err
	}

	store, err := backtest.NewResultStore(a.cfg.Backtest.ResultsPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(ctx, res); err != nil {
		return err
	}

	st := res.Stats
	logger.Infof("backtest %s finished: run=%s trades=%d win_rate=%.1f%% pnl=%.2f (%.2f%%) max_dd=%.2f%% sharpe=%.2f pf=%.2f",
		sc.Name, res.RunID, st.TotalTrades, st.WinRatePct, st.TotalPnL, st.TotalReturnPct, st.MaxDrawdownPct, st.Sharpe, st.ProfitFactor)
	if _, err := fmt.Fprintf(os.Stdout, "run %s: %d trades, %.2f%% return, %.2f%% max drawdown\n",
		res.RunID, st.TotalTrades, st.TotalReturnPct, st.MaxDrawdownPct); err != nil {
		return err
	}
	return nil
}
