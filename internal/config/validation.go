package config

import (
	"fmt"

	"marlin/internal/market"
)

func validate(cfg *Config) error {
	switch cfg.App.Mode {
	case ModeBacktest, ModePaper, ModeLive, "":
	default:
		return fmt.Errorf("app.mode must be one of %s|%s|%s, got %q",
			ModeBacktest, ModePaper, ModeLive, cfg.App.Mode)
	}
	if cfg.App.Mode == ModeLive {
		if cfg.Binance.APIKey == "" || cfg.Binance.APISecret == "" {
			return fmt.Errorf("live mode requires binance.api_key and binance.api_secret")
		}
	}
	if cfg.App.Mode == ModePaper || cfg.App.Mode == ModeLive {
		if len(cfg.Trading.Symbols) == 0 {
			return fmt.Errorf("trading.symbols must not be empty in %s mode", cfg.App.Mode)
		}
		for _, tf := range cfg.Trading.TrendTimeframes {
			if _, ok := market.ParseIntervalDuration(tf); !ok {
				return fmt.Errorf("trading.trend_timeframes entry %q is not a valid interval", tf)
			}
		}
		for _, tf := range cfg.Trading.EntryTimeframes {
			if _, ok := market.ParseIntervalDuration(tf); !ok {
				return fmt.Errorf("trading.entry_timeframes entry %q is not a valid interval", tf)
			}
		}
	}
	if cfg.App.Mode == ModeBacktest && cfg.Backtest.ScenarioPath == "" {
		return fmt.Errorf("backtest mode requires backtest.scenario_path")
	}
	if cfg.Risk.FeeRate < 0 || cfg.Risk.FeeRate > 0.05 {
		return fmt.Errorf("risk.fee_rate %v is outside the sane range [0, 0.05]", cfg.Risk.FeeRate)
	}
	if cfg.Trading.DailyLossPct < 0 || cfg.Trading.DailyLossPct > 100 {
		return fmt.Errorf("trading.daily_loss_pct %v is outside [0, 100]", cfg.Trading.DailyLossPct)
	}
	return nil
}
