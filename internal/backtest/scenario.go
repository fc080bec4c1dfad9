// Package backtest replays historical candles through the same position and
// risk machinery the live loop uses, then summarizes the equity curve.
package backtest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"marlin/internal/market"
	"marlin/internal/risk"
)

// Scenario is one backtest configuration, usually loaded from a YAML file.
type Scenario struct {
	Name          string `yaml:"name"`
	Symbol        string `yaml:"symbol"`
	EntryInterval string `yaml:"entry_interval"`
	TrendInterval string `yaml:"trend_interval"`
	// Bars caps how much entry-timeframe history is replayed.
	Bars           int     `yaml:"bars"`
	InitialBalance float64 `yaml:"initial_balance"`
	// SlippagePct is applied against the trade on every simulated fill.
	SlippagePct float64 `yaml:"slippage_pct"`
	// ADXThreshold below the live default keeps backtests from starving on
	// thin trend samples.
	ADXThreshold float64 `yaml:"adx_threshold"`

	Risk ScenarioRisk `yaml:"risk"`
}

type ScenarioRisk struct {
	SLMultiplier        float64 `yaml:"sl_multiplier"`
	TPMultiplier        float64 `yaml:"tp_multiplier"`
	RiskReward          float64 `yaml:"risk_reward"`
	FeeRate             float64 `yaml:"fee_rate"`
	RiskPerTrade        float64 `yaml:"risk_per_trade"`
	PositionSizePct     float64 `yaml:"position_size_pct"`
	MaxPositionNotional float64 `yaml:"max_position_notional"`
}

func (s Scenario) withDefaults() Scenario {
	if s.Name == "" {
		s.Name = strings.ToLower(s.Symbol)
	}
	if s.EntryInterval == "" {
		s.EntryInterval = "30m"
	}
	if s.TrendInterval == "" {
		s.TrendInterval = "4h"
	}
	if s.Bars <= 0 {
		s.Bars = 1000
	}
	if s.InitialBalance <= 0 {
		s.InitialBalance = 10000
	}
	if s.SlippagePct < 0 {
		s.SlippagePct = 0
	}
	if s.ADXThreshold <= 0 {
		s.ADXThreshold = 20
	}
	if s.Risk.RiskPerTrade <= 0 && s.Risk.PositionSizePct <= 0 {
		s.Risk.PositionSizePct = 10
	}
	return s
}

// RiskConfig maps the scenario risk block onto the engine configuration.
func (s Scenario) RiskConfig() risk.Config {
	return risk.Config{
		SLMultiplier:        s.Risk.SLMultiplier,
		TPMultiplier:        s.Risk.TPMultiplier,
		RiskReward:          s.Risk.RiskReward,
		FeeRate:             s.Risk.FeeRate,
		RiskPerTrade:        s.Risk.RiskPerTrade,
		PositionSizePct:     s.Risk.PositionSizePct,
		MaxPositionNotional: s.Risk.MaxPositionNotional,
	}
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	if s.Symbol == "" {
		return Scenario{}, fmt.Errorf("scenario %s: symbol is required", path)
	}
	s = s.withDefaults()

	entryDur, ok := market.ParseIntervalDuration(s.EntryInterval)
	if !ok {
		return Scenario{}, fmt.Errorf("scenario %s: invalid entry_interval %q", path, s.EntryInterval)
	}
	trendDur, ok := market.ParseIntervalDuration(s.TrendInterval)
	if !ok {
		return Scenario{}, fmt.Errorf("scenario %s: invalid trend_interval %q", path, s.TrendInterval)
	}
	if trendDur <= entryDur {
		return Scenario{}, fmt.Errorf("scenario %s: trend_interval %s must be coarser than entry_interval %s",
			path, s.TrendInterval, s.EntryInterval)
	}
	return s, nil
}
