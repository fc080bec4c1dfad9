package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: paper
trading:
  symbols: [BTCUSDT, ETHUSDT]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModePaper, cfg.App.Mode)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, []string{"4h", "2h", "1h"}, cfg.Trading.TrendTimeframes)
	assert.Equal(t, []string{"30m", "15m"}, cfg.Trading.EntryTimeframes)
	assert.Equal(t, 60, cfg.Trading.IntervalSeconds)
	assert.Equal(t, 3, cfg.Trading.MaxOpenPositions)
	assert.InDelta(t, 2.5, cfg.Risk.SLMultiplier, 1e-9)
	assert.InDelta(t, 3.0, cfg.Risk.TPMultiplier, 1e-9)
	assert.InDelta(t, 0.001, cfg.Risk.FeeRate, 1e-9)
	assert.Equal(t, "data/trades.db", cfg.Ledger.Path)
}

func TestLoadLiveRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: live
trading:
  symbols: [BTCUSDT]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadLiveWithEnvCredentials(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "k")
	t.Setenv("BINANCE_API_SECRET", "s")
	path := writeConfig(t, `
app:
  mode: live
trading:
  symbols: [BTCUSDT]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Binance.APIKey)
	assert.Equal(t, "s", cfg.Binance.APISecret)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, "app:\n  mode: turbo\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresSymbolsForTrading(t *testing.T) {
	path := writeConfig(t, "app:\n  mode: paper\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbols")
}

func TestLoadRejectsInvalidTimeframe(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: paper
trading:
  symbols: [BTCUSDT]
  entry_timeframes: [30m, 10x]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_timeframes")
}

func TestLoadBacktestRequiresScenario(t *testing.T) {
	path := writeConfig(t, "app:\n  mode: backtest\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario_path")

	path = writeConfig(t, `
app:
  mode: backtest
backtest:
  scenario_path: configs/scenario.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "configs/scenario.yaml", cfg.Backtest.ScenarioPath)
}
