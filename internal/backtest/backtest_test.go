package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marlin/internal/market"
	"marlin/internal/types"
)

func testScenario() Scenario {
	return Scenario{
		Name:           "test",
		Symbol:         "BTCUSDT",
		EntryInterval:  "30m",
		TrendInterval:  "4h",
		InitialBalance: 10000,
		SlippagePct:    0.0005,
		Risk: ScenarioRisk{
			FeeRate:      0.001,
			RiskPerTrade: 1000,
		},
	}
}

func makeCandles(n int, step time.Duration, next func(i int, prev float64) float64) []market.Candle {
	out := make([]market.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range out {
		open := price
		price = next(i, price)
		high, low := open, price
		if high < low {
			high, low = low, high
		}
		out[i] = market.Candle{
			OpenTime:  base.Add(time.Duration(i) * step).UnixMilli(),
			CloseTime: base.Add(time.Duration(i+1) * step).UnixMilli(),
			Open:      open,
			High:      high * 1.0002,
			Low:       low * 0.9998,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

// choppy alternates up and down one tick per bar: directional movement nets
// to zero, so ADX stays pinned near zero and no trend ever qualifies.
func choppy(n int, step time.Duration) []market.Candle {
	return makeCandles(n, step, func(i int, prev float64) float64 {
		if i%2 == 0 {
			return prev + 0.1
		}
		return prev - 0.1
	})
}

func trending(n int, step time.Duration) []market.Candle {
	return makeCandles(n, step, func(_ int, prev float64) float64 {
		return prev * 1.003
	})
}

func TestFlatMarketProducesNoTrades(t *testing.T) {
	sim := NewSimulator(testScenario())
	res, err := sim.Run(context.Background(), choppy(600, 30*time.Minute), choppy(200, 4*time.Hour))
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Zero(t, res.Stats.TotalTrades)
	assert.Zero(t, res.Stats.TotalPnL)
	require.Len(t, res.Equity, 600)
	// Balance never moves without trades.
	assert.InDelta(t, 10000.0, res.Equity[0].Value, 1e-9)
	assert.InDelta(t, 10000.0, res.Equity[len(res.Equity)-1].Value, 1e-9)
}

func TestRunIsDeterministic(t *testing.T) {
	entry := trending(600, 30*time.Minute)
	trend := trending(200, 4*time.Hour)

	first, err := NewSimulator(testScenario()).Run(context.Background(), entry, trend)
	require.NoError(t, err)
	second, err := NewSimulator(testScenario()).Run(context.Background(), entry, trend)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Equity, second.Equity)
	assert.Equal(t, first.Stats, second.Stats)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestEndOfDataClosesOpenPosition(t *testing.T) {
	entry := trending(600, 30*time.Minute)
	trend := trending(200, 4*time.Hour)

	res, err := NewSimulator(testScenario()).Run(context.Background(), entry, trend)
	require.NoError(t, err)
	// Whatever trades happened, nothing stays open past the last bar.
	for _, tr := range res.Trades {
		assert.False(t, tr.ExitTime.IsZero())
	}
	if n := len(res.Trades); n > 0 {
		last := res.Trades[n-1]
		assert.Contains(t, types.ExitReasons(), string(last.ExitReason))
	}
}

func TestComputeStats(t *testing.T) {
	trades := []types.ClosedTrade{
		{PnLAmount: 100},
		{PnLAmount: -50},
		{PnLAmount: 30},
	}
	equity := []EquityPoint{
		{Value: 10000}, {Value: 10100}, {Value: 10050}, {Value: 10080},
	}
	st := ComputeStats(trades, equity, 10000)

	assert.Equal(t, 3, st.TotalTrades)
	assert.Equal(t, 2, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 200.0/3, st.WinRatePct, 1e-9)
	assert.InDelta(t, 80.0, st.TotalPnL, 1e-9)
	assert.InDelta(t, 0.8, st.TotalReturnPct, 1e-9)
	assert.InDelta(t, 130.0/50.0, st.ProfitFactor, 1e-9)
	assert.InDelta(t, 65.0, st.AvgWin, 1e-9)
	assert.InDelta(t, -50.0, st.AvgLoss, 1e-9)
	// Peak 10100 -> trough 10050.
	assert.InDelta(t, 50.0/10100*100, st.MaxDrawdownPct, 1e-9)
}

func TestComputeStatsEmpty(t *testing.T) {
	st := ComputeStats(nil, nil, 10000)
	assert.Zero(t, st.TotalTrades)
	assert.Zero(t, st.WinRatePct)
	assert.Zero(t, st.Sharpe)
	assert.Zero(t, st.ProfitFactor)
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	raw := `
name: btc-trend
symbol: btcusdt
entry_interval: 15m
initial_balance: 5000
risk:
  sl_multiplier: 2.5
  tp_multiplier: 3.0
  fee_rate: 0.001
  risk_per_trade: 500
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", sc.Symbol)
	assert.Equal(t, "15m", sc.EntryInterval)
	assert.Equal(t, "4h", sc.TrendInterval) // default
	assert.InDelta(t, 5000.0, sc.InitialBalance, 1e-9)
	assert.InDelta(t, 20.0, sc.ADXThreshold, 1e-9) // default
	assert.InDelta(t, 500.0, sc.Risk.RiskPerTrade, 1e-9)
}

func TestLoadScenarioRequiresSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	_, err := LoadScenario(path)
	assert.Error(t, err)
}

func TestLoadScenarioValidatesIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")

	require.NoError(t, os.WriteFile(path, []byte("symbol: BTCUSDT\nentry_interval: 10x\n"), 0o644))
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_interval")

	// The trend timeframe must be coarser than the entry timeframe.
	require.NoError(t, os.WriteFile(path, []byte("symbol: BTCUSDT\nentry_interval: 4h\ntrend_interval: 30m\n"), 0o644))
	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coarser")
}

func TestResultStoreRoundTrip(t *testing.T) {
	store, err := NewResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	res := &Result{
		RunID:      "run-1",
		Scenario:   "test",
		Symbol:     "BTCUSDT",
		StartedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Trades: []types.ClosedTrade{
			{Symbol: "BTCUSDT", Side: types.SideLong, EntryPrice: 100, ExitPrice: 106, Quantity: 5, ExitReason: types.ExitTakeProfit, PnLAmount: 28.9},
		},
		Equity: []EquityPoint{{Time: time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC), Value: 10000}},
		Stats:  Stats{TotalTrades: 1, Wins: 1, WinRatePct: 100, TotalPnL: 28.9},
	}
	require.NoError(t, store.Save(ctx, res))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 1, runs[0].Stats.TotalTrades)
	assert.InDelta(t, 28.9, runs[0].Stats.TotalPnL, 1e-9)
}
