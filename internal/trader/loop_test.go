package trader

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marlin/internal/gateway/exchange"
	"marlin/internal/ledger"
	"marlin/internal/market"
	"marlin/internal/position"
	"marlin/internal/risk"
	"marlin/internal/signal"
	"marlin/internal/types"
)

// fakeSource serves canned candles per interval.
type fakeSource struct {
	byInterval map[string][]market.Candle
}

func (f *fakeSource) FetchHistory(_ context.Context, _, interval string, _ int) ([]market.Candle, error) {
	return f.byInterval[interval], nil
}

// fakeGateway fills every order at a fixed price.
type fakeGateway struct {
	price  float64
	orders int
}

func (f *fakeGateway) Name() string                                       { return "fake" }
func (f *fakeGateway) GetPrice(_ context.Context, _ string) (float64, error) { return f.price, nil }
func (f *fakeGateway) PlaceMarketOrder(_ context.Context, _ string, _ exchange.OrderSide, qty float64) (exchange.Fill, error) {
	f.orders++
	return exchange.Fill{Price: f.price, Quantity: qty}, nil
}

// risingCandles produces a steady uptrend long enough for every indicator.
func risingCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range out {
		open := price
		price *= 1.004
		out[i] = market.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour).UnixMilli(),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour).UnixMilli(),
			Open:      open,
			High:      price * 1.001,
			Low:       open * 0.999,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

func newTestLoop(src market.Source, gw exchange.Gateway) (*Loop, *position.Machine) {
	engine := risk.NewEngine(risk.Config{FeeRate: 0.001, RiskPerTrade: 1000})
	daily := risk.NewDailyTracker(10000, 5, time.Hour)
	machine := position.NewMachine("paper", gw, engine, ledger.NewMemory(), nil, daily)
	loop := NewLoop(Config{
		Symbols: []string{"BTCUSDT"},
		Equity:  10000,
	}, src, signal.NewProvider(25), machine, daily, gw)
	return loop, machine
}

func TestScanTrendPicksDirectionalTimeframe(t *testing.T) {
	src := &fakeSource{byInterval: map[string][]market.Candle{
		"4h": risingCandles(150),
		"2h": risingCandles(150),
		"1h": risingCandles(150),
	}}
	loop, _ := newTestLoop(src, &fakeGateway{price: 100})

	trend := loop.scanTrend(context.Background(), "BTCUSDT")
	assert.True(t, trend.Known)
	assert.Equal(t, signal.BiasBull, trend.Bias)
	assert.True(t, trend.Trending)
	assert.NotEmpty(t, trend.Timeframe)
}

func TestScanTrendShortHistoryIsUnknown(t *testing.T) {
	src := &fakeSource{byInterval: map[string][]market.Candle{
		"4h": risingCandles(10),
	}}
	loop, _ := newTestLoop(src, &fakeGateway{price: 100})

	trend := loop.scanTrend(context.Background(), "BTCUSDT")
	assert.False(t, trend.Known)
	assert.Equal(t, signal.BiasNeutral, trend.Bias)
}

func TestEvaluateWithoutSignalPlacesNoOrders(t *testing.T) {
	gw := &fakeGateway{price: 100}
	// Too little history everywhere: no bias, no entry signal.
	src := &fakeSource{byInterval: map[string][]market.Candle{}}
	loop, machine := newTestLoop(src, gw)

	require.NoError(t, loop.evaluate(context.Background(), "BTCUSDT"))
	assert.Zero(t, gw.orders)
	assert.Zero(t, machine.Book().Len())
}

func TestEvaluateManagesOpenPositionThroughStop(t *testing.T) {
	gw := &fakeGateway{price: 94}
	src := &fakeSource{byInterval: map[string][]market.Candle{}}
	loop, machine := newTestLoop(src, gw)

	machine.Book().Set(&types.Position{
		Symbol: "BTCUSDT", Side: types.SideLong, EntryPrice: 100, Quantity: 5,
		StopPrice: 95, TakeProfit: 106, RiskDistance: 5, ExtremePrice: 100,
	})

	require.NoError(t, loop.evaluate(context.Background(), "BTCUSDT"))
	assert.Zero(t, machine.Book().Len())
	assert.Equal(t, 1, gw.orders)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{byInterval: map[string][]market.Candle{}}
	loop, _ := newTestLoop(src, &fakeGateway{price: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandleCommands(t *testing.T) {
	gw := &fakeGateway{price: 100}
	src := &fakeSource{byInterval: map[string][]market.Candle{}}
	loop, machine := newTestLoop(src, gw)
	ctx := context.Background()

	require.NoError(t, loop.handleCommand(ctx, "status"))
	require.NoError(t, loop.handleCommand(ctx, "close ETHUSDT"))
	require.NoError(t, loop.handleCommand(ctx, "bogus"))
	assert.ErrorIs(t, loop.handleCommand(ctx, "stop"), ErrStopRequested)

	machine.Book().Set(&types.Position{
		Symbol: "BTCUSDT", Side: types.SideLong, EntryPrice: 100, Quantity: 5,
		StopPrice: 95, TakeProfit: 106, RiskDistance: 5, ExtremePrice: 100,
	})
	require.NoError(t, loop.handleCommand(ctx, "close btcusdt"))
	assert.Zero(t, machine.Book().Len())
}

func TestRunCommandsEndsWithStream(t *testing.T) {
	src := &fakeSource{byInterval: map[string][]market.Candle{}}
	loop, _ := newTestLoop(src, &fakeGateway{price: 100})

	err := loop.RunCommands(context.Background(), strings.NewReader("status\n"))
	assert.NoError(t, err)
}
