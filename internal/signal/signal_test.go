package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marlin/internal/market"
)

func series(n int, next func(i int, prev float64) float64) []market.Candle {
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
			OpenTime:  base.Add(time.Duration(i) * time.Hour).UnixMilli(),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour).UnixMilli(),
			Open:      open,
			High:      high * 1.001,
			Low:       low * 0.999,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

func TestTrendBiasBull(t *testing.T) {
	p := NewProvider(25)
	candles := series(150, func(_ int, prev float64) float64 { return prev * 1.004 })
	bias, adx := p.TrendBias(candles)
	assert.Equal(t, BiasBull, bias)
	assert.Greater(t, adx, 25.0)
}

func TestTrendBiasBear(t *testing.T) {
	p := NewProvider(25)
	candles := series(150, func(_ int, prev float64) float64 { return prev * 0.996 })
	bias, adx := p.TrendBias(candles)
	assert.Equal(t, BiasBear, bias)
	assert.Greater(t, adx, 25.0)
}

func TestTrendBiasShortHistoryIsNeutral(t *testing.T) {
	p := NewProvider(25)
	candles := series(50, func(_ int, prev float64) float64 { return prev * 1.004 })
	bias, adx := p.TrendBias(candles)
	assert.Equal(t, BiasNeutral, bias)
	assert.Zero(t, adx)
}

func TestTrending(t *testing.T) {
	p := NewProvider(25)
	assert.True(t, p.Trending(BiasBull, 30))
	assert.False(t, p.Trending(BiasBull, 20))
	assert.False(t, p.Trending(BiasNeutral, 40))
}

func TestBiasOpposes(t *testing.T) {
	assert.True(t, BiasBear.Opposes(true))
	assert.False(t, BiasBull.Opposes(true))
	assert.True(t, BiasBull.Opposes(false))
	assert.False(t, BiasNeutral.Opposes(true))
	assert.False(t, BiasNeutral.Opposes(false))
}

func TestEntrySignalInsufficientData(t *testing.T) {
	p := NewProvider(25)
	candles := series(10, func(_ int, prev float64) float64 { return prev * 1.01 })
	action, rule := p.EntrySignal(candles, BiasBull)
	assert.Equal(t, ActionHold, action)
	assert.Equal(t, "insufficient_data", rule)
}

func TestEntrySignalNeutralBiasHolds(t *testing.T) {
	p := NewProvider(25)
	candles := series(100, func(_ int, prev float64) float64 { return prev * 1.01 })
	action, _ := p.EntrySignal(candles, BiasNeutral)
	assert.Equal(t, ActionHold, action)
}

func TestEntryAtRespectsBounds(t *testing.T) {
	candles := series(100, func(_ int, prev float64) float64 { return prev * 1.002 })
	s := ComputeSeries(candles)

	action, rule := EntryAt(s, candles, 5, BiasBull)
	assert.Equal(t, ActionHold, action)
	assert.Equal(t, "insufficient_data", rule)

	action, _ = EntryAt(s, candles, len(candles), BiasBull)
	assert.Equal(t, ActionHold, action)
}

func TestComputeSeriesAlignment(t *testing.T) {
	candles := series(120, func(_ int, prev float64) float64 { return prev * 1.002 })
	s := ComputeSeries(candles)
	assert.Len(t, s.EMAFast, 120)
	assert.Len(t, s.EMATrend, 120)
	assert.Len(t, s.MACD, 120)
	assert.Len(t, s.RSI, 120)
	assert.Len(t, s.ATR, 120)
	assert.Len(t, s.ADX, 120)
	// Warmed-up tail values are populated.
	assert.Greater(t, s.EMATrend[119], 0.0)
	assert.Greater(t, s.ATR[119], 0.0)
}

func TestLatestATRFallback(t *testing.T) {
	candles := series(5, func(_ int, prev float64) float64 { return prev })
	atr := LatestATR(candles)
	assert.InDelta(t, candles[4].Close*0.01, atr, 1e-9)

	assert.Zero(t, LatestATR(nil))
}
