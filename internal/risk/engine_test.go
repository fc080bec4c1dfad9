package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marlin/internal/signal"
	"marlin/internal/types"
)

func defaultEngine() *Engine {
	return NewEngine(Config{
		SLMultiplier: 2.5,
		TPMultiplier: 3.0,
		RiskReward:   2.0,
		FeeRate:      0.001,
		RiskPerTrade: 1000,
	})
}

func TestLevelsATRFallback(t *testing.T) {
	e := defaultEngine()
	// No structure at all: entry 100, ATR 2 -> stop 95, target 106, risk 5.
	out := e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2})

	assert.Equal(t, "atr_fallback", out.StopRule)
	assert.Equal(t, "atr_fallback", out.TargetRule)
	assert.InDelta(t, 95.0, out.Stop, 1e-9)
	assert.InDelta(t, 106.0, out.Target, 1e-9)
	assert.InDelta(t, 5.0, out.RiskDistance, 1e-9)
	// Extended target: entry + risk * (rr + 1).
	assert.InDelta(t, 115.0, out.Target2, 1e-9)
}

func TestLevelsATRFallbackShort(t *testing.T) {
	e := defaultEngine()
	out := e.Levels(LevelInput{Entry: 100, Side: types.SideShort, ATR: 2})

	assert.InDelta(t, 105.0, out.Stop, 1e-9)
	assert.InDelta(t, 94.0, out.Target, 1e-9)
	assert.InDelta(t, 85.0, out.Target2, 1e-9)
}

func TestStopChainPriorityOrderBlockFirst(t *testing.T) {
	e := defaultEngine()
	levels := signal.Levels{
		BullOrderBlocks: []signal.Zone{{Top: 99, Bottom: 98}},
		SwingLows:       []float64{97},
		EqualLows:       []float64{96},
	}
	out := e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: levels})

	// Order block bottom 98 minus 0.2 ATR buffer.
	assert.Equal(t, "order_block", out.StopRule)
	assert.InDelta(t, 98-0.2*2, out.Stop, 1e-9)
}

func TestStopChainFallsThroughToSwingAndLiquidity(t *testing.T) {
	e := defaultEngine()

	out := e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: signal.Levels{
		SwingLows: []float64{97},
		EqualLows: []float64{96},
	}})
	assert.Equal(t, "swing", out.StopRule)
	assert.InDelta(t, 97-0.4, out.Stop, 1e-9)

	out = e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: signal.Levels{
		EqualLows: []float64{96},
	}})
	assert.Equal(t, "liquidity", out.StopRule)
	assert.InDelta(t, 96-0.3*2, out.Stop, 1e-9)
}

func TestStopChainIgnoresLevelsOnProfitSide(t *testing.T) {
	e := defaultEngine()
	// Order block above entry for a long is useless for a stop.
	out := e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: signal.Levels{
		BullOrderBlocks: []signal.Zone{{Top: 104, Bottom: 102}},
	}})
	assert.Equal(t, "atr_fallback", out.StopRule)
	assert.InDelta(t, 95.0, out.Stop, 1e-9)
}

func TestTargetChainPriority(t *testing.T) {
	e := defaultEngine()
	levels := signal.Levels{
		BearFVGs:        []signal.Zone{{Top: 111, Bottom: 110}},
		EqualHighs:      []float64{108},
		BearOrderBlocks: []signal.Zone{{Top: 113, Bottom: 112}},
		SwingHighs:      []float64{107},
	}
	out := e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: levels})
	assert.Equal(t, "fvg_fill", out.TargetRule)
	assert.InDelta(t, 110.0, out.Target, 1e-9)

	levels.BearFVGs = nil
	out = e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: levels})
	assert.Equal(t, "liquidity", out.TargetRule)
	assert.InDelta(t, 108.0, out.Target, 1e-9)

	levels.EqualHighs = nil
	out = e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: levels})
	assert.Equal(t, "order_block", out.TargetRule)
	assert.InDelta(t, 112.0, out.Target, 1e-9)

	levels.BearOrderBlocks = nil
	out = e.Levels(LevelInput{Entry: 100, Side: types.SideLong, ATR: 2, Levels: levels})
	assert.Equal(t, "swing", out.TargetRule)
	assert.InDelta(t, 107.0, out.Target, 1e-9)
}

func TestLevelsClampsInvertedStop(t *testing.T) {
	e := defaultEngine()
	// A short whose nearest structure sits below entry would invert the
	// risk; the engine re-anchors to the 1% floor.
	out := e.Levels(LevelInput{Entry: 100, Side: types.SideShort, ATR: 0, Levels: signal.Levels{}})

	assert.Equal(t, "min_distance", out.StopRule)
	assert.InDelta(t, 1.0, out.RiskDistance, 1e-9)
	assert.InDelta(t, 101.0, out.Stop, 1e-9)
}

func TestSizeBasicAllocation(t *testing.T) {
	e := defaultEngine()
	qty, notional, err := e.Size(SizeInput{Entry: 100})
	assert.NoError(t, err)
	// 1000 / (100 * 1.001)
	assert.InDelta(t, 9.99000999, qty, 1e-6)
	assert.InDelta(t, qty*100, notional, 1e-9)
}

func TestSizeRespectsCaps(t *testing.T) {
	e := NewEngine(Config{
		FeeRate:             0.001,
		PositionSizePct:     10,
		MaxPositionNotional: 400,
	})
	// 10% of 10000 = 1000, capped at 400, then capped by cash 300.
	qty, _, err := e.Size(SizeInput{Entry: 100, Equity: 10000, Cash: 300})
	assert.NoError(t, err)
	assert.InDelta(t, 300/(100*1.001), qty, 1e-9)
}

func TestSizeBelowMinNotionalSkips(t *testing.T) {
	e := NewEngine(Config{FeeRate: 0.001, RiskPerTrade: 4})
	qty, notional, err := e.Size(SizeInput{Entry: 100})
	assert.NoError(t, err)
	assert.Zero(t, qty)
	assert.Zero(t, notional)
}

func TestSizeLotRounding(t *testing.T) {
	e := defaultEngine()
	qty, _, err := e.Size(SizeInput{Entry: 100, StepSize: 0.01})
	assert.NoError(t, err)
	assert.InDelta(t, 9.99, qty, 1e-12)
}

func TestSizeRejectsBadEntry(t *testing.T) {
	e := defaultEngine()
	_, _, err := e.Size(SizeInput{Entry: 0})
	assert.Error(t, err)
}
