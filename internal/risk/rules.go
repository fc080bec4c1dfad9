package risk

import (
	"marlin/internal/signal"
	"marlin/internal/types"
)

// Stop and target selection are ordered rule chains: each rule either
// produces a price or passes. First applicable rule wins. Keeping them as
// named entries makes the priority order auditable and each rule testable on
// its own.

const (
	// Buffers beyond a structural level, in ATR units.
	structureBufferATR = 0.2
	liquidityBufferATR = 0.3
	// Fallback risk distance when a stop would sit on the wrong side of
	// entry, as a fraction of entry price.
	fallbackRiskPct = 0.01
	// Floor so a computed stop can never go to zero or below.
	minStopPrice = 0.0001
	// How many recent levels of each kind are considered.
	recentStops   = 5
	recentTargets = 3
)

type StopRule struct {
	Name  string
	Apply func(in LevelInput) (float64, bool)
}

type TargetRule struct {
	Name  string
	Apply func(in LevelInput) (float64, bool)
}

func stopChain(atrMult float64) []StopRule {
	return []StopRule{
		{Name: "order_block", Apply: stopFromOrderBlock},
		{Name: "swing", Apply: stopFromSwing},
		{Name: "liquidity", Apply: stopFromLiquidity},
		{Name: "atr_fallback", Apply: func(in LevelInput) (float64, bool) {
			if in.Side == types.SideLong {
				return in.Entry - atrMult*in.ATR, true
			}
			return in.Entry + atrMult*in.ATR, true
		}},
	}
}

// stopFromOrderBlock places the stop beyond the most recent same-direction
// order block, if that block sits on the loss side of entry.
func stopFromOrderBlock(in LevelInput) (float64, bool) {
	if in.Side == types.SideLong {
		zones := lastZones(in.Levels.BullOrderBlocks, recentStops)
		for i := len(zones) - 1; i >= 0; i-- {
			if zones[i].Bottom < in.Entry {
				return zones[i].Bottom - structureBufferATR*in.ATR, true
			}
		}
		return 0, false
	}
	zones := lastZones(in.Levels.BearOrderBlocks, recentStops)
	for i := len(zones) - 1; i >= 0; i-- {
		if zones[i].Top > in.Entry {
			return zones[i].Top + structureBufferATR*in.ATR, true
		}
	}
	return 0, false
}

// stopFromSwing places the stop beyond the most recent swing extreme on the
// loss side.
func stopFromSwing(in LevelInput) (float64, bool) {
	if in.Side == types.SideLong {
		lows := lastLevels(in.Levels.SwingLows, recentStops)
		for i := len(lows) - 1; i >= 0; i-- {
			if lows[i] < in.Entry {
				return lows[i] - structureBufferATR*in.ATR, true
			}
		}
		return 0, false
	}
	highs := lastLevels(in.Levels.SwingHighs, recentStops)
	for i := len(highs) - 1; i >= 0; i-- {
		if highs[i] > in.Entry {
			return highs[i] + structureBufferATR*in.ATR, true
		}
	}
	return 0, false
}

// stopFromLiquidity places the stop beyond the nearest clustered-liquidity
// level on the loss side, with a wider buffer since these levels get swept.
func stopFromLiquidity(in LevelInput) (float64, bool) {
	if in.Side == types.SideLong {
		lows := lastLevels(in.Levels.EqualLows, recentStops)
		for i := len(lows) - 1; i >= 0; i-- {
			if lows[i] < in.Entry {
				return lows[i] - liquidityBufferATR*in.ATR, true
			}
		}
		return 0, false
	}
	highs := lastLevels(in.Levels.EqualHighs, recentStops)
	for i := len(highs) - 1; i >= 0; i-- {
		if highs[i] > in.Entry {
			return highs[i] + liquidityBufferATR*in.ATR, true
		}
	}
	return 0, false
}

func targetChain(atrMult float64) []TargetRule {
	return []TargetRule{
		{Name: "fvg_fill", Apply: targetFromFVG},
		{Name: "liquidity", Apply: targetFromLiquidity},
		{Name: "order_block", Apply: targetFromOrderBlock},
		{Name: "swing", Apply: targetFromSwing},
		{Name: "atr_fallback", Apply: func(in LevelInput) (float64, bool) {
			if in.Side == types.SideLong {
				return in.Entry + atrMult*in.ATR, true
			}
			return in.Entry - atrMult*in.ATR, true
		}},
	}
}

// targetFromFVG aims at an opposing imbalance likely to be filled.
func targetFromFVG(in LevelInput) (float64, bool) {
	if in.Side == types.SideLong {
		for _, z := range lastZones(in.Levels.BearFVGs, recentTargets) {
			if z.Bottom > in.Entry {
				return z.Bottom, true
			}
		}
		return 0, false
	}
	for _, z := range lastZones(in.Levels.BullFVGs, recentTargets) {
		if z.Top < in.Entry {
			return z.Top, true
		}
	}
	return 0, false
}

// targetFromLiquidity aims at clustered highs/lows where resting stops sit.
func targetFromLiquidity(in LevelInput) (float64, bool) {
	if in.Side == types.SideLong {
		for _, lvl := range lastLevels(in.Levels.EqualHighs, recentTargets) {
			if lvl > in.Entry {
				return lvl, true
			}
		}
		return 0, false
	}
	for _, lvl := range lastLevels(in.Levels.EqualLows, recentTargets) {
		if lvl < in.Entry {
			return lvl, true
		}
	}
	return 0, false
}

// targetFromOrderBlock aims at the near edge of an opposing order block.
func targetFromOrderBlock(in LevelInput) (float64, bool) {
	if in.Side == types.SideLong {
		for _, z := range lastZones(in.Levels.BearOrderBlocks, recentTargets) {
			if z.Bottom > in.Entry {
				return z.Bottom, true
			}
		}
		return 0, false
	}
	for _, z := range lastZones(in.Levels.BullOrderBlocks, recentTargets) {
		if z.Top < in.Entry {
			return z.Top, true
		}
	}
	return 0, false
}

func targetFromSwing(in LevelInput) (float64, bool) {
	if in.Side == types.SideLong {
		for _, lvl := range lastLevels(in.Levels.SwingHighs, recentTargets) {
			if lvl > in.Entry {
				return lvl, true
			}
		}
		return 0, false
	}
	for _, lvl := range lastLevels(in.Levels.SwingLows, recentTargets) {
		if lvl < in.Entry {
			return lvl, true
		}
	}
	return 0, false
}

func lastZones(zones []signal.Zone, n int) []signal.Zone {
	if len(zones) <= n {
		return zones
	}
	return zones[len(zones)-n:]
}

func lastLevels(levels []float64, n int) []float64 {
	if len(levels) <= n {
		return levels
	}
	return levels[len(levels)-n:]
}
