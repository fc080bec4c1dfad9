package signal

import (
	"marlin/internal/market"
)

// Structure detection: swing points, order blocks, fair value gaps and
// clustered liquidity levels. These feed the stop/target selection chain in
// internal/risk. All slices are in chronological order, so the most recent
// level is the last element.

const (
	swingLookback      = 5
	obImpulseATR       = 1.5
	fvgMinGapATR       = 0.3
	liquidityLookback  = 20
	liquidityTolerance = 0.1 // percent of price
)

type Zone struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

type Levels struct {
	SwingHighs      []float64
	SwingLows       []float64
	BullOrderBlocks []Zone
	BearOrderBlocks []Zone
	BullFVGs        []Zone
	BearFVGs        []Zone
	EqualHighs      []float64
	EqualLows       []float64
}

// DetectLevels runs all structure detectors over the candles. The atr series
// must be aligned with the candles; zero entries fall back to the bar range.
func DetectLevels(candles []market.Candle, atr []float64) Levels {
	var lv Levels
	lv.SwingHighs, lv.SwingLows = swingPoints(candles)
	lv.BullOrderBlocks, lv.BearOrderBlocks = orderBlocks(candles, atr)
	lv.BullFVGs, lv.BearFVGs = fvgZones(candles, atr)
	lv.EqualHighs, lv.EqualLows = liquidityLevels(candles)
	return lv
}

// swingPoints finds bars whose high (low) is the extreme of the surrounding
// window on both sides.
func swingPoints(candles []market.Candle) (highs, lows []float64) {
	for i := swingLookback; i < len(candles)-swingLookback; i++ {
		isHigh, isLow := true, true
		for j := i - swingLookback; j <= i+swingLookback; j++ {
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, candles[i].High)
		}
		if isLow {
			lows = append(lows, candles[i].Low)
		}
	}
	return highs, lows
}

func barATR(candles []market.Candle, atr []float64, i int) float64 {
	if i < len(atr) && atr[i] > 0 {
		return atr[i]
	}
	return candles[i].High - candles[i].Low
}

// orderBlocks marks the last opposing candle before an impulsive move. A
// bullish order block is the bearish candle preceding a strong up candle.
func orderBlocks(candles []market.Candle, atr []float64) (bull, bear []Zone) {
	for i := 3; i < len(candles); i++ {
		currBody := candles[i].Close - candles[i].Open
		prevBody := candles[i-1].Close - candles[i-1].Open
		a := barATR(candles, atr, i)
		if a <= 0 {
			continue
		}
		top := max64(candles[i-1].Open, candles[i-1].Close)
		bottom := min64(candles[i-1].Open, candles[i-1].Close)
		if currBody > obImpulseATR*a && prevBody < 0 {
			bull = append(bull, Zone{Top: top, Bottom: bottom})
		}
		if currBody < -obImpulseATR*a && prevBody > 0 {
			bear = append(bear, Zone{Top: top, Bottom: bottom})
		}
	}
	return bull, bear
}

// fvgZones finds price gaps between non-adjacent bars. A bullish FVG is a gap
// between bar i-2's high and bar i's low.
func fvgZones(candles []market.Candle, atr []float64) (bull, bear []Zone) {
	for i := 2; i < len(candles); i++ {
		minGap := fvgMinGapATR * barATR(candles, atr, i)
		high0, low0 := candles[i-2].High, candles[i-2].Low
		high2, low2 := candles[i].High, candles[i].Low
		if low2 > high0 && low2-high0 > minGap {
			bull = append(bull, Zone{Top: low2, Bottom: high0})
		}
		if high2 < low0 && low0-high2 > minGap {
			bear = append(bear, Zone{Top: low0, Bottom: high2})
		}
	}
	return bull, bear
}

// liquidityLevels finds equal highs/lows: a level touched by at least two
// prior extremes within tolerance, where resting stops cluster.
func liquidityLevels(candles []market.Candle) (eqHighs, eqLows []float64) {
	for i := liquidityLookback; i < len(candles); i++ {
		high, low := candles[i].High, candles[i].Low
		tol := high * (liquidityTolerance / 100)
		highCount, lowCount := 0, 0
		for j := i - liquidityLookback; j < i; j++ {
			if candles[j].High >= high-tol && candles[j].High <= high+tol {
				highCount++
			}
			if candles[j].Low >= low-tol && candles[j].Low <= low+tol {
				lowCount++
			}
		}
		if highCount >= 2 {
			eqHighs = append(eqHighs, high)
		}
		if lowCount >= 2 {
			eqLows = append(eqLows, low)
		}
	}
	return eqHighs, eqLows
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
