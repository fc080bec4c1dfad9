package signal

import (
	"github.com/markcheno/go-talib"

	"marlin/internal/market"
)

const (
	emaFastPeriod  = 50
	emaTrendPeriod = 100
	rsiPeriod      = 14
	atrPeriod      = 14
	adxPeriod      = 14
	volEMAPeriod   = 20
	macdFast       = 12
	macdSlow       = 26
	macdSignalLen  = 9
)

// minEntryBars is the minimum history needed before entry evaluation: the
// MACD signal line must be warmed up and crossover checks look two bars back.
const minEntryBars = macdSlow + macdSignalLen + 2

// Series holds the indicator series aligned 1:1 with the input candles.
// go-talib leaves zeros in the warm-up region of each output.
type Series struct {
	EMAFast  []float64
	EMATrend []float64
	MACD     []float64
	MACDSig  []float64
	RSI      []float64
	ATR      []float64
	ADX      []float64
	VolEMA   []float64
}

// ComputeSeries computes the standard indicator stack over the candles.
func ComputeSeries(candles []market.Candle) Series {
	highs, lows, closes := market.HLC(candles)
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}
	var s Series
	if len(closes) == 0 {
		return s
	}
	s.EMAFast = safeEMA(closes, emaFastPeriod)
	s.EMATrend = safeEMA(closes, emaTrendPeriod)
	if len(closes) > macdSlow+macdSignalLen {
		s.MACD, s.MACDSig, _ = talib.Macd(closes, macdFast, macdSlow, macdSignalLen)
	} else {
		s.MACD = make([]float64, len(closes))
		s.MACDSig = make([]float64, len(closes))
	}
	if len(closes) > rsiPeriod {
		s.RSI = talib.Rsi(closes, rsiPeriod)
	} else {
		s.RSI = make([]float64, len(closes))
	}
	if len(closes) > atrPeriod {
		s.ATR = talib.Atr(highs, lows, closes, atrPeriod)
	} else {
		s.ATR = make([]float64, len(closes))
	}
	if len(closes) > 2*adxPeriod {
		s.ADX = talib.Adx(highs, lows, closes, adxPeriod)
	} else {
		s.ADX = make([]float64, len(closes))
	}
	s.VolEMA = safeEMA(volumes, volEMAPeriod)
	return s
}

func safeEMA(values []float64, period int) []float64 {
	if len(values) < period {
		return make([]float64, len(values))
	}
	return talib.Ema(values, period)
}

// LatestATR returns the most recent ATR, falling back to 1% of the last close
// when the series is too short or the value is unusable.
func LatestATR(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	last := candles[len(candles)-1].Close
	if len(candles) > atrPeriod {
		highs, lows, closes := market.HLC(candles)
		atr := talib.Atr(highs, lows, closes, atrPeriod)
		if v := atr[len(atr)-1]; v > 0 {
			return v
		}
	}
	return last * 0.01
}
