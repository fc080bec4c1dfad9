package signal

import (
	"marlin/internal/market"
)

type Bias string

const (
	BiasBull    Bias = "BULL"
	BiasBear    Bias = "BEAR"
	BiasNeutral Bias = "NEUTRAL"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Opposes reports whether the bias contradicts an open side's direction.
func (b Bias) Opposes(long bool) bool {
	if long {
		return b == BiasBear
	}
	return b == BiasBull
}

// Provider derives trend bias and entry signals from raw candle history.
// Both methods are pure functions of their inputs.
type Provider struct {
	// ADXThreshold is the minimum trend strength for a timeframe to be
	// considered trending (25 live, 20 in backtests).
	ADXThreshold float64
}

func NewProvider(adxThreshold float64) *Provider {
	if adxThreshold <= 0 {
		adxThreshold = 25
	}
	return &Provider{ADXThreshold: adxThreshold}
}

// TrendBias classifies the trend of one timeframe: close above the trend EMA
// is BULL, below is BEAR. The returned ADX is 0 when unavailable. Too little
// history yields NEUTRAL rather than an error.
func (p *Provider) TrendBias(candles []market.Candle) (Bias, float64) {
	if len(candles) < emaTrendPeriod {
		return BiasNeutral, 0
	}
	s := ComputeSeries(candles)
	i := len(candles) - 1
	ema := s.EMATrend[i]
	if ema <= 0 {
		return BiasNeutral, 0
	}
	adx := s.ADX[i]
	close := candles[i].Close
	switch {
	case close > ema:
		return BiasBull, adx
	case close < ema:
		return BiasBear, adx
	default:
		return BiasNeutral, adx
	}
}

// Trending reports whether the bias qualifies as an actionable trend.
func (p *Provider) Trending(bias Bias, adx float64) bool {
	return bias != BiasNeutral && adx > p.ADXThreshold
}

// EntrySignal evaluates the faster timeframe for an entry consistent with the
// trend bias. Insufficient history is a HOLD, not an error. The second return
// value names the rule that fired.
func (p *Provider) EntrySignal(candles []market.Candle, bias Bias) (Action, string) {
	if len(candles) < minEntryBars {
		return ActionHold, "insufficient_data"
	}
	s := ComputeSeries(candles)
	return EntryAt(s, candles, len(candles)-1, bias)
}

// EntryAt evaluates the entry rules at bar i against a precomputed series.
// Backtests call this once per bar instead of recomputing the indicators.
func EntryAt(s Series, candles []market.Candle, i int, bias Bias) (Action, string) {
	if i < minEntryBars-1 || i >= len(candles) {
		return ActionHold, "insufficient_data"
	}
	curr, prev := candles[i], candles[i-1]
	if s.MACD[i] == 0 && s.MACDSig[i] == 0 {
		return ActionHold, "macd_warmup"
	}

	volConfirmed := s.VolEMA[i] <= 0 || curr.Volume > s.VolEMA[i]

	currBody := curr.Close - curr.Open
	candleRange := curr.High - curr.Low
	bodyRatio := 0.0
	if candleRange > 0 {
		bodyRatio = abs(currBody) / candleRange
	}
	strongCandle := bodyRatio > 0.5

	macdCrossUp := s.MACD[i-1] < s.MACDSig[i-1] && s.MACD[i] > s.MACDSig[i]
	macdCrossDown := s.MACD[i-1] > s.MACDSig[i-1] && s.MACD[i] < s.MACDSig[i]
	macdHist := s.MACD[i] - s.MACDSig[i]
	prevHist := s.MACD[i-1] - s.MACDSig[i-1]

	adx := s.ADX[i]
	strongTrend := adx > 30

	rsi, prevRSI := s.RSI[i], s.RSI[i-1]

	switch bias {
	case BiasBull:
		if macdCrossUp && volConfirmed && currBody > 0 && strongCandle &&
			rsi > 40 && rsi < 65 && macdHist > prevHist {
			return ActionBuy, "macd_cross_confirmed"
		}
		if s.MACD[i] > s.MACDSig[i] && prevRSI < 45 && rsi > 50 &&
			volConfirmed && currBody > 0 && strongTrend {
			return ActionBuy, "rsi_rejoin_confirmed"
		}
		if ema := s.EMAFast[i]; ema > 0 {
			atr := s.ATR[i]
			if atr <= 0 {
				atr = curr.Close * 0.01
			}
			nearEMA := abs(curr.Low-ema) < 0.5*atr
			bouncing := curr.Close > curr.Open && prev.Low < ema
			if nearEMA && bouncing && volConfirmed && rsi > 40 && rsi < 60 {
				return ActionBuy, "ema_bounce"
			}
		}
	case BiasBear:
		if macdCrossDown && volConfirmed && currBody < 0 && strongCandle &&
			rsi < 60 && rsi > 35 && macdHist < prevHist {
			return ActionSell, "macd_cross_confirmed"
		}
		if s.MACD[i] < s.MACDSig[i] && prevRSI > 55 && rsi < 50 &&
			volConfirmed && currBody < 0 && strongTrend {
			return ActionSell, "rsi_rejoin_confirmed"
		}
		if ema := s.EMAFast[i]; ema > 0 {
			atr := s.ATR[i]
			if atr <= 0 {
				atr = curr.Close * 0.01
			}
			nearEMA := abs(curr.High-ema) < 0.5*atr
			rejecting := curr.Close < curr.Open && prev.High > ema
			if nearEMA && rejecting && volConfirmed && rsi < 60 && rsi > 40 {
				return ActionSell, "ema_rejection"
			}
		}
	}
	return ActionHold, "no_signal"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
