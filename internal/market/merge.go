package market

// TrendPoint is one bar of the slower trend timeframe reduced to the values
// the entry loop needs: close, the trend EMA and ADX at that bar.
type TrendPoint struct {
	CloseTime int64
	Close     float64
	EMA       float64
	ADX       float64
}

// MergedBar pairs an entry-timeframe candle with the most recent trend bar at
// or before its close time (backward as-of matching).
type MergedBar struct {
	Candle
	TrendClose float64
	TrendEMA   float64
	TrendADX   float64
	TrendOK    bool
}

// MergeAsOf aligns entry candles with trend points. Both inputs must be sorted
// by close time ascending; trend points with a zero EMA are treated as not yet
// warmed up and leave TrendOK false.
func MergeAsOf(entry []Candle, trend []TrendPoint) []MergedBar {
	out := make([]MergedBar, len(entry))
	j := -1
	for i, c := range entry {
		for j+1 < len(trend) && trend[j+1].CloseTime <= c.CloseTime {
			j++
		}
		out[i] = MergedBar{Candle: c}
		if j >= 0 && trend[j].EMA > 0 {
			out[i].TrendClose = trend[j].Close
			out[i].TrendEMA = trend[j].EMA
			out[i].TrendADX = trend[j].ADX
			out[i].TrendOK = true
		}
	}
	return out
}
