package backtest

import (
	"math"

	"marlin/internal/types"
)

// sharpeAnnualization assumes daily-ish sampling of the equity curve.
const sharpeAnnualization = 252

// Stats summarizes one run. ProfitFactor is zero when the run had no losing
// trades to divide by.
type Stats struct {
	TotalTrades    int     `json:"total_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRatePct     float64 `json:"win_rate_pct"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	ProfitFactor   float64 `json:"profit_factor"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
}

func ComputeStats(trades []types.ClosedTrade, equity []EquityPoint, initialBalance float64) Stats {
	var st Stats
	st.TotalTrades = len(trades)

	var grossWin, grossLoss float64
	for _, t := range trades {
		st.TotalPnL += t.PnLAmount
		if t.PnLAmount > 0 {
			st.Wins++
			grossWin += t.PnLAmount
		} else {
			st.Losses++
			grossLoss += -t.PnLAmount
		}
	}
	if st.TotalTrades > 0 {
		st.WinRatePct = float64(st.Wins) / float64(st.TotalTrades) * 100
	}
	if st.Wins > 0 {
		st.AvgWin = grossWin / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLoss = -grossLoss / float64(st.Losses)
	}
	if grossLoss > 0 {
		st.ProfitFactor = grossWin / grossLoss
	}
	if initialBalance > 0 {
		st.TotalReturnPct = st.TotalPnL / initialBalance * 100
	}
	st.MaxDrawdownPct = maxDrawdownPct(equity)
	st.Sharpe = sharpe(equity)
	return st
}

// maxDrawdownPct is the worst peak-to-trough decline of the equity curve.
func maxDrawdownPct(equity []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Value) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// sharpe is the annualized mean/stddev of per-bar equity returns.
func sharpe(equity []EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, (equity[i].Value-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(sharpeAnnualization)
}
