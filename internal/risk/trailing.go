package risk

import (
	"marlin/internal/types"
)

// Trailing thresholds in R (initial risk distance) units.
const (
	breakevenTriggerR = 1.5
	breakevenOffsetR  = 0.1
	trailTriggerR     = 2.5
	trailATRMult      = 2.0
)

// Trail applies the trailing-stop revision rule to an open position for the
// current price. The stop only ever moves in the trade's favor. Returns true
// when the stop moved.
func (e *Engine) Trail(p *types.Position, price float64) bool {
	if p == nil || price <= 0 {
		return false
	}
	if p.RiskDistance <= 0 {
		p.RiskDistance = p.EntryPrice * fallbackRiskPct
	}
	risk := p.RiskDistance
	// The original entry ATR is not persisted; recover it from the risk
	// distance the fallback stop was derived from.
	atr := 0.0
	if e.cfg.SLMultiplier > 0 {
		atr = risk / e.cfg.SLMultiplier
	}

	moved := false
	if p.Side == types.SideLong {
		if price > p.ExtremePrice {
			p.ExtremePrice = price
		}
		profit := p.ExtremePrice - p.EntryPrice
		if profit > breakevenTriggerR*risk {
			if sl := p.EntryPrice + breakevenOffsetR*risk; sl > p.StopPrice {
				p.StopPrice = sl
				moved = true
			}
		}
		if profit > trailTriggerR*risk {
			if sl := p.ExtremePrice - trailATRMult*atr; sl > p.StopPrice {
				p.StopPrice = sl
				moved = true
			}
		}
		return moved
	}

	if price < p.ExtremePrice || p.ExtremePrice == 0 {
		p.ExtremePrice = price
	}
	profit := p.EntryPrice - p.ExtremePrice
	if profit > breakevenTriggerR*risk {
		if sl := p.EntryPrice - breakevenOffsetR*risk; sl < p.StopPrice {
			p.StopPrice = sl
			moved = true
		}
	}
	if profit > trailTriggerR*risk {
		if sl := p.ExtremePrice + trailATRMult*atr; sl < p.StopPrice {
			p.StopPrice = sl
			moved = true
		}
	}
	return moved
}
