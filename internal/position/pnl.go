// Package position owns the lifecycle of open positions: entry, trailing
// revisions, and the prioritized exit checks. All order flow goes through the
// exchange gateway and every transition is recorded in the trade ledger.
package position

import (
	"marlin/internal/types"
)

// NetPnL computes realized profit with fees charged on both legs.
//
// Long:  net = qty*exit*(1-fee) - qty*entry*(1+fee)
// Short: net = qty*entry*(1-fee) - qty*exit*(1+fee)
//
// The percentage is net over the entry-side capital outlay (for shorts the
// proceeds base qty*entry, matching how the allocation was sized).
func NetPnL(side types.Side, entry, exit, qty, feeRate float64) (amount, pct float64) {
	if qty <= 0 || entry <= 0 {
		return 0, 0
	}
	if side == types.SideLong {
		cost := qty * entry * (1 + feeRate)
		proceeds := qty * exit * (1 - feeRate)
		amount = proceeds - cost
		if cost > 0 {
			pct = amount / cost * 100
		}
		return amount, pct
	}
	proceeds := qty * entry * (1 - feeRate)
	cost := qty * exit * (1 + feeRate)
	amount = proceeds - cost
	base := qty * entry
	if base > 0 {
		pct = amount / base * 100
	}
	return amount, pct
}
