package position

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marlin/internal/types"
)

func TestNetPnLLong(t *testing.T) {
	// 10 units long from 100 to 110 at 0.1% per leg.
	amount, pct := NetPnL(types.SideLong, 100, 110, 10, 0.001)
	// proceeds 10*110*0.999 = 1098.9, cost 10*100*1.001 = 1001
	assert.InDelta(t, 97.9, amount, 1e-9)
	assert.InDelta(t, 97.9/1001*100, pct, 1e-9)
}

func TestNetPnLShort(t *testing.T) {
	amount, pct := NetPnL(types.SideShort, 100, 90, 10, 0.001)
	// proceeds 10*100*0.999 = 999, buyback 10*90*1.001 = 900.9
	assert.InDelta(t, 98.1, amount, 1e-9)
	assert.InDelta(t, 98.1/1000*100, pct, 1e-9)
}

func TestNetPnLLosingLongIncludesBothFees(t *testing.T) {
	amount, _ := NetPnL(types.SideLong, 100, 100, 10, 0.001)
	// Flat price still loses both fee legs.
	assert.InDelta(t, -2.0, amount, 1e-9)
}

func TestNetPnLGrid(t *testing.T) {
	// Sweep both sides across entry/exit/fee/quantity combinations and check
	// the fee-on-both-legs arithmetic independently for each cell.
	entries := []float64{50, 100, 2500}
	exits := []float64{40, 100, 160, 3000}
	fees := []float64{0, 0.001, 0.0075}
	quantities := []float64{0.5, 10}

	for _, side := range []types.Side{types.SideLong, types.SideShort} {
		for _, entry := range entries {
			for _, exit := range exits {
				for _, fee := range fees {
					for _, qty := range quantities {
						var wantAmount, base float64
						if side == types.SideLong {
							wantAmount = qty*exit*(1-fee) - qty*entry*(1+fee)
							base = qty * entry * (1 + fee)
						} else {
							wantAmount = qty*entry*(1-fee) - qty*exit*(1+fee)
							base = qty * entry
						}
						wantPct := wantAmount / base * 100

						amount, pct := NetPnL(side, entry, exit, qty, fee)
						assert.InDelta(t, wantAmount, amount, 1e-9,
							"%s entry=%v exit=%v fee=%v qty=%v", side, entry, exit, fee, qty)
						assert.InDelta(t, wantPct, pct, 1e-9,
							"%s entry=%v exit=%v fee=%v qty=%v", side, entry, exit, fee, qty)
					}
				}
			}
		}
	}
}

func TestNetPnLInvalidInputs(t *testing.T) {
	amount, pct := NetPnL(types.SideLong, 0, 110, 10, 0.001)
	assert.Zero(t, amount)
	assert.Zero(t, pct)

	amount, pct = NetPnL(types.SideShort, 100, 90, 0, 0.001)
	assert.Zero(t, amount)
	assert.Zero(t, pct)
}
