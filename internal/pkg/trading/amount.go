// Package trading provides trading calculation utilities.
package trading

import (
	"github.com/shopspring/decimal"
)

// RoundStep floors a quantity to the exchange lot step size. Plain float
// division accumulates error on small steps (e.g. 0.00001), so the rounding
// goes through decimal arithmetic. A non-positive step returns the quantity
// unchanged.
func RoundStep(qty, step float64) float64 {
	if step <= 0 || qty <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	out, _ := q.Div(s).Floor().Mul(s).Float64()
	return out
}
