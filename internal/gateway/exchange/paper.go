package exchange

import (
	"context"
	"fmt"

	"marlin/internal/logger"
)

// PriceQuoter supplies live prices without order capability. The binance
// gateway satisfies this with public endpoints, so paper trading follows real
// prices while never submitting orders.
type PriceQuoter interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Paper simulates fills at the current market price. It backs both the
// fake-money run mode and the dry-run flag: every intended order is logged,
// none is sent.
type Paper struct {
	quotes PriceQuoter
	label  string
}

func NewPaper(quotes PriceQuoter, label string) (*Paper, error) {
	if quotes == nil {
		return nil, fmt.Errorf("paper gateway requires a price source")
	}
	if label == "" {
		label = "paper"
	}
	return &Paper{quotes: quotes, label: label}, nil
}

func (p *Paper) Name() string { return p.label }

func (p *Paper) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return p.quotes.GetPrice(ctx, symbol)
}

// PlaceMarketOrder fills instantly at the live ticker price.
func (p *Paper) PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (Fill, error) {
	price, err := p.quotes.GetPrice(ctx, symbol)
	if err != nil {
		return Fill{}, &TransientError{Op: "paper.PlaceMarketOrder", Err: err}
	}
	logger.Infof("[%s] %s order simulated: %s qty=%.8f @ %.4f", symbol, p.label, side, quantity, price)
	return Fill{Price: price, Quantity: quantity}, nil
}

var _ Gateway = (*Paper)(nil)
