package exchange

import "context"

type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// Fill is the executed result of a market order.
type Fill struct {
	Price    float64
	Quantity float64
}

// SymbolFilters carries the exchange trading rules the sizing code needs.
type SymbolFilters struct {
	StepSize    float64
	MinNotional float64
}

// Gateway is the order/price surface the position machinery talks to. Live,
// paper and backtest executions are three implementations of this one
// interface; the trading rules never branch on mode.
//
// Errors must be classifiable: transient failures (timeouts, 5xx, rate
// limits) are wrapped in TransientError and may be retried; business
// rejections are wrapped in RejectedError and must not be.
type Gateway interface {
	Name() string
	GetPrice(ctx context.Context, symbol string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (Fill, error)
}

// FilterSource is implemented by gateways that can report symbol trading
// rules. Callers fall back to defaults when unavailable.
type FilterSource interface {
	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
}

// AccountSource is implemented by gateways that can report the spot balance
// of the quote asset. Free is immediately spendable; Total includes locked
// amounts.
type AccountSource interface {
	AccountBalance(ctx context.Context, asset string) (free, total float64, err error)
}
