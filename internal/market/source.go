package market

import "context"

// Source delivers historical klines for a symbol+interval.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
