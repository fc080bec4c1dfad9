package binance

import (
	"context"
	"strconv"

	"marlin/internal/gateway/exchange"
)

// AccountBalance reports the free and total spot balance of one asset.
func (g *Gateway) AccountBalance(ctx context.Context, asset string) (free, total float64, err error) {
	err = g.call(ctx, "binance.AccountBalance", func() error {
		acct, err := g.client.NewGetAccountService().Do(ctx)
		if err != nil {
			return err
		}
		free, total = 0, 0
		for _, b := range acct.Balances {
			if b.Asset != asset {
				continue
			}
			f, _ := strconv.ParseFloat(b.Free, 64)
			locked, _ := strconv.ParseFloat(b.Locked, 64)
			free = f
			total = f + locked
			break
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return free, total, nil
}

var _ exchange.AccountSource = (*Gateway)(nil)
