package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"

	"marlin/internal/gateway/exchange"
	"marlin/internal/logger"
	"marlin/internal/market"
	"marlin/internal/pkg/circuit"
	"marlin/internal/pkg/retry"
)

const maxHistoryLimit = 1000

// Gateway implements exchange.Gateway and market.Source against the Binance
// spot REST API.
type Gateway struct {
	cfg     Config
	client  *binance.Client
	limiter *rate.Limiter
	breaker *circuit.Breaker
	policy  retry.Policy

	filterMu sync.Mutex
	filters  map[string]exchange.SymbolFilters
}

func New(cfg Config) *Gateway {
	final := cfg.withDefaults()
	client := binance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = strings.TrimSpace(final.BaseURL)
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Gateway{
		cfg:     final,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(final.RequestsPerSec), 1),
		breaker: circuit.NewBreaker("binance", final.BreakerThreshold, final.BreakerTimeout),
		policy:  retry.DefaultPolicy(),
		filters: make(map[string]exchange.SymbolFilters),
	}
}

func (g *Gateway) Name() string { return "binance" }

// call serializes rate limiting, circuit breaking and transient retry around
// one REST request.
func (g *Gateway) call(ctx context.Context, op string, fn func() error) error {
	return retry.Do(ctx, g.policy, func() error {
		if !g.breaker.Allow() {
			return &exchange.TransientError{Op: op, Err: errors.New("circuit open")}
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			g.breaker.RecordSuccess()
			return nil
		}
		g.breaker.RecordFailure()
		return classify(op, err)
	}, exchange.IsTransient)
}

// classify maps SDK errors onto the gateway error taxonomy. API errors with
// known throttling/connectivity codes and all non-API errors (network,
// timeouts) are transient; every other API error is a business rejection.
func classify(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1000, -1001, -1003, -1007, -1021:
			return &exchange.TransientError{Op: op, Err: err}
		default:
			return &exchange.RejectedError{Op: op, Code: apiErr.Code, Err: err}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &exchange.TransientError{Op: op, Err: err}
}

func (g *Gateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := g.call(ctx, "binance.GetPrice", func() error {
		prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		if len(prices) == 0 || prices[0] == nil {
			return fmt.Errorf("no ticker for %s", symbol)
		}
		v, err := strconv.ParseFloat(prices[0].Price, 64)
		if err != nil {
			return fmt.Errorf("bad ticker price %q: %w", prices[0].Price, err)
		}
		price = v
		return nil
	})
	return price, err
}

// PlaceMarketOrder submits a market order and reports the fill. The fill
// price prefers the first fill leg; when the response omits fills the
// current ticker stands in.
func (g *Gateway) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.OrderSide, quantity float64) (exchange.Fill, error) {
	var fill exchange.Fill
	err := g.call(ctx, "binance.PlaceMarketOrder", func() error {
		resp, err := g.client.NewCreateOrderService().
			Symbol(symbol).
			Side(binance.SideType(side)).
			Type(binance.OrderTypeMarket).
			Quantity(strconv.FormatFloat(quantity, 'f', -1, 64)).
			Do(ctx)
		if err != nil {
			return err
		}
		fill = exchange.Fill{Quantity: quantity}
		if qty, err := strconv.ParseFloat(resp.ExecutedQuantity, 64); err == nil && qty > 0 {
			fill.Quantity = qty
		}
		if len(resp.Fills) > 0 && resp.Fills[0] != nil {
			if p, err := strconv.ParseFloat(resp.Fills[0].Price, 64); err == nil && p > 0 {
				fill.Price = p
				return nil
			}
		}
		price, perr := g.GetPrice(ctx, symbol)
		if perr != nil {
			return perr
		}
		fill.Price = price
		return nil
	})
	if err != nil {
		return exchange.Fill{}, err
	}
	logger.Infof("[%s] %s filled qty=%.8f @ %.4f", symbol, side, fill.Quantity, fill.Price)
	return fill, nil
}

// SymbolFilters fetches and caches LOT_SIZE / NOTIONAL rules for sizing.
func (g *Gateway) SymbolFilters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	g.filterMu.Lock()
	if f, ok := g.filters[symbol]; ok {
		g.filterMu.Unlock()
		return f, nil
	}
	g.filterMu.Unlock()

	var out exchange.SymbolFilters
	err := g.call(ctx, "binance.SymbolFilters", func() error {
		info, err := g.client.NewExchangeInfoService().Symbols(symbol).Do(ctx)
		if err != nil {
			return err
		}
		for _, s := range info.Symbols {
			if s.Symbol != symbol {
				continue
			}
			out = parseFilters(s.Filters)
			return nil
		}
		return fmt.Errorf("symbol %s not in exchange info", symbol)
	})
	if err != nil {
		return exchange.SymbolFilters{}, err
	}
	g.filterMu.Lock()
	g.filters[symbol] = out
	g.filterMu.Unlock()
	return out, nil
}

// parseFilters reads the raw filter maps; Binance has migrated MIN_NOTIONAL
// to NOTIONAL so both spellings are accepted.
func parseFilters(filters []map[string]interface{}) exchange.SymbolFilters {
	out := exchange.SymbolFilters{StepSize: 0.00001, MinNotional: 5.0}
	for _, f := range filters {
		ft, _ := f["filterType"].(string)
		switch ft {
		case "LOT_SIZE":
			if v := parseFilterFloat(f["stepSize"]); v > 0 {
				out.StepSize = v
			}
		case "NOTIONAL", "MIN_NOTIONAL":
			if v := parseFilterFloat(f["minNotional"]); v > 0 {
				out.MinNotional = v
			}
		}
	}
	return out
}

func parseFilterFloat(raw any) float64 {
	s, ok := raw.(string)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FetchHistory implements market.Source over spot klines.
func (g *Gateway) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	var out []market.Candle
	err := g.call(ctx, "binance.FetchHistory", func() error {
		kls, err := g.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		if err != nil {
			return err
		}
		out = make([]market.Candle, 0, len(kls))
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			c := market.Candle{
				OpenTime:  kl.OpenTime,
				CloseTime: kl.CloseTime,
				Open:      parsePrice(kl.Open),
				High:      parsePrice(kl.High),
				Low:       parsePrice(kl.Low),
				Close:     parsePrice(kl.Close),
				Volume:    parsePrice(kl.Volume),
				Trades:    kl.TradeNum,
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

var (
	_ exchange.Gateway      = (*Gateway)(nil)
	_ exchange.FilterSource = (*Gateway)(nil)
	_ market.Source         = (*Gateway)(nil)
)
