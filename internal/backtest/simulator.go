package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marlin/internal/gateway/exchange"
	"marlin/internal/ledger"
	"marlin/internal/market"
	"marlin/internal/position"
	"marlin/internal/risk"
	"marlin/internal/signal"
	"marlin/internal/types"
)

// EquityPoint is the account value at one entry-bar close, open position
// marked to market.
type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Result is the full outcome of one simulated run.
type Result struct {
	RunID      string
	Scenario   string
	Symbol     string
	StartedAt  time.Time
	FinishedAt time.Time
	Trades     []types.ClosedTrade
	Equity     []EquityPoint
	Stats      Stats
	// Records is the simulated trade ledger, same shape as the live one.
	Records []ledger.Record
}

// Simulator replays candles through the real position machine and risk
// engine; only the gateway is simulated. Runs are deterministic: the same
// candles and scenario always produce the same trades.
type Simulator struct {
	scenario Scenario
	engine   *risk.Engine
	provider *signal.Provider
}

func NewSimulator(sc Scenario) *Simulator {
	final := sc.withDefaults()
	return &Simulator{
		scenario: final,
		engine:   risk.NewEngine(final.RiskConfig()),
		provider: signal.NewProvider(final.ADXThreshold),
	}
}

// simGateway fills orders at the current bar close, shifted against the trade
// by the configured slippage.
type simGateway struct {
	price    float64
	slippage float64
}

func (g *simGateway) Name() string { return "sim" }

func (g *simGateway) GetPrice(_ context.Context, _ string) (float64, error) {
	if g.price <= 0 {
		return 0, fmt.Errorf("sim: no market price")
	}
	return g.price, nil
}

func (g *simGateway) PlaceMarketOrder(_ context.Context, _ string, side exchange.OrderSide, qty float64) (exchange.Fill, error) {
	price := g.price
	if side == exchange.OrderBuy {
		price *= 1 + g.slippage
	} else {
		price *= 1 - g.slippage
	}
	return exchange.Fill{Price: price, Quantity: qty}, nil
}

// Run replays the entry candles against the as-of merged trend history.
func (s *Simulator) Run(ctx context.Context, entry, trend []market.Candle) (*Result, error) {
	if len(entry) == 0 {
		return nil, fmt.Errorf("backtest: no entry candles")
	}
	if s.scenario.Bars > 0 && len(entry) > s.scenario.Bars {
		entry = entry[len(entry)-s.scenario.Bars:]
	}

	trendSeries := signal.ComputeSeries(trend)
	points := make([]market.TrendPoint, len(trend))
	for i, c := range trend {
		points[i] = market.TrendPoint{
			CloseTime: c.CloseTime,
			Close:     c.Close,
			EMA:       trendSeries.EMATrend[i],
			ADX:       trendSeries.ADX[i],
		}
	}
	merged := market.MergeAsOf(entry, points)
	entrySeries := signal.ComputeSeries(entry)

	gw := &simGateway{slippage: s.scenario.SlippagePct}
	recorder := ledger.NewMemory()
	machine := position.NewMachine("backtest", gw, s.engine, recorder, nil, nil)
	var simTime time.Time
	machine.SetClock(func() time.Time { return simTime })

	res := &Result{
		RunID:     uuid.NewString(),
		Scenario:  s.scenario.Name,
		Symbol:    s.scenario.Symbol,
		StartedAt: time.UnixMilli(entry[0].OpenTime).UTC(),
		Equity:    make([]EquityPoint, 0, len(entry)),
	}
	balance := s.scenario.InitialBalance
	symbol := s.scenario.Symbol

	for i, bar := range merged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		simTime = time.UnixMilli(bar.CloseTime).UTC()
		gw.price = bar.Close

		bias := s.biasAt(bar)
		action, rule := signal.EntryAt(entrySeries, entry, i, bias)

		if _, open := machine.Book().Get(symbol); open {
			trade, err := machine.ManageCycle(ctx, symbol, position.ManageInput{
				Price:       bar.Close,
				Bias:        bias,
				BiasKnown:   bar.TrendOK,
				EntryAction: action,
			})
			if err != nil {
				return nil, fmt.Errorf("backtest bar %d: %w", i, err)
			}
			if trade != nil {
				balance += trade.PnLAmount
				res.Trades = append(res.Trades, *trade)
			}
		} else if action != signal.ActionHold && bias != signal.BiasNeutral {
			atr := entrySeries.ATR[i]
			if atr <= 0 {
				atr = bar.Close * 0.01
			}
			levels := signal.DetectLevels(entry[:i+1], entrySeries.ATR[:i+1])
			_, err := machine.OpenFromSignal(ctx, position.OpenInput{
				Symbol:         symbol,
				Action:         action,
				ATR:            atr,
				Levels:         levels,
				Rule:           rule,
				TrendTimeframe: s.scenario.TrendInterval,
				EntryTimeframe: s.scenario.EntryInterval,
				Equity:         balance,
				Cash:           balance,
			})
			if err != nil {
				return nil, fmt.Errorf("backtest bar %d: %w", i, err)
			}
		}

		res.Equity = append(res.Equity, EquityPoint{
			Time:  simTime,
			Value: balance + unrealized(machine, symbol, bar.Close),
		})
	}

	// Force-close whatever is still open at the final bar.
	if trade, err := machine.Close(ctx, symbol, types.ExitEndOfData); err != nil {
		return nil, fmt.Errorf("backtest final close: %w", err)
	} else if trade != nil {
		balance += trade.PnLAmount
		res.Trades = append(res.Trades, *trade)
		res.Equity[len(res.Equity)-1].Value = balance
	}

	res.FinishedAt = simTime
	res.Records = recorder.All()
	res.Stats = ComputeStats(res.Trades, res.Equity, s.scenario.InitialBalance)
	return res, nil
}

// biasAt derives the trend bias for one merged bar. A missing or weak trend
// read (ADX under the scenario threshold) is NEUTRAL and admits no entries.
func (s *Simulator) biasAt(bar market.MergedBar) signal.Bias {
	if !bar.TrendOK || bar.TrendADX < s.scenario.ADXThreshold {
		return signal.BiasNeutral
	}
	switch {
	case bar.TrendClose > bar.TrendEMA:
		return signal.BiasBull
	case bar.TrendClose < bar.TrendEMA:
		return signal.BiasBear
	default:
		return signal.BiasNeutral
	}
}

func unrealized(machine *position.Machine, symbol string, price float64) float64 {
	p, ok := machine.Book().Get(symbol)
	if !ok {
		return 0
	}
	if p.Side == types.SideLong {
		return p.Quantity * (price - p.EntryPrice)
	}
	return p.Quantity * (p.EntryPrice - price)
}
