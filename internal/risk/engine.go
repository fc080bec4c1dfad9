// Package risk converts entry signals into concrete stop/target prices and
// position sizes, and owns the trailing-stop revision rule and the daily loss
// breaker.
package risk

import (
	"fmt"

	"marlin/internal/pkg/trading"
	"marlin/internal/signal"
	"marlin/internal/types"
)

type Config struct {
	// SLMultiplier and TPMultiplier scale ATR for the fallback stop/target
	// when no structural level qualifies.
	SLMultiplier float64
	TPMultiplier float64
	// RiskReward drives the secondary extended target:
	// entry +/- risk_distance * (RiskReward + 1).
	RiskReward float64
	FeeRate    float64
	// RiskPerTrade is the fixed capital allocated per entry. When
	// PositionSizePct > 0 the allocation is equity * pct / 100 instead.
	RiskPerTrade        float64
	PositionSizePct     float64
	MaxPositionNotional float64
	MinNotional         float64
}

func (c Config) withDefaults() Config {
	if c.SLMultiplier <= 0 {
		c.SLMultiplier = 2.5
	}
	if c.TPMultiplier <= 0 {
		c.TPMultiplier = 3.0
	}
	if c.RiskReward <= 0 {
		c.RiskReward = 2.0
	}
	if c.MinNotional <= 0 {
		c.MinNotional = 5.1
	}
	return c
}

type Engine struct {
	cfg         Config
	stopRules   []StopRule
	targetRules []TargetRule
}

func NewEngine(cfg Config) *Engine {
	final := cfg.withDefaults()
	return &Engine{
		cfg:         final,
		stopRules:   stopChain(final.SLMultiplier),
		targetRules: targetChain(final.TPMultiplier),
	}
}

func (e *Engine) Config() Config { return e.cfg }

// LevelSet is the output of the stop/target chain for one prospective entry.
type LevelSet struct {
	Stop         float64
	Target       float64
	Target2      float64
	RiskDistance float64
	StopRule     string
	TargetRule   string
}

// Levels runs the stop chain then the target chain, first applicable rule
// wins. The risk distance is clamped to a 1% floor so it can never be zero or
// negative, and the stop is re-anchored to the clamped distance if needed.
func (e *Engine) Levels(in LevelInput) LevelSet {
	var out LevelSet
	for _, rule := range e.stopRules {
		if price, ok := rule.Apply(in); ok {
			out.Stop = price
			out.StopRule = rule.Name
			break
		}
	}
	if out.Stop <= 0 {
		out.Stop = minStopPrice
	}

	dist := in.Entry - out.Stop
	if in.Side == types.SideShort {
		dist = out.Stop - in.Entry
	}
	if dist <= 0 {
		dist = in.Entry * fallbackRiskPct
		out.StopRule = "min_distance"
		if in.Side == types.SideLong {
			out.Stop = in.Entry - dist
		} else {
			out.Stop = in.Entry + dist
		}
	}
	out.RiskDistance = dist

	for _, rule := range e.targetRules {
		if price, ok := rule.Apply(in); ok {
			out.Target = price
			out.TargetRule = rule.Name
			break
		}
	}

	ext := dist * (e.cfg.RiskReward + 1)
	if in.Side == types.SideLong {
		out.Target2 = in.Entry + ext
	} else {
		out.Target2 = in.Entry - ext
	}
	return out
}

// SizeInput carries account state into sizing. Equity and Cash of 0 mean
// "unknown" and disable the corresponding cap. StepSize 0 skips lot rounding.
type SizeInput struct {
	Entry    float64
	Equity   float64
	Cash     float64
	StepSize float64
}

// Size computes the order quantity under the capital constraints. A zero
// quantity with nil error means the entry is below the exchange minimum
// notional and must be skipped, not treated as a failure.
func (e *Engine) Size(in SizeInput) (qty, notional float64, err error) {
	if in.Entry <= 0 {
		return 0, 0, fmt.Errorf("entry price must be positive, got %v", in.Entry)
	}
	allocated := e.cfg.RiskPerTrade
	if e.cfg.PositionSizePct > 0 && in.Equity > 0 {
		allocated = in.Equity * e.cfg.PositionSizePct / 100
	}
	if e.cfg.MaxPositionNotional > 0 && allocated > e.cfg.MaxPositionNotional {
		allocated = e.cfg.MaxPositionNotional
	}
	if in.Cash > 0 && allocated > in.Cash {
		allocated = in.Cash
	}
	if allocated <= 0 {
		return 0, 0, nil
	}
	qty = allocated / (in.Entry * (1 + e.cfg.FeeRate))
	qty = trading.RoundStep(qty, in.StepSize)
	notional = qty * in.Entry
	if notional < e.cfg.MinNotional {
		return 0, 0, nil
	}
	return qty, notional, nil
}

// LevelInput bundles everything the chains look at for one entry.
type LevelInput struct {
	Entry  float64
	Side   types.Side
	ATR    float64
	Levels signal.Levels
}
