package types

import (
	"time"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the closing direction for the side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

type ExitReason string

const (
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitTakeProfit     ExitReason = "TAKE_PROFIT"
	ExitSignalReversal ExitReason = "SIGNAL_REVERSAL"
	ExitTrendFlip      ExitReason = "TREND_FLIP"
	ExitManual         ExitReason = "MANUAL_EXIT"
	ExitEndOfData      ExitReason = "END_OF_DATA"
)

// ExitReasons lists every terminal reason, used when scanning the ledger for
// close records.
func ExitReasons() []string {
	return []string{
		string(ExitStopLoss),
		string(ExitTakeProfit),
		string(ExitSignalReversal),
		string(ExitTrendFlip),
		string(ExitManual),
		string(ExitEndOfData),
	}
}

// Position is the single open position for a symbol. StopPrice and
// TakeProfit are revised while the position is open; RiskDistance is fixed at
// entry and is the R unit for trailing thresholds. ExtremePrice is the
// highest price seen since entry for longs, lowest for shorts.
type Position struct {
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	EntryPrice     float64   `json:"entry_price"`
	Quantity       float64   `json:"quantity"`
	EntryTime      time.Time `json:"entry_time"`
	StopPrice      float64   `json:"stop_price"`
	TakeProfit     float64   `json:"take_profit"`
	TakeProfit2    float64   `json:"take_profit_2,omitempty"`
	RiskDistance   float64   `json:"risk_distance"`
	ExtremePrice   float64   `json:"extreme_price"`
	TrendTimeframe string    `json:"trend_tf,omitempty"`
	EntryTimeframe string    `json:"entry_tf,omitempty"`
	StopReason     string    `json:"stop_reason,omitempty"`
	TargetReason   string    `json:"target_reason,omitempty"`
}

// Clone returns a copy so callers can hand out positions without sharing
// mutable state.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// ClosedTrade is the immutable record derived from a Position at close time.
// PnL fields are net of round-trip fees.
type ClosedTrade struct {
	Symbol         string     `json:"symbol"`
	Side           Side       `json:"side"`
	EntryPrice     float64    `json:"entry_price"`
	ExitPrice      float64    `json:"exit_price"`
	Quantity       float64    `json:"quantity"`
	EntryTime      time.Time  `json:"entry_time"`
	ExitTime       time.Time  `json:"exit_time"`
	ExitReason     ExitReason `json:"exit_reason"`
	PnLAmount      float64    `json:"pnl_amount"`
	PnLPct         float64    `json:"pnl_pct"`
	TrendTimeframe string     `json:"trend_tf,omitempty"`
	EntryTimeframe string     `json:"entry_tf,omitempty"`
}
