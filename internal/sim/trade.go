// Package sim implements the trade simulator: a cash/position ledger that
// executes signals against a price stream with slippage and commission.
package sim

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the side of a position
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Status tracks the position lifecycle: open exactly once, closed exactly once
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ExitReason records why a position closed
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitTimeStop   ExitReason = "time_stop"
	ExitSignal     ExitReason = "opposite_signal"
	ExitEndOfData  ExitReason = "end_of_data"
)

// Trade is a single simulated position. Mutated only at close, after which
// it is immutable and appended to the closed-trades list.
type Trade struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Direction  Direction  `json:"direction"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	EntryTime  time.Time  `json:"entry_time"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Status     Status     `json:"status"`
	BarsHeld   int        `json:"bars_held"`

	ExitPrice  float64    `json:"exit_price,omitempty"`
	ExitTime   time.Time  `json:"exit_time,omitempty"`
	PnL        float64    `json:"pnl,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
}

func newTrade(symbol string, dir Direction, qty, entry, stop, target float64, at time.Time) *Trade {
	return &Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Direction:  dir,
		Quantity:   qty,
		EntryPrice: entry,
		EntryTime:  at,
		StopLoss:   stop,
		TakeProfit: target,
		Status:     StatusOpen,
	}
}

// directionSign returns +1 for LONG, -1 for SHORT
func directionSign(d Direction) float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Opposite returns the other side
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}
