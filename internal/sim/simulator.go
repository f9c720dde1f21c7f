package sim

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfuse/quantfuse/internal/market"
)

// CostModel holds execution cost assumptions in basis points
type CostModel struct {
	FeeBPS      float64 `yaml:"fee_bps"`      // commission per leg (default: 10)
	SlippageBPS float64 `yaml:"slippage_bps"` // price offset against the trader (default: 5)
}

// DefaultCostModel returns taker-style execution costs
func DefaultCostModel() CostModel {
	return CostModel{FeeBPS: 10, SlippageBPS: 5}
}

// Simulator maintains the simulated cash/position ledger for one symbol.
// At most one position is open at a time; an opposite-side signal closes
// the open position before a new one may be opened.
type Simulator struct {
	symbol    string
	costs     CostModel
	startCash float64
	cash      float64
	realized  float64
	open      *Trade
	closed    []Trade
}

// NewSimulator creates a ledger with starting capital
func NewSimulator(symbol string, startingCash float64, costs CostModel) *Simulator {
	return &Simulator{symbol: symbol, costs: costs, startCash: startingCash, cash: startingCash}
}

// Open establishes a position. Opening while a position exists is a
// simulation inconsistency and is a logged no-op.
func (s *Simulator) Open(dir Direction, qty, price, stop, target float64, at time.Time) *Trade {
	if s.open != nil {
		log.Warn().Str("symbol", s.symbol).Msg("open requested with position already open, ignored")
		return nil
	}
	if qty <= 0 || price <= 0 {
		return nil
	}

	fill := s.entryFill(dir, price)
	s.cash -= s.fee(qty, fill)
	s.open = newTrade(s.symbol, dir, qty, fill, stop, target, at)
	return s.open
}

// Close exits the open position at price. Closing with no open position is
// a no-op returning nil: backtest loops never halt on a single bar's edge case.
func (s *Simulator) Close(price float64, at time.Time, reason ExitReason) *Trade {
	if s.open == nil {
		return nil
	}
	t := s.open

	fill := s.exitFill(t.Direction, price)
	gross := (fill - t.EntryPrice) * t.Quantity * directionSign(t.Direction)
	exitFee := s.fee(t.Quantity, fill)

	t.ExitPrice = fill
	t.ExitTime = at
	t.ExitReason = reason
	// Net of both legs' commissions; the entry fee already left cash at open.
	t.PnL = gross - exitFee - s.fee(t.Quantity, t.EntryPrice)
	t.Status = StatusClosed

	s.cash += gross - exitFee
	s.realized += t.PnL
	s.closed = append(s.closed, *t)
	s.open = nil
	return &s.closed[len(s.closed)-1]
}

// CheckExit tests the open position against one bar and closes it on the
// first triggered condition. Stop-loss and take-profit trigger on an
// intrabar touch; when both are touched in the same bar the stop fills
// first (conservative assumption). The time stop runs after both.
func (s *Simulator) CheckExit(bar market.Bar, timeStopBars int) *Trade {
	if s.open == nil {
		return nil
	}
	t := s.open
	t.BarsHeld++

	if t.Direction == Long {
		if t.StopLoss > 0 && bar.Low <= t.StopLoss {
			return s.Close(t.StopLoss, bar.Timestamp, ExitStopLoss)
		}
		if t.TakeProfit > 0 && bar.High >= t.TakeProfit {
			return s.Close(t.TakeProfit, bar.Timestamp, ExitTakeProfit)
		}
	} else {
		if t.StopLoss > 0 && bar.High >= t.StopLoss {
			return s.Close(t.StopLoss, bar.Timestamp, ExitStopLoss)
		}
		if t.TakeProfit > 0 && bar.Low <= t.TakeProfit {
			return s.Close(t.TakeProfit, bar.Timestamp, ExitTakeProfit)
		}
	}

	if timeStopBars > 0 && t.BarsHeld >= timeStopBars {
		return s.Close(bar.Close, bar.Timestamp, ExitTimeStop)
	}
	return nil
}

// Equity returns cash plus the open position's unrealized value at price
func (s *Simulator) Equity(price float64) float64 {
	if s.open == nil {
		return s.cash
	}
	unrealized := (price - s.open.EntryPrice) * s.open.Quantity * directionSign(s.open.Direction)
	return s.cash + unrealized
}

// Cash returns the cash balance, net of any open position's entry fee
func (s *Simulator) Cash() float64 { return s.cash }

// Realized returns starting capital plus the summed PnL of closed trades.
// An open position contributes nothing until it closes.
func (s *Simulator) Realized() float64 { return s.startCash + s.realized }

// Position returns the open trade, or nil
func (s *Simulator) Position() *Trade { return s.open }

// Closed returns the closed-trades list in close order
func (s *Simulator) Closed() []Trade { return s.closed }

// entryFill applies slippage against the trader on entry
func (s *Simulator) entryFill(dir Direction, price float64) float64 {
	offset := price * s.costs.SlippageBPS / 10000
	return price + offset*directionSign(dir)
}

// exitFill applies slippage against the trader on exit
func (s *Simulator) exitFill(dir Direction, price float64) float64 {
	offset := price * s.costs.SlippageBPS / 10000
	return price - offset*directionSign(dir)
}

func (s *Simulator) fee(qty, price float64) float64 {
	return qty * price * s.costs.FeeBPS / 10000
}
