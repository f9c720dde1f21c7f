// Package risk converts gated signals into position sizes and stop/target
// levels, and tracks the account-level circuit breaker.
package risk

import (
	"github.com/quantfuse/quantfuse/internal/sim"
)

// Params holds the position sizing and circuit breaker configuration
type Params struct {
	MaxEquityRisk float64 `yaml:"max_equity_risk" validate:"gt=0,lte=1"` // equity fraction risked per trade (default: 0.01)
	MaxPosition   float64 `yaml:"max_position" validate:"gt=0,lte=1"`    // position cap as equity fraction (default: 0.2)
	ATRMultiple   float64 `yaml:"atr_multiple"`                          // stop distance in ATRs (default: 2.0)
	RewardRisk    float64 `yaml:"reward_risk"`                           // take-profit multiple of risk (default: 3.0)
	MaxVolatility float64 `yaml:"max_volatility"`                        // ATR%% ceiling tripping the breaker (default: 0.08)
	MaxDrawdown   float64 `yaml:"max_drawdown"`                          // running drawdown tripping the breaker (default: 0.10)
}

// DefaultParams returns the production risk configuration
func DefaultParams() Params {
	return Params{
		MaxEquityRisk: 0.01,
		MaxPosition:   0.2,
		ATRMultiple:   2.0,
		RewardRisk:    3.0,
		MaxVolatility: 0.08,
		MaxDrawdown:   0.10,
	}
}

// PositionSize returns the equity fraction to deploy. Without a positive
// volatility estimate the size is zero: a deliberate fail-safe, not an error.
func PositionSize(equity, atrPct float64, p Params) float64 {
	if atrPct <= 0 || equity <= 0 {
		return 0
	}
	size := p.MaxEquityRisk / atrPct
	if size > p.MaxPosition {
		size = p.MaxPosition
	}
	if size < 0 {
		size = 0
	}
	return size
}

// StopLoss places the stop an ATR multiple away, signed by direction
func StopLoss(entry, atr float64, dir sim.Direction, p Params) float64 {
	dist := atr * p.ATRMultiple
	if dir == sim.Short {
		return entry + dist
	}
	return entry - dist
}

// TakeProfit places the target at RewardRisk times the stop distance.
// A zero or negative risk distance yields no target (0), never an error.
func TakeProfit(entry, stop float64, dir sim.Direction, p Params) float64 {
	var riskDist float64
	if dir == sim.Short {
		riskDist = stop - entry
	} else {
		riskDist = entry - stop
	}
	if riskDist <= 0 {
		return 0
	}
	reward := riskDist * p.RewardRisk
	if dir == sim.Short {
		return entry - reward
	}
	return entry + reward
}

// State tracks running equity against its peak for the drawdown breaker
type State struct {
	Equity     float64
	PeakEquity float64
}

// NewState starts tracking from the initial equity
func NewState(equity float64) *State {
	return &State{Equity: equity, PeakEquity: equity}
}

// Update records a new equity mark
func (s *State) Update(equity float64) {
	s.Equity = equity
	if equity > s.PeakEquity {
		s.PeakEquity = equity
	}
}

// Drawdown returns the fractional decline from the running peak
func (s *State) Drawdown() float64 {
	if s.PeakEquity <= 0 {
		return 0
	}
	dd := (s.PeakEquity - s.Equity) / s.PeakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

// IsTradingAllowed is the account-level circuit breaker: it blocks all new
// trades once volatility exceeds the ceiling or the running drawdown
// reaches its maximum. Both checks are independent of any per-trade gate.
func (s *State) IsTradingAllowed(atrPct float64, p Params) bool {
	if p.MaxVolatility > 0 && atrPct >= p.MaxVolatility {
		return false
	}
	if p.MaxDrawdown > 0 && s.Drawdown() >= p.MaxDrawdown {
		return false
	}
	return true
}
