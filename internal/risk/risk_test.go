package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfuse/quantfuse/internal/sim"
)

func TestPositionSize_CappedAtMaxPosition(t *testing.T) {
	p := Params{MaxEquityRisk: 0.01, MaxPosition: 0.2}
	// 0.01/0.02 = 0.5, capped at 0.2
	assert.InDelta(t, 0.2, PositionSize(1.0, 0.02, p), 1e-12)
}

func TestPositionSize_ScalesInverselyWithVolatility(t *testing.T) {
	p := Params{MaxEquityRisk: 0.01, MaxPosition: 1.0}
	assert.InDelta(t, 0.1, PositionSize(1.0, 0.1, p), 1e-12)
	assert.InDelta(t, 0.2, PositionSize(1.0, 0.05, p), 1e-12)
}

func TestPositionSize_ZeroVolatilityFailSafe(t *testing.T) {
	p := DefaultParams()
	assert.Zero(t, PositionSize(1.0, 0, p))
	assert.Zero(t, PositionSize(1.0, -0.01, p))
	assert.Zero(t, PositionSize(0, 0.02, p))
}

func TestStops_SignedByDirection(t *testing.T) {
	p := Params{ATRMultiple: 2, RewardRisk: 3}

	longStop := StopLoss(100, 5, sim.Long, p)
	assert.InDelta(t, 90.0, longStop, 1e-9)
	assert.InDelta(t, 130.0, TakeProfit(100, longStop, sim.Long, p), 1e-9)

	shortStop := StopLoss(100, 5, sim.Short, p)
	assert.InDelta(t, 110.0, shortStop, 1e-9)
	assert.InDelta(t, 70.0, TakeProfit(100, shortStop, sim.Short, p), 1e-9)
}

func TestTakeProfit_ZeroRiskDistanceIsNoOp(t *testing.T) {
	p := Params{RewardRisk: 3}
	assert.Zero(t, TakeProfit(100, 100, sim.Long, p))
	assert.Zero(t, TakeProfit(100, 105, sim.Long, p), "inverted stop yields no target")
}

func TestState_DrawdownBreaker(t *testing.T) {
	// peak 1.0, equity 0.88 => drawdown > 0.10 blocks trading
	p := DefaultParams()
	s := NewState(1.0)
	s.Update(0.88)

	assert.Greater(t, s.Drawdown(), 0.10)
	assert.False(t, s.IsTradingAllowed(0.01, p), "blocked regardless of current volatility")
}

func TestState_VolatilityBreakerIndependent(t *testing.T) {
	p := DefaultParams()
	s := NewState(1.0)

	assert.True(t, s.IsTradingAllowed(0.02, p))
	assert.False(t, s.IsTradingAllowed(0.09, p), "ATR ceiling trips the breaker with zero drawdown")
}

func TestState_PeakTracksNewHighs(t *testing.T) {
	s := NewState(1.0)
	s.Update(1.5)
	s.Update(1.4)
	assert.InDelta(t, 1.5, s.PeakEquity, 1e-12)
	assert.InDelta(t, (1.5-1.4)/1.5, s.Drawdown(), 1e-12)
}
