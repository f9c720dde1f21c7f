package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/market"
)

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func frictionless() CostModel { return CostModel{} }

func TestLifecycle_OpenThenClose(t *testing.T) {
	s := NewSimulator("BTC-USD", 10000, frictionless())

	tr := s.Open(Long, 1.0, 100, 90, 130, t0)
	require.NotNil(t, tr)
	assert.Equal(t, StatusOpen, tr.Status)
	assert.Empty(t, s.Closed())

	closed := s.Close(110, t0.Add(time.Hour), ExitSignal)
	require.NotNil(t, closed)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, ExitSignal, closed.ExitReason)
	assert.InDelta(t, 10.0, closed.PnL, 1e-9)
	assert.True(t, closed.ExitTime.After(closed.EntryTime))
	assert.Nil(t, s.Position())
	assert.InDelta(t, 10010.0, s.Cash(), 1e-9)
}

func TestClose_NoPositionIsNoOp(t *testing.T) {
	s := NewSimulator("BTC-USD", 10000, frictionless())
	assert.Nil(t, s.Close(100, t0, ExitSignal))
	assert.InDelta(t, 10000.0, s.Cash(), 1e-9)
}

func TestOpen_WhileOpenIsIgnored(t *testing.T) {
	s := NewSimulator("BTC-USD", 10000, frictionless())
	require.NotNil(t, s.Open(Long, 1, 100, 0, 0, t0))
	assert.Nil(t, s.Open(Short, 1, 100, 0, 0, t0))
	assert.Equal(t, Long, s.Position().Direction)
}

func TestCheckExit_StopBeforeTargetSameBar(t *testing.T) {
	s := NewSimulator("BTC-USD", 10000, frictionless())
	s.Open(Long, 1, 100, 95, 105, t0)

	// Bar touches both levels; conservative assumption fills the stop
	bar := market.Bar{Timestamp: t0.Add(time.Hour), Open: 100, High: 110, Low: 90, Close: 100, Volume: 1}
	closed := s.CheckExit(bar, 0)
	require.NotNil(t, closed)
	assert.Equal(t, ExitStopLoss, closed.ExitReason)
	assert.InDelta(t, 95.0, closed.ExitPrice, 1e-9)
	assert.InDelta(t, -5.0, closed.PnL, 1e-9)
}

func TestCheckExit_TakeProfitIntrabarTouch(t *testing.T) {
	s := NewSimulator("BTC-USD", 10000, frictionless())
	s.Open(Long, 2, 100, 95, 105, t0)

	// High touches the target without closing beyond it
	bar := market.Bar{Timestamp: t0.Add(time.Hour), Open: 100, High: 105, Low: 99, Close: 101, Volume: 1}
	closed := s.CheckExit(bar, 0)
	require.NotNil(t, closed)
	assert.Equal(t, ExitTakeProfit, closed.ExitReason)
	assert.InDelta(t, 10.0, closed.PnL, 1e-9)
}

func TestCheckExit_ShortSide(t *testing.T) {
	s := NewSimulator("ETH-USD", 10000, frictionless())
	s.Open(Short, 1, 100, 105, 85, t0)

	bar := market.Bar{Timestamp: t0.Add(time.Hour), Open: 99, High: 100, Low: 84, Close: 90, Volume: 1}
	closed := s.CheckExit(bar, 0)
	require.NotNil(t, closed)
	assert.Equal(t, ExitTakeProfit, closed.ExitReason)
	assert.InDelta(t, 15.0, closed.PnL, 1e-9)
}

func TestCheckExit_TimeStop(t *testing.T) {
	s := NewSimulator("BTC-USD", 10000, frictionless())
	s.Open(Long, 1, 100, 1, 100000, t0)

	bar := market.Bar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	for i := 0; i < 4; i++ {
		bar.Timestamp = t0.Add(time.Duration(i+1) * time.Hour)
		assert.Nil(t, s.CheckExit(bar, 5), "bar %d", i)
	}
	bar.Timestamp = t0.Add(6 * time.Hour)
	closed := s.CheckExit(bar, 5)
	require.NotNil(t, closed)
	assert.Equal(t, ExitTimeStop, closed.ExitReason)
	assert.Equal(t, 5, closed.BarsHeld)
}

func TestCosts_SlippageAndFeesAgainstTrader(t *testing.T) {
	costs := CostModel{FeeBPS: 10, SlippageBPS: 5}
	s := NewSimulator("BTC-USD", 10000, costs)

	tr := s.Open(Long, 1, 10000, 0, 0, t0)
	require.NotNil(t, tr)
	assert.InDelta(t, 10005.0, tr.EntryPrice, 1e-9, "entry slips up for a long")

	closed := s.Close(10000, t0.Add(time.Hour), ExitSignal)
	require.NotNil(t, closed)
	assert.InDelta(t, 9995.0, closed.ExitPrice, 1e-9, "exit slips down for a long")
	assert.Less(t, closed.PnL, -10.0, "round trip at flat price loses slippage plus fees")
	// slippage 5 each way plus 10bps fees on both fills
	assert.InDelta(t, -(10.0 + 10.005 + 9.995), closed.PnL, 1e-9)
	assert.InDelta(t, 10000.0+closed.PnL, s.Cash(), 1e-9, "cash and trade PnL agree")
}

func TestRealized_IgnoresOpenPosition(t *testing.T) {
	costs := CostModel{FeeBPS: 10, SlippageBPS: 5}
	s := NewSimulator("BTC-USD", 10000, costs)

	s.Open(Long, 1, 1000, 0, 0, t0)
	assert.Less(t, s.Cash(), 10000.0, "entry fee leaves cash at open")
	assert.InDelta(t, 10000.0, s.Realized(), 1e-9, "open position has no realized PnL")

	closed := s.Close(1100, t0.Add(time.Hour), ExitSignal)
	require.NotNil(t, closed)
	assert.InDelta(t, 10000.0+closed.PnL, s.Realized(), 1e-9)
	assert.InDelta(t, s.Cash(), s.Realized(), 1e-9, "flat ledger reconciles")
}

func TestEquity_MarksOpenPosition(t *testing.T) {
	s := NewSimulator("BTC-USD", 1000, frictionless())
	s.Open(Long, 2, 100, 0, 0, t0)
	assert.InDelta(t, 1000+2*20, s.Equity(120), 1e-9)
	assert.InDelta(t, 1000-2*10, s.Equity(90), 1e-9)
}

func TestPnLSetIffClosed(t *testing.T) {
	s := NewSimulator("BTC-USD", 1000, frictionless())
	tr := s.Open(Long, 1, 100, 0, 0, t0)
	assert.Zero(t, tr.PnL)
	assert.Equal(t, StatusOpen, tr.Status)

	closed := s.Close(105, t0.Add(time.Hour), ExitSignal)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.NotZero(t, closed.PnL)
}
