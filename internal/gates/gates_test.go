package gates

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfuse/quantfuse/internal/sim"
)

// passingInputs returns inputs that clear every gate for a long
func passingInputs() Inputs {
	return Inputs{
		Direction:       sim.Long,
		MACDHistSlope:   0.01,
		SMCZQS:          0.6,
		FVGATR:          0.8,
		LiquidityNear:   true,
		HasSecondBOS:    true,
		Sentiment:       0.7,
		EntryScore:      0.7,
		ConfluenceScore: 0.7,
		HTFTrend:        1,
	}
}

func TestEvaluate_AllPass(t *testing.T) {
	report := NewEvaluator(DefaultThresholds()).Evaluate(passingInputs())
	assert.True(t, report.Allow)
	assert.Len(t, report.Gates, 5)
	for name, r := range report.Gates {
		assert.True(t, r.Passed, name)
	}
}

func TestMomentumGate_BlocksShortWithRisingHistogram(t *testing.T) {
	// A short whose MACD histogram slope is positive must be blocked
	// regardless of every other input.
	in := passingInputs()
	in.Direction = sim.Short
	in.MACDHistSlope = +0.01
	in.Sentiment = 0.2 // keep the sentiment gate passing for a short
	in.HTFTrend = -1

	report := NewEvaluator(DefaultThresholds()).Evaluate(in)
	assert.False(t, report.Allow)
	assert.False(t, report.Gates["momentum"].Passed)
}

func TestSMCGate_LiquidityIsMandatory(t *testing.T) {
	in := passingInputs()
	in.LiquidityNear = false

	report := NewEvaluator(DefaultThresholds()).Evaluate(in)
	assert.False(t, report.Allow)
	assert.False(t, report.Gates["smc"].Passed)
	assert.Equal(t, "no liquidity nearby", report.Gates["smc"].Reason)
}

func TestSMCGate_ZQSAndFVGThresholds(t *testing.T) {
	ev := NewEvaluator(DefaultThresholds())

	in := passingInputs()
	in.SMCZQS = 0.3
	assert.False(t, ev.Evaluate(in).Gates["smc"].Passed)

	in = passingInputs()
	in.FVGATR = 0.2
	assert.False(t, ev.Evaluate(in).Gates["smc"].Passed)
}

func TestSentimentGate_Sides(t *testing.T) {
	ev := NewEvaluator(DefaultThresholds())

	in := passingInputs()
	in.Sentiment = 0.4
	assert.False(t, ev.Evaluate(in).Gates["sentiment"].Passed)

	in = passingInputs()
	in.Direction = sim.Short
	in.MACDHistSlope = -0.01
	in.Sentiment = 0.5 // exactly 0.5 passes both sides
	in.HTFTrend = -1
	assert.True(t, ev.Evaluate(in).Gates["sentiment"].Passed)
}

func TestConfluenceGate_BothScoresRequired(t *testing.T) {
	ev := NewEvaluator(DefaultThresholds())

	in := passingInputs()
	in.EntryScore = 0.64
	assert.False(t, ev.Evaluate(in).Gates["confluence"].Passed)

	in = passingInputs()
	in.ConfluenceScore = 0.59
	assert.False(t, ev.Evaluate(in).Gates["confluence"].Passed)
}

func TestCountertrendGate_RequiresSecondBOS(t *testing.T) {
	th := DefaultThresholds()
	ev := NewEvaluator(th)

	in := passingInputs()
	in.HTFTrend = -1 // long against a down trend
	in.HasSecondBOS = false
	assert.False(t, ev.Evaluate(in).Gates["countertrend"].Passed)

	in.HasSecondBOS = true
	assert.True(t, ev.Evaluate(in).Gates["countertrend"].Passed)

	// Disabled confirmation waives the requirement
	th.RequireBOS2 = false
	in.HasSecondBOS = false
	assert.True(t, NewEvaluator(th).Evaluate(in).Gates["countertrend"].Passed)
}
