package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/market"
)

// Fibonacci scores proximity of the current close to retracement levels of
// the last major swing, favoring golden-pocket pullbacks in trend direction.
type Fibonacci struct {
	swingWindow int
}

// NewFibonacci builds the detector over an 80-bar swing window
func NewFibonacci() *Fibonacci {
	return &Fibonacci{swingWindow: 80}
}

func (d *Fibonacci) Name() string { return "fibonacci" }

func (d *Fibonacci) MinBars() int { return 80 }

var fibLevels = []float64{0.382, 0.5, 0.618, 0.65, 0.786}

func (d *Fibonacci) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	window := bars[len(bars)-d.swingWindow:]
	hiIdx, loIdx := 0, 0
	for i, b := range window {
		if b.High > window[hiIdx].High {
			hiIdx = i
		}
		if b.Low < window[loIdx].Low {
			loIdx = i
		}
	}
	swingHigh := window[hiIdx].High
	swingLow := window[loIdx].Low
	swingRange := swingHigh - swingLow
	if swingRange == 0 {
		return NeutralResult("zero swing range"), nil
	}

	close := window[len(window)-1].Close
	uptrendSwing := loIdx < hiIdx // low printed before high: impulse was up

	// Retracement fraction of the impulse given back by the pullback
	var retrace float64
	if uptrendSwing {
		retrace = (swingHigh - close) / swingRange
	} else {
		retrace = (close - swingLow) / swingRange
	}
	if retrace < 0 || retrace > 1 {
		return NeutralResult("price outside swing range"), nil
	}

	// Proximity to the nearest level; golden pocket (0.618-0.65) is best
	bestLevel, bestDist := 0.0, math.Inf(1)
	for _, lvl := range fibLevels {
		if dist := math.Abs(retrace - lvl); dist < bestDist {
			bestDist = dist
			bestLevel = lvl
		}
	}
	if bestDist > 0.05 {
		return NeutralResult("no fib level nearby"), nil
	}

	quality := 1 - bestDist/0.05
	if bestLevel >= 0.618 && bestLevel <= 0.65 {
		quality = math.Min(1, quality*1.25)
	}

	score := 0.4 + 0.5*quality
	if !uptrendSwing {
		score = -score
	}
	confidence := 0.3 + 0.5*quality

	return newResult(score, confidence, map[string]interface{}{
		"swing_high": swingHigh,
		"swing_low":  swingLow,
		"retrace":    retrace,
		"level":      bestLevel,
	}), nil
}
