package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/market"
)

// PriceAction combines candle patterns (engulfing, pin bar, inside bar)
// with the recent higher-high/lower-low swing structure.
type PriceAction struct {
	structureWindow int
}

// NewPriceAction builds the detector with a 20-bar structure window
func NewPriceAction() *PriceAction {
	return &PriceAction{structureWindow: 20}
}

func (d *PriceAction) Name() string { return "priceaction" }

func (d *PriceAction) MinBars() int { return 40 }

func (d *PriceAction) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	patternScore, pattern := d.candlePattern(bars)
	structScore := d.structureBias(bars)

	score := 0.6*patternScore + 0.4*structScore
	if patternScore == 0 && structScore == 0 {
		return NeutralResult("no pattern or structure bias"), nil
	}

	confidence := 0.3 + 0.4*math.Abs(patternScore) + 0.2*math.Abs(structScore)

	return newResult(score, confidence, map[string]interface{}{
		"pattern":         pattern,
		"pattern_score":   patternScore,
		"structure_score": structScore,
	}), nil
}

// candlePattern inspects the last two bars for classic reversal patterns
func (d *PriceAction) candlePattern(bars []market.Bar) (float64, string) {
	cur := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	if cur.Range() == 0 {
		return 0, "none"
	}

	// Engulfing: current body fully contains and reverses the prior body
	if math.Abs(cur.Body()) > math.Abs(prev.Body()) && prev.Body() != 0 {
		if cur.Bullish() && !prev.Bullish() && cur.Close > prev.Open && cur.Open < prev.Close {
			return 0.8, "bullish_engulfing"
		}
		if !cur.Bullish() && prev.Bullish() && cur.Close < prev.Open && cur.Open > prev.Close {
			return -0.8, "bearish_engulfing"
		}
	}

	// Pin bar: long wick at least twice the body, small opposite wick
	body := math.Abs(cur.Body())
	upperWick := cur.High - math.Max(cur.Open, cur.Close)
	lowerWick := math.Min(cur.Open, cur.Close) - cur.Low
	if lowerWick > 2*body && upperWick < body {
		return 0.6, "bullish_pin"
	}
	if upperWick > 2*body && lowerWick < body {
		return -0.6, "bearish_pin"
	}

	// Inside bar: compression, mild continuation signal with prior body
	if cur.High < prev.High && cur.Low > prev.Low {
		if prev.Bullish() {
			return 0.3, "inside_bar_bull"
		}
		if prev.Body() < 0 {
			return -0.3, "inside_bar_bear"
		}
	}

	return 0, "none"
}

// structureBias scores higher-high/higher-low vs lower-high/lower-low
// sequences over the structure window.
func (d *PriceAction) structureBias(bars []market.Bar) float64 {
	window := bars[len(bars)-d.structureWindow:]
	half := len(window) / 2

	firstHigh, firstLow := extremes(window[:half])
	secondHigh, secondLow := extremes(window[half:])

	switch {
	case secondHigh > firstHigh && secondLow > firstLow:
		return 0.7 // higher high + higher low
	case secondHigh < firstHigh && secondLow < firstLow:
		return -0.7 // lower high + lower low
	case secondHigh > firstHigh:
		return 0.2
	case secondLow < firstLow:
		return -0.2
	}
	return 0
}

func extremes(bars []market.Bar) (high, low float64) {
	high = bars[0].High
	low = bars[0].Low
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}
