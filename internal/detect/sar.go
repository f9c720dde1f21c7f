package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/indicators"
	"github.com/quantfuse/quantfuse/internal/market"
)

// SAR scores trend direction from the parabolic stop-and-reverse position
// relative to price, with recent flips boosting confidence.
type SAR struct {
	afStart float64
	afStep  float64
	afMax   float64
}

// NewSAR builds the detector with the standard 0.02/0.02/0.2 schedule
func NewSAR() *SAR {
	return &SAR{afStart: 0.02, afStep: 0.02, afMax: 0.2}
}

func (d *SAR) Name() string { return "sar" }

func (d *SAR) MinBars() int { return 60 }

func (d *SAR) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}
	series := indicators.ParabolicSAR(bars, d.afStart, d.afStep, d.afMax)
	if series == nil {
		return NeutralResult("sar unavailable"), nil
	}

	last := series[len(series)-1]
	price := bars[len(bars)-1].Close
	if price == 0 || price == last.Value {
		return NeutralResult("degenerate price"), nil
	}

	// Distance between price and SAR, scaled; sign from trail side
	distance := math.Abs(price-last.Value) / price
	score := math.Tanh(distance * 40)
	if !last.Rising {
		score = -score
	}

	// Count bars since the last flip; a fresh flip is the strongest signal
	barsSinceFlip := 0
	for i := len(series) - 2; i >= 0; i-- {
		if series[i].Rising != last.Rising {
			break
		}
		barsSinceFlip++
	}
	confidence := 0.3 + 0.4*math.Exp(-float64(barsSinceFlip)/10.0) + 0.2*math.Min(1, distance*20)

	return newResult(score, confidence, map[string]interface{}{
		"sar":             last.Value,
		"rising":          last.Rising,
		"bars_since_flip": barsSinceFlip,
	}), nil
}
