package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/market"
)

// Elliott matches the trailing pivot sequence against the five-wave
// impulse rules and scores the expected continuation or correction.
type Elliott struct {
	pivotOrder int
}

// NewElliott builds the detector
func NewElliott() *Elliott {
	return &Elliott{pivotOrder: 4}
}

func (d *Elliott) Name() string { return "elliott" }

func (d *Elliott) MinBars() int { return 150 }

func (d *Elliott) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	pivots := FindPivots(bars, d.pivotOrder)

	// A completed five-wave impulse needs six pivots (start + five turns)
	if seq := lastPivots(pivots, 6); seq != nil {
		if quality, up, ok := impulseQuality(seq); ok {
			// Impulse complete: expect the three-wave correction next
			score := -0.5 * quality
			if !up {
				score = 0.5 * quality
			}
			return newResult(score, 0.4+0.4*quality, map[string]interface{}{
				"phase":   "impulse_complete",
				"impulse": directionLabel(up),
				"quality": quality,
			}), nil
		}
	}

	// Five pivots: waves 1-4 printed, wave 5 may be developing
	if seq := lastPivots(pivots, 5); seq != nil {
		if quality, up, ok := developingImpulse(seq, bars); ok {
			score := 0.6 * quality
			if !up {
				score = -0.6 * quality
			}
			return newResult(score, 0.4+0.4*quality, map[string]interface{}{
				"phase":   "wave5_developing",
				"impulse": directionLabel(up),
				"quality": quality,
			}), nil
		}
	}

	return NeutralResult("no impulse structure"), nil
}

func directionLabel(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

// impulseQuality validates six pivots as a completed five-wave impulse and
// returns a quality in (0,1] plus the impulse direction.
//
// Rules enforced: wave 2 never retraces beyond the wave 1 start, wave 3 is
// never the shortest motive wave, wave 4 does not overlap wave 1 territory.
func impulseQuality(seq []Pivot) (float64, bool, bool) {
	up := seq[0].Kind == PivotLow
	// Pivot kinds must alternate in the right phase for the direction
	for i, p := range seq {
		wantLow := (i%2 == 0) == up
		if (p.Kind == PivotLow) != wantLow {
			return 0, up, false
		}
	}

	p0, p1, p2, p3, p4, p5 := seq[0].Price, seq[1].Price, seq[2].Price, seq[3].Price, seq[4].Price, seq[5].Price

	w1 := math.Abs(p1 - p0)
	w3 := math.Abs(p3 - p2)
	w5 := math.Abs(p5 - p4)
	if w1 == 0 || w3 == 0 || w5 == 0 {
		return 0, up, false
	}

	if up {
		if p2 <= p0 { // wave 2 beyond wave 1 start
			return 0, up, false
		}
		if p4 <= p1 { // wave 4 overlaps wave 1
			return 0, up, false
		}
		if p3 <= p1 || p5 <= p3 { // motive waves must make progress
			return 0, up, false
		}
	} else {
		if p2 >= p0 {
			return 0, up, false
		}
		if p4 >= p1 {
			return 0, up, false
		}
		if p3 >= p1 || p5 >= p3 {
			return 0, up, false
		}
	}

	if w3 < w1 && w3 < w5 { // wave 3 shortest
		return 0, up, false
	}

	// Quality rewards a classic extended wave 3
	extension := w3 / w1
	quality := math.Min(1, extension/1.618)
	return quality, up, true
}

// developingImpulse validates five pivots as waves 1-4 with wave 5 underway,
// confirmed by price pressing beyond the wave 3 extreme.
func developingImpulse(seq []Pivot, bars []market.Bar) (float64, bool, bool) {
	up := seq[0].Kind == PivotLow
	for i, p := range seq {
		wantLow := (i%2 == 0) == up
		if (p.Kind == PivotLow) != wantLow {
			return 0, up, false
		}
	}

	p0, p1, p2, p3, p4 := seq[0].Price, seq[1].Price, seq[2].Price, seq[3].Price, seq[4].Price
	w1 := math.Abs(p1 - p0)
	w3 := math.Abs(p3 - p2)
	if w1 == 0 || w3 == 0 {
		return 0, up, false
	}

	price := bars[len(bars)-1].Close
	if up {
		if p2 <= p0 || p4 <= p1 || p3 <= p1 {
			return 0, up, false
		}
		if price <= p4 { // wave 5 must be progressing off the wave 4 low
			return 0, up, false
		}
	} else {
		if p2 >= p0 || p4 >= p1 || p3 >= p1 {
			return 0, up, false
		}
		if price >= p4 {
			return 0, up, false
		}
	}

	extension := w3 / w1
	quality := math.Min(1, extension/1.618)

	// Late wave 5 (price beyond the wave 3 extreme) weakens continuation
	if (up && price > p3) || (!up && price < p3) {
		quality *= 0.6
	}
	return quality, up, true
}
