package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/market"
)

// HarmonicConfig holds the pattern-matching tolerances
type HarmonicConfig struct {
	PivotOrder   int     `yaml:"pivot_order"`   // Symmetric pivot window (default: 4)
	QualityFloor float64 `yaml:"quality_floor"` // Min averaged quality to accept (default: 0.3)
}

// DefaultHarmonicConfig returns the tuned production thresholds
func DefaultHarmonicConfig() HarmonicConfig {
	return HarmonicConfig{PivotOrder: 4, QualityFloor: 0.3}
}

// ratioWindow is one Fibonacci ratio check: an ideal value with a
// symmetric tolerance band around it.
type ratioWindow struct {
	ideal float64
	tol   float64
}

func (w ratioWindow) quality(ratio float64) (float64, bool) {
	dev := math.Abs(ratio - w.ideal)
	if dev > w.tol {
		return 0, false
	}
	return 1 - dev/w.tol, true
}

// harmonicPattern names a 5-point XABCD shape and its three leg-ratio windows
type harmonicPattern struct {
	name string
	ab   ratioWindow // AB retracement of XA
	bc   ratioWindow // BC retracement of AB
	ad   ratioWindow // AD extension/retracement of XA
}

var harmonicPatterns = []harmonicPattern{
	{name: "gartley", ab: ratioWindow{0.618, 0.08}, bc: ratioWindow{0.634, 0.252}, ad: ratioWindow{0.786, 0.1}},
	{name: "bat", ab: ratioWindow{0.441, 0.068}, bc: ratioWindow{0.634, 0.252}, ad: ratioWindow{0.886, 0.09}},
	{name: "butterfly", ab: ratioWindow{0.786, 0.08}, bc: ratioWindow{0.634, 0.252}, ad: ratioWindow{1.414, 0.186}},
	{name: "crab", ab: ratioWindow{0.5, 0.118}, bc: ratioWindow{0.634, 0.252}, ad: ratioWindow{1.618, 0.12}},
}

// Harmonic matches the trailing XABCD pivot structure against the named
// harmonic patterns and scores the best qualifying match.
type Harmonic struct {
	cfg HarmonicConfig
}

// NewHarmonic builds the detector
func NewHarmonic(cfg HarmonicConfig) *Harmonic {
	return &Harmonic{cfg: cfg}
}

func (d *Harmonic) Name() string { return "harmonic" }

func (d *Harmonic) MinBars() int { return 120 }

func (d *Harmonic) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	pivots := FindPivots(bars, d.cfg.PivotOrder)
	xabcd := lastPivots(pivots, 5)
	if xabcd == nil {
		return NeutralResult("insufficient pivot structure"), nil
	}

	x, a, b, c, pd := xabcd[0].Price, xabcd[1].Price, xabcd[2].Price, xabcd[3].Price, xabcd[4].Price
	xa := math.Abs(a - x)
	ab := math.Abs(b - a)
	bc := math.Abs(c - b)
	ad := math.Abs(pd - a)
	if xa == 0 || ab == 0 {
		return NeutralResult("degenerate legs"), nil
	}

	abRatio := ab / xa
	bcRatio := bc / ab
	adRatio := ad / xa

	bestQuality := 0.0
	bestName := ""
	for _, p := range harmonicPatterns {
		qAB, okAB := p.ab.quality(abRatio)
		qBC, okBC := p.bc.quality(bcRatio)
		qAD, okAD := p.ad.quality(adRatio)

		// Average only the checks inside their windows; any out-of-range
		// ratio requires the averaged quality to clear the floor.
		var sum float64
		var n int
		for _, q := range []struct {
			ok bool
			v  float64
		}{{okAB, qAB}, {okBC, qBC}, {okAD, qAD}} {
			if q.ok {
				sum += q.v
				n++
			}
		}
		if n == 0 {
			continue
		}
		quality := sum / float64(n)
		allInRange := okAB && okBC && okAD
		if !allInRange && quality < d.cfg.QualityFloor {
			continue
		}
		if quality > bestQuality {
			bestQuality = quality
			bestName = p.name
		}
	}

	if bestName == "" {
		return NeutralResult("no harmonic pattern"), nil
	}

	// Pattern completing at a D low projects a reversal up, and vice versa
	score := bestQuality
	if xabcd[4].Kind == PivotHigh {
		score = -score
	}
	confidence := 0.9 * bestQuality

	return newResult(score, confidence, map[string]interface{}{
		"pattern":  bestName,
		"quality":  bestQuality,
		"ab_ratio": abRatio,
		"bc_ratio": bcRatio,
		"ad_ratio": adRatio,
	}), nil
}
