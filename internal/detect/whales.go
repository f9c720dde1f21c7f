package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/market"
)

// Whales detects outsized participation from volume spikes against a
// 30-bar baseline; direction follows the spiking bar's body.
type Whales struct {
	baseline   int
	spikeSigma float64
}

// NewWhales builds the detector with a 30-bar baseline and 2-sigma trigger
func NewWhales() *Whales {
	return &Whales{baseline: 30, spikeSigma: 2.0}
}

func (d *Whales) Name() string { return "whales" }

func (d *Whales) MinBars() int { return 30 }

func (d *Whales) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	window := bars[len(bars)-d.baseline:]
	vols := market.Volumes(window)

	mean := 0.0
	for _, v := range vols {
		mean += v
	}
	mean /= float64(len(vols))

	variance := 0.0
	for _, v := range vols {
		variance += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(variance / float64(len(vols)))
	if sd == 0 {
		return NeutralResult("zero volume variance"), nil
	}

	// Scan the last 5 bars for the strongest spike
	var bestZ float64
	var bestBar market.Bar
	for _, b := range window[len(window)-5:] {
		z := (b.Volume - mean) / sd
		if z > bestZ {
			bestZ = z
			bestBar = b
		}
	}
	if bestZ < d.spikeSigma {
		return NeutralResult("no volume spike"), nil
	}

	magnitude := math.Min(1, (bestZ-d.spikeSigma)/d.spikeSigma+0.3)
	score := magnitude
	if bestBar.Body() < 0 {
		score = -score
	} else if bestBar.Body() == 0 {
		return NeutralResult("spike bar has no body"), nil
	}

	confidence := math.Min(1, bestZ/(2*d.spikeSigma))

	return newResult(score, confidence, map[string]interface{}{
		"volume_z":    bestZ,
		"spike_sigma": d.spikeSigma,
	}), nil
}
