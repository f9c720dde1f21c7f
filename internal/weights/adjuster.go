package weights

import (
	"github.com/quantfuse/quantfuse/internal/regime"
)

// RegimeMultipliers maps regime flag name -> signal name -> multiplier.
// Absent pairs leave the weight unchanged; multipliers for simultaneously
// active regimes compose multiplicatively.
type RegimeMultipliers map[string]map[string]float64

// DefaultRegimeMultipliers returns the tuned per-regime adjustments
func DefaultRegimeMultipliers() RegimeMultipliers {
	return RegimeMultipliers{
		regime.FlagNewsWindow: {
			"news":      1.4,
			"sentiment": 1.2,
			"harmonic":  0.7,
			"elliott":   0.7,
		},
		regime.FlagHighVol: {
			"rsi_macd":  0.7,
			"fibonacci": 0.7,
			"whales":    1.3,
			"sar":       0.8,
		},
		regime.FlagWideSpread: {
			"priceaction": 0.8,
			"whales":      0.8,
		},
		regime.FlagTrend: {
			"sar":         1.2,
			"priceaction": 1.2,
			"smc":         1.1,
		},
		regime.FlagRange: {
			"elliott":   0.5,
			"sar":       0.5,
			"rsi_macd":  1.2,
			"fibonacci": 1.1,
		},
	}
}

// OnlineAdaptation is the learned per-signal multiplier layer fed by
// post-trade attribution (EWMA updates).
type OnlineAdaptation struct {
	PerSignal map[string]float64 `yaml:"per_signal" json:"per_signal"`
	Decay     float64            `yaml:"decay" json:"decay"`         // EWMA decay (default: 0.94)
	Alpha     float64            `yaml:"alpha" json:"alpha"`         // Contribution gain (default: 0.2)
	ClipMin   float64            `yaml:"clip_min" json:"clip_min"`   // Multiplier floor (default: 0.5)
	ClipMax   float64            `yaml:"clip_max" json:"clip_max"`   // Multiplier ceiling (default: 1.5)
}

// DefaultOnlineAdaptation returns the neutral starting state
func DefaultOnlineAdaptation() OnlineAdaptation {
	return OnlineAdaptation{
		PerSignal: map[string]float64{},
		Decay:     0.94,
		Alpha:     0.2,
		ClipMin:   0.5,
		ClipMax:   1.5,
	}
}

// Multiplier returns the clipped learned multiplier for a signal.
// Unknown signals are neutral (1.0).
func (o OnlineAdaptation) Multiplier(signal string) float64 {
	m, ok := o.PerSignal[signal]
	if !ok {
		return 1.0
	}
	if m < o.ClipMin {
		return o.ClipMin
	}
	if m > o.ClipMax {
		return o.ClipMax
	}
	return m
}

// Update applies one EWMA attribution step for each supplied contribution
// in [-1,1]: m <- decay*m + (1-decay)*(1 + alpha*contribution). The raw
// stored multiplier is unclipped; clipping happens on read.
func (o *OnlineAdaptation) Update(contributions map[string]float64) {
	if o.PerSignal == nil {
		o.PerSignal = map[string]float64{}
	}
	for signal, contrib := range contributions {
		if contrib < -1 {
			contrib = -1
		} else if contrib > 1 {
			contrib = 1
		}
		m, ok := o.PerSignal[signal]
		if !ok {
			m = 1.0
		}
		o.PerSignal[signal] = o.Decay*m + (1-o.Decay)*(1+o.Alpha*contrib)
	}
}

// Adjuster is the three-layer dynamic weight transform: regime detection,
// regime multipliers, then learned online multipliers, always ending in
// re-normalization.
type Adjuster struct {
	multipliers RegimeMultipliers
}

// NewAdjuster creates a weight adjuster with the given regime multipliers
func NewAdjuster(multipliers RegimeMultipliers) *Adjuster {
	return &Adjuster{multipliers: multipliers}
}

// Adjust transforms base weights for the active regime flags and online
// state. The base mapping is never mutated; the result sums to 1.0.
func (a *Adjuster) Adjust(base Weights, flags regime.Flags, online OnlineAdaptation) Weights {
	out := base.Clone()

	for _, flag := range flags.Active() {
		table, ok := a.multipliers[flag]
		if !ok {
			continue
		}
		for signal, mult := range table {
			if _, exists := out[signal]; exists {
				out[signal] *= mult
			}
		}
	}

	for signal := range out {
		out[signal] *= online.Multiplier(signal)
	}

	return out.Normalize()
}
