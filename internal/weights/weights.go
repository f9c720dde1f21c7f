// Package weights manages detector weight configurations: validation,
// normalization, regime-aware adjustment and the online EWMA layer.
package weights

import (
	"fmt"
	"math"
	"sort"
)

// SumTolerance is the accepted deviation of a weight config's sum from 1.0
const SumTolerance = 0.01

// ErrInvalidWeights marks weight configurations rejected at load time
var ErrInvalidWeights = fmt.Errorf("invalid weight configuration")

// Weights maps detector name to its allocation in [0,1], summing to ~1.0
type Weights map[string]float64

// DefaultWeights returns the production allocation across the detector battery
func DefaultWeights() Weights {
	return Weights{
		"rsi_macd":    0.14,
		"smc":         0.16,
		"harmonic":    0.08,
		"elliott":     0.06,
		"fibonacci":   0.08,
		"priceaction": 0.12,
		"sar":         0.06,
		"sentiment":   0.08,
		"news":        0.06,
		"whales":      0.06,
		"ml_ensemble": 0.10,
	}
}

// Validate rejects configurations whose entries leave [0,1] or whose sum
// strays more than SumTolerance from 1.0.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidWeights)
	}
	sum := 0.0
	for name, v := range w {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%.4f outside [0,1]", ErrInvalidWeights, name, v)
		}
		sum += v
	}
	if math.Abs(sum-1.0) >= SumTolerance {
		return fmt.Errorf("%w: sum %.4f not within %.2f of 1.0", ErrInvalidWeights, sum, SumTolerance)
	}
	return nil
}

// Clone returns an independent copy
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Names returns the weight keys in sorted order
func (w Weights) Names() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum returns the total allocation
func (w Weights) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Normalize returns a copy scaled to sum exactly 1.0. Negative entries are
// zeroed before scaling; they never contribute. A zero-sum input falls back
// to a uniform allocation. Normalize is idempotent: applying it to an
// already-normalized mapping returns the same mapping.
func (w Weights) Normalize() Weights {
	out := make(Weights, len(w))
	sum := 0.0
	for name, v := range w {
		if v < 0 {
			v = 0
		}
		out[name] = v
		sum += v
	}
	if sum == 0 {
		uniform := 1.0 / float64(len(w))
		for name := range out {
			out[name] = uniform
		}
		return out
	}
	for name := range out {
		out[name] /= sum
	}
	return out
}
