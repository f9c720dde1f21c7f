// Package calibrate tunes the scoring layer offline: a genetic optimizer
// for detector weights, a Q-learning tuner for entry thresholds, and the
// post-trade attribution feeding the online weight adaptation.
package calibrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/weights"
)

// ErrEmptyWalk is returned when no evaluation samples could be built
var ErrEmptyWalk = errors.New("calibration walk is empty")

// Sample is one step of a walk-forward evaluation: per-detector
// normalized scores for a bar window and the return of the bar after it.
type Sample struct {
	Normalized map[string]float64 // per-detector (score+1)/2
	Confidence map[string]float64
	NextReturn float64
}

// BuildWalk runs the detector battery over sliding windows and pairs each
// window's normalized scores with the next bar's return. step controls
// the stride between evaluated bars; minBars is the smallest window scored.
func BuildWalk(ctx context.Context, bars []market.Bar, registry *detect.Registry, minBars, step int) ([]Sample, error) {
	if step <= 0 {
		step = 1
	}
	if minBars <= 0 {
		minBars = 100
	}
	if len(bars) <= minBars {
		return nil, fmt.Errorf("walk needs more than %d bars, have %d", minBars, len(bars))
	}

	samples := make([]Sample, 0, (len(bars)-minBars)/step)
	for i := minBars; i < len(bars)-1; i += step {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("walk cancelled at bar %d: %w", i, ctx.Err())
		default:
		}

		window := bars[:i+1]
		s := Sample{
			Normalized: make(map[string]float64, registry.Len()),
			Confidence: make(map[string]float64, registry.Len()),
		}
		for _, d := range registry.All() {
			result, err := d.Detect(ctx, window, nil)
			if err != nil {
				result = detect.NeutralResult("detector error")
			}
			s.Normalized[d.Name()] = (result.Score + 1) / 2
			s.Confidence[d.Name()] = result.Confidence
		}
		prev := bars[i].Close
		if prev > 0 {
			s.NextReturn = bars[i+1].Close/prev - 1
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyWalk
	}
	return samples, nil
}

// WalkFitness builds a fitness function from walk samples: the cumulative
// return of going long whenever the weighted score reaches 0.5, flat
// otherwise.
func WalkFitness(samples []Sample) (Fitness, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyWalk
	}
	return func(w weights.Weights) float64 {
		total := 0.0
		for _, s := range samples {
			if weightedScore(w, s.Normalized) >= 0.5 {
				total += s.NextReturn
			}
		}
		return total
	}, nil
}

// weightedScore blends normalized detector scores with weights summing
// to one; detectors missing from the sample count as neutral.
func weightedScore(w weights.Weights, normalized map[string]float64) float64 {
	score := 0.0
	for name, weight := range w {
		norm, ok := normalized[name]
		if !ok {
			norm = 0.5
		}
		score += weight * norm
	}
	return score
}
