package calibrate

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
)

// ThresholdEval reports the performance of a threshold pair on a scale
// where higher is better, ideally [0,1] (e.g. win rate).
type ThresholdEval func(entry, confluence float64) float64

// RLConfig holds the Q-learning tuner parameters
type RLConfig struct {
	Episodes     int     `yaml:"episodes"`      // update steps (default: 200)
	Alpha        float64 `yaml:"alpha"`         // learning rate (default: 0.1)
	Gamma        float64 `yaml:"gamma"`         // discount factor (default: 0.9)
	Epsilon      float64 `yaml:"epsilon"`       // exploration rate (default: 0.1)
	Step         float64 `yaml:"step"`          // threshold nudge size (default: 0.02)
	MinThreshold float64 `yaml:"min_threshold"` // (default: 0.3)
	MaxThreshold float64 `yaml:"max_threshold"` // (default: 0.9)
	Seed         int64   `yaml:"seed"`
}

// DefaultRLConfig returns the production tuner parameters
func DefaultRLConfig() RLConfig {
	return RLConfig{
		Episodes:     200,
		Alpha:        0.1,
		Gamma:        0.9,
		Epsilon:      0.1,
		Step:         0.02,
		MinThreshold: 0.3,
		MaxThreshold: 0.9,
		Seed:         1,
	}
}

// RLResult is the tuner outcome: the best threshold pair observed
type RLResult struct {
	EntryScore      float64 `json:"entry_score"`
	ConfluenceScore float64 `json:"confluence_score"`
	Performance     float64 `json:"performance"`
}

// The four actions nudge one threshold by one step in one direction
const (
	actionEntryUp = iota
	actionEntryDown
	actionConfluenceUp
	actionConfluenceDown
	actionCount
)

type stateAction struct {
	state  int
	action int
}

// TuneThresholds runs tabular Q-learning over the discretized performance
// state floor(perf*10). Each episode nudges one threshold, observes the
// new performance and applies the standard Q update with the performance
// delta as reward. Thresholds are clamped to [MinThreshold, MaxThreshold].
func (c RLConfig) TuneThresholds(ctx context.Context, entry, confluence float64, eval ThresholdEval) (*RLResult, error) {
	if eval == nil {
		return nil, fmt.Errorf("nil threshold evaluator")
	}
	if c.Episodes < 1 {
		c.Episodes = 1
	}

	rng := rand.New(rand.NewSource(c.Seed))
	q := make(map[stateAction]float64)

	entry = c.clamp(entry)
	confluence = c.clamp(confluence)
	perf := eval(entry, confluence)
	best := &RLResult{EntryScore: entry, ConfluenceScore: confluence, Performance: perf}

	for ep := 0; ep < c.Episodes; ep++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("threshold tuning cancelled at episode %d: %w", ep, ctx.Err())
		default:
		}

		state := discretize(perf)
		action := c.chooseAction(rng, q, state)

		nextEntry, nextConfluence := c.apply(action, entry, confluence)
		nextPerf := eval(nextEntry, nextConfluence)
		nextState := discretize(nextPerf)

		reward := nextPerf - perf
		key := stateAction{state, action}
		q[key] += c.Alpha * (reward + c.Gamma*maxQ(q, nextState) - q[key])

		entry, confluence, perf = nextEntry, nextConfluence, nextPerf
		if perf > best.Performance {
			best = &RLResult{EntryScore: entry, ConfluenceScore: confluence, Performance: perf}
		}
	}

	log.Info().
		Float64("entry_score", best.EntryScore).
		Float64("confluence_score", best.ConfluenceScore).
		Float64("performance", best.Performance).
		Msg("threshold tuning finished")
	return best, nil
}

// chooseAction is epsilon-greedy over the state's action values
func (c RLConfig) chooseAction(rng *rand.Rand, q map[stateAction]float64, state int) int {
	if rng.Float64() < c.Epsilon {
		return rng.Intn(actionCount)
	}
	best, bestValue := 0, math.Inf(-1)
	for a := 0; a < actionCount; a++ {
		if v := q[stateAction{state, a}]; v > bestValue {
			best, bestValue = a, v
		}
	}
	return best
}

func (c RLConfig) apply(action int, entry, confluence float64) (float64, float64) {
	switch action {
	case actionEntryUp:
		entry += c.Step
	case actionEntryDown:
		entry -= c.Step
	case actionConfluenceUp:
		confluence += c.Step
	case actionConfluenceDown:
		confluence -= c.Step
	}
	return c.clamp(entry), c.clamp(confluence)
}

func (c RLConfig) clamp(v float64) float64 {
	if v < c.MinThreshold {
		return c.MinThreshold
	}
	if v > c.MaxThreshold {
		return c.MaxThreshold
	}
	return v
}

// discretize buckets a performance reading into the Q-table state
func discretize(perf float64) int {
	s := int(math.Floor(perf * 10))
	if s < -10 {
		return -10
	}
	if s > 10 {
		return 10
	}
	return s
}

func maxQ(q map[stateAction]float64, state int) float64 {
	best := math.Inf(-1)
	for a := 0; a < actionCount; a++ {
		if v := q[stateAction{state, a}]; v > best {
			best = v
		}
	}
	return best
}
