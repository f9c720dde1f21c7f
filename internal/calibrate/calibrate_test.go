package calibrate

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/scoring"
	"github.com/quantfuse/quantfuse/internal/sim"
	"github.com/quantfuse/quantfuse/internal/weights"
)

type fixedDetector struct {
	name  string
	score float64
}

func (d *fixedDetector) Name() string { return d.name }

func (d *fixedDetector) MinBars() int { return 1 }

func (d *fixedDetector) Detect(_ context.Context, _ []market.Bar, _ detect.MarketContext) (detect.Result, error) {
	dir := detect.Neutral
	if d.score > 0 {
		dir = detect.Bullish
	} else if d.score < 0 {
		dir = detect.Bearish
	}
	return detect.Result{Score: d.score, Confidence: 0.8, Direction: dir}, nil
}

func TestBuildWalk_SamplesAndReturns(t *testing.T) {
	registry := detect.NewRegistry()
	require.NoError(t, registry.Register(&fixedDetector{name: "fixed", score: 0.5}))

	bars := market.GenerateBars(30, market.DefaultSyntheticConfig())
	samples, err := BuildWalk(context.Background(), bars, registry, 10, 1)
	require.NoError(t, err)
	require.Len(t, samples, 19)

	for _, s := range samples {
		assert.InDelta(t, 0.75, s.Normalized["fixed"], 1e-12)
		assert.InDelta(t, 0.8, s.Confidence["fixed"], 1e-12)
	}
	// first sample pairs bar 10 with bar 11's return
	want := bars[11].Close/bars[10].Close - 1
	assert.InDelta(t, want, samples[0].NextReturn, 1e-12)
}

func TestBuildWalk_TooShort(t *testing.T) {
	registry := detect.NewRegistry()
	require.NoError(t, registry.Register(&fixedDetector{name: "fixed", score: 0}))

	bars := market.GenerateBars(5, market.DefaultSyntheticConfig())
	_, err := BuildWalk(context.Background(), bars, registry, 10, 1)
	assert.Error(t, err)
}

func TestWalkFitness_EmptyWalk(t *testing.T) {
	_, err := WalkFitness(nil)
	assert.ErrorIs(t, err, ErrEmptyWalk)
}

// predictorWalk alternates positive and negative return bars. The "good"
// detector calls every bar correctly; the "bad" one is always bullish.
func predictorWalk(n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		ret := 0.01
		goodNorm := 1.0
		if i%2 == 1 {
			ret = -0.01
			goodNorm = 0.0
		}
		samples[i] = Sample{
			Normalized: map[string]float64{"good": goodNorm, "bad": 1.0},
			NextReturn: ret,
		}
	}
	return samples
}

func TestWalkFitness_RewardsPredictiveWeights(t *testing.T) {
	fitness, err := WalkFitness(predictorWalk(20))
	require.NoError(t, err)

	allGood := weights.Weights{"good": 1, "bad": 0}
	allBad := weights.Weights{"good": 0, "bad": 1}
	assert.InDelta(t, 0.1, fitness(allGood), 1e-9, "ten winning longs, flat on losers")
	assert.InDelta(t, 0.0, fitness(allBad), 1e-9, "always long nets zero on the alternating walk")
}

func TestOptimizeWeights_ImprovesOnBase(t *testing.T) {
	fitness, err := WalkFitness(predictorWalk(20))
	require.NoError(t, err)

	base := weights.Weights{"good": 0.5, "bad": 0.5}
	result, err := DefaultGAConfig().OptimizeWeights(context.Background(), base, fitness)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.BestFitness, fitness(base))
	assert.Greater(t, result.BestFitness, 0.0)
	assert.NoError(t, result.Best.Validate())
	for name, w := range result.Best {
		assert.GreaterOrEqual(t, w, 0.0, name)
	}
	assert.Len(t, result.History, DefaultGAConfig().Generations)
}

func TestOptimizeWeights_DeterministicForSeed(t *testing.T) {
	fitness, err := WalkFitness(predictorWalk(20))
	require.NoError(t, err)
	base := weights.Weights{"good": 0.5, "bad": 0.5}

	run := func() *GAResult {
		r, err := DefaultGAConfig().OptimizeWeights(context.Background(), base, fitness)
		require.NoError(t, err)
		return r
	}
	a, b := run(), run()
	assert.Equal(t, a.BestFitness, b.BestFitness)
	assert.Equal(t, a.Best, b.Best)
}

func TestOptimizeWeights_BaseNotMutated(t *testing.T) {
	fitness, err := WalkFitness(predictorWalk(10))
	require.NoError(t, err)
	base := weights.Weights{"good": 0.5, "bad": 0.5}

	_, err = DefaultGAConfig().OptimizeWeights(context.Background(), base, fitness)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, base["good"], 1e-12)
	assert.InDelta(t, 0.5, base["bad"], 1e-12)
}

func TestOptimizeWeights_InvalidBase(t *testing.T) {
	fitness, err := WalkFitness(predictorWalk(10))
	require.NoError(t, err)

	_, err = DefaultGAConfig().OptimizeWeights(context.Background(), weights.Weights{"a": 0.2}, fitness)
	assert.Error(t, err)
}

// peakedEval rewards entry near 0.4 and confluence near 0.5
func peakedEval(entry, confluence float64) float64 {
	return 1 - 2*math.Abs(entry-0.4) - math.Abs(confluence-0.5)
}

func TestTuneThresholds_ImprovesAndStaysInBand(t *testing.T) {
	cfg := DefaultRLConfig()
	result, err := cfg.TuneThresholds(context.Background(), 0.65, 0.6, peakedEval)
	require.NoError(t, err)

	assert.Greater(t, result.Performance, peakedEval(0.65, 0.6))
	assert.GreaterOrEqual(t, result.EntryScore, cfg.MinThreshold)
	assert.LessOrEqual(t, result.EntryScore, cfg.MaxThreshold)
	assert.GreaterOrEqual(t, result.ConfluenceScore, cfg.MinThreshold)
	assert.LessOrEqual(t, result.ConfluenceScore, cfg.MaxThreshold)
}

func TestTuneThresholds_ClampsStartingPoint(t *testing.T) {
	cfg := DefaultRLConfig()
	cfg.Episodes = 1
	result, err := cfg.TuneThresholds(context.Background(), 0.05, 0.99, peakedEval)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.EntryScore, cfg.MinThreshold)
	assert.LessOrEqual(t, result.ConfluenceScore, cfg.MaxThreshold)
}

func TestTuneThresholds_DeterministicForSeed(t *testing.T) {
	run := func() *RLResult {
		r, err := DefaultRLConfig().TuneThresholds(context.Background(), 0.65, 0.6, peakedEval)
		require.NoError(t, err)
		return r
	}
	a, b := run(), run()
	assert.Equal(t, a.EntryScore, b.EntryScore)
	assert.Equal(t, a.ConfluenceScore, b.ConfluenceScore)
}

func TestContributions_SignAndClamp(t *testing.T) {
	score := &scoring.CombinedScore{Components: map[string]scoring.Component{
		"bull":    {Direction: detect.Bullish, Confidence: 1.0},
		"bear":    {Direction: detect.Bearish, Confidence: 1.0},
		"neutral": {Direction: detect.Neutral, Confidence: 1.0},
		"timid":   {Direction: detect.Bullish, Confidence: 0.5},
	}}

	contribs := Contributions(score, 0.05) // +5% move
	assert.InDelta(t, 0.5, contribs["bull"], 1e-12)
	assert.InDelta(t, -0.5, contribs["bear"], 1e-12)
	assert.InDelta(t, 0.25, contribs["timid"], 1e-12)
	assert.NotContains(t, contribs, "neutral")

	saturated := Contributions(score, 0.5)
	assert.Equal(t, 1.0, saturated["bull"])
	assert.Equal(t, -1.0, saturated["bear"])
}

func TestApplyTradeOutcome_FeedsOnlineAdaptation(t *testing.T) {
	online := weights.DefaultOnlineAdaptation()
	score := &scoring.CombinedScore{Components: map[string]scoring.Component{
		"bull": {Direction: detect.Bullish, Confidence: 1.0},
	}}
	trade := sim.Trade{Status: sim.StatusClosed, EntryPrice: 100, ExitPrice: 120}

	ApplyTradeOutcome(&online, score, trade)
	// saturated positive contribution: 0.94*1 + 0.06*(1 + 0.2*1)
	assert.InDelta(t, 1.012, online.PerSignal["bull"], 1e-9)
}

func TestApplyTradeOutcome_IgnoresOpenTrades(t *testing.T) {
	online := weights.DefaultOnlineAdaptation()
	score := &scoring.CombinedScore{Components: map[string]scoring.Component{
		"bull": {Direction: detect.Bullish, Confidence: 1.0},
	}}

	ApplyTradeOutcome(&online, score, sim.Trade{Status: sim.StatusOpen, EntryPrice: 100})
	assert.Empty(t, online.PerSignal)
}
