package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/market"
)

func TestFindPivots_StrictAlternation(t *testing.T) {
	bars := market.GenerateBars(400, market.DefaultSyntheticConfig())
	pivots := FindPivots(bars, 3)
	require.NotEmpty(t, pivots)
	for i := 1; i < len(pivots); i++ {
		assert.NotEqual(t, pivots[i-1].Kind, pivots[i].Kind, "pivots must alternate high/low")
		assert.Greater(t, pivots[i].Index, pivots[i-1].Index)
	}
}

func TestFindPivots_FlatSeriesHasNone(t *testing.T) {
	bars := market.FlatBars(100, 500)
	assert.Empty(t, FindPivots(bars, 3), "zero-variance series has no strict extrema")
}

func TestStructuralDetectors_FlatSeriesNeutral(t *testing.T) {
	// close==open every bar, zero volatility => structural
	// detectors must be neutral with zero confidence.
	bars := market.FlatBars(200, 500)
	ctx := context.Background()

	for _, d := range []Detector{
		NewSMC(DefaultSMCConfig()),
		NewHarmonic(DefaultHarmonicConfig()),
		NewElliott(),
	} {
		res, err := d.Detect(ctx, bars, MarketContext{})
		require.NoError(t, err, d.Name())
		assert.Equal(t, Neutral, res.Direction, d.Name())
		assert.Equal(t, 0.0, res.Score, d.Name())
		assert.Equal(t, 0.0, res.Confidence, d.Name())
	}
}

func TestDetectors_BelowMinBarsNeutral(t *testing.T) {
	ctx := context.Background()
	bars := market.GenerateBars(10, market.DefaultSyntheticConfig())

	for _, d := range DefaultRegistry().All() {
		res, err := d.Detect(ctx, bars, MarketContext{})
		require.NoError(t, err, d.Name())
		assert.Equal(t, Neutral, res.Direction, d.Name())
		assert.Equal(t, 0.0, res.Score, d.Name())
		assert.Equal(t, 0.0, res.Confidence, d.Name())
		assert.Contains(t, res.Meta, "reason", d.Name())
	}
}

func TestDetectors_ContractBoundsAndSignConsistency(t *testing.T) {
	ctx := context.Background()
	cfg := market.DefaultSyntheticConfig()
	cfg.Seed = 777
	bars := market.GenerateBars(500, cfg)
	mctx := MarketContext{CtxSentiment: 0.7, CtxNewsImpact: 0.6, CtxNewsDirection: 1}

	for _, d := range DefaultRegistry().All() {
		res, err := d.Detect(ctx, bars, mctx)
		require.NoError(t, err, d.Name())

		assert.GreaterOrEqual(t, res.Score, -1.0, d.Name())
		assert.LessOrEqual(t, res.Score, 1.0, d.Name())
		assert.GreaterOrEqual(t, res.Confidence, 0.0, d.Name())
		assert.LessOrEqual(t, res.Confidence, 1.0, d.Name())

		switch res.Direction {
		case Bullish:
			assert.Greater(t, res.Score, 0.0, d.Name())
		case Bearish:
			assert.Less(t, res.Score, 0.0, d.Name())
		case Neutral:
			assert.Equal(t, 0.0, res.Score, d.Name())
		}
	}
}

func TestDetectors_Deterministic(t *testing.T) {
	ctx := context.Background()
	bars := market.GenerateBars(500, market.DefaultSyntheticConfig())
	mctx := MarketContext{CtxSentiment: 0.6}

	for _, name := range []string{"rsi_macd", "smc", "harmonic", "elliott", "sar", "whales"} {
		reg := DefaultRegistry()
		d, ok := reg.Get(name)
		require.True(t, ok)

		first, err := d.Detect(ctx, bars, mctx)
		require.NoError(t, err)
		second, err := d.Detect(ctx, bars, mctx)
		require.NoError(t, err)
		assert.Equal(t, first, second, name)
	}
}

func TestMLEnsemble_TrainsOnceAndIsStable(t *testing.T) {
	ctx := context.Background()
	bars := market.GenerateBars(400, market.DefaultSyntheticConfig())

	ml := NewMLEnsemble(DefaultMLConfig())
	first, err := ml.Detect(ctx, bars, MarketContext{})
	require.NoError(t, err)
	second, err := ml.Detect(ctx, bars, MarketContext{})
	require.NoError(t, err)
	assert.Equal(t, first, second, "cached model must give identical outputs")

	ml.Retrain()
	third, err := ml.Detect(ctx, bars, MarketContext{})
	require.NoError(t, err)
	assert.Equal(t, first, third, "deterministic retraining on identical data")
}

func TestNews_NoSignalIsNeutral(t *testing.T) {
	bars := market.GenerateBars(60, market.DefaultSyntheticConfig())
	res, err := NewNews().Detect(context.Background(), bars, MarketContext{})
	require.NoError(t, err)
	assert.Equal(t, Neutral, res.Direction)
}

func TestSentiment_ContextTakesPrecedence(t *testing.T) {
	bars := market.GenerateBars(60, market.DefaultSyntheticConfig())

	res, err := NewSentiment().Detect(context.Background(), bars, MarketContext{CtxSentiment: 0.9})
	require.NoError(t, err)
	assert.Equal(t, Bullish, res.Direction)
	assert.InDelta(t, 0.8, res.Score, 1e-9)

	res, err = NewSentiment().Detect(context.Background(), bars, MarketContext{CtxSentiment: 0.1})
	require.NoError(t, err)
	assert.Equal(t, Bearish, res.Direction)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewSAR()))
	assert.Error(t, r.Register(NewSAR()))
	assert.Equal(t, 1, r.Len())
}

func TestDefaultRegistry_FullBattery(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, 11, r.Len())
	for _, name := range []string{"rsi_macd", "smc", "harmonic", "elliott", "fibonacci", "priceaction", "sar", "sentiment", "news", "whales", "ml_ensemble"} {
		_, ok := r.Get(name)
		assert.True(t, ok, name)
	}
}
