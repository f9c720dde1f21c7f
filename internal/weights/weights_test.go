package weights

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/regime"
)

func TestDefaultWeights_Valid(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	assert.ErrorIs(t, Weights{}.Validate(), ErrInvalidWeights)
	assert.ErrorIs(t, Weights{"a": 0.5, "b": 0.3}.Validate(), ErrInvalidWeights)
	assert.ErrorIs(t, Weights{"a": 1.2, "b": -0.2}.Validate(), ErrInvalidWeights)

	// Within tolerance passes
	assert.NoError(t, Weights{"a": 0.501, "b": 0.505}.Validate())
}

func TestNormalize_Idempotent(t *testing.T) {
	w := Weights{"a": 0.3, "b": 0.9, "c": 0.6}
	once := w.Normalize()
	twice := once.Normalize()

	assert.InDelta(t, 1.0, once.Sum(), 1e-9)
	for name := range once {
		assert.InDelta(t, once[name], twice[name], 1e-12, name)
	}
}

func TestNormalize_NegativesZeroed(t *testing.T) {
	w := Weights{"a": -0.5, "b": 0.5, "c": 0.5}
	n := w.Normalize()
	assert.Equal(t, 0.0, n["a"])
	assert.InDelta(t, 0.5, n["b"], 1e-12)
	assert.InDelta(t, 0.5, n["c"], 1e-12)
}

func TestNormalize_ZeroSumFallsBackToUniform(t *testing.T) {
	w := Weights{"a": 0, "b": 0, "c": 0, "d": 0}
	n := w.Normalize()
	for name := range n {
		assert.InDelta(t, 0.25, n[name], 1e-12, name)
	}
}

func TestOnlineAdaptation_ClippedOnRead(t *testing.T) {
	o := DefaultOnlineAdaptation()
	o.PerSignal["hot"] = 9.0
	o.PerSignal["cold"] = 0.01

	assert.Equal(t, 1.5, o.Multiplier("hot"))
	assert.Equal(t, 0.5, o.Multiplier("cold"))
	assert.Equal(t, 1.0, o.Multiplier("unknown"))
}

func TestOnlineAdaptation_UpdateFormula(t *testing.T) {
	o := DefaultOnlineAdaptation()
	o.Update(map[string]float64{"smc": 1.0})

	// m = 0.94*1.0 + 0.06*(1 + 0.2*1.0) = 1.012
	assert.InDelta(t, 1.012, o.PerSignal["smc"], 1e-9)

	o.Update(map[string]float64{"smc": -1.0})
	// m = 0.94*1.012 + 0.06*(1 - 0.2) = 0.99928
	assert.InDelta(t, 0.99928, o.PerSignal["smc"], 1e-9)
}

func TestOnlineAdaptation_MultiplierAlwaysInClipBand(t *testing.T) {
	o := DefaultOnlineAdaptation()
	for i := 0; i < 500; i++ {
		o.Update(map[string]float64{"sig": 1.0})
	}
	m := o.Multiplier("sig")
	assert.GreaterOrEqual(t, m, o.ClipMin)
	assert.LessOrEqual(t, m, o.ClipMax)
}

func TestAdjust_AlwaysSumsToOne(t *testing.T) {
	adj := NewAdjuster(DefaultRegimeMultipliers())
	base := DefaultWeights()
	online := DefaultOnlineAdaptation()

	flagSets := []regime.Flags{
		{},
		{Range: true},
		{Trend: true},
		{HighVol: true, Range: true},
		{NewsWindow: true, HighVol: true, WideSpread: true, Trend: true},
	}
	for _, flags := range flagSets {
		adjusted := adj.Adjust(base, flags, online)
		assert.InDelta(t, 1.0, adjusted.Sum(), 1e-6, "flags %+v", flags)
	}
}

func TestAdjust_DoesNotMutateBase(t *testing.T) {
	adj := NewAdjuster(DefaultRegimeMultipliers())
	base := DefaultWeights()
	before := base.Clone()

	_ = adj.Adjust(base, regime.Flags{HighVol: true, Trend: true}, DefaultOnlineAdaptation())
	assert.Equal(t, before, base)
}

func TestAdjust_MultipliersComposeAcrossRegimes(t *testing.T) {
	mults := RegimeMultipliers{
		regime.FlagHighVol: {"a": 0.5},
		regime.FlagTrend:   {"a": 0.5},
	}
	adj := NewAdjuster(mults)
	base := Weights{"a": 0.5, "b": 0.5}

	adjusted := adj.Adjust(base, regime.Flags{HighVol: true, Trend: true}, DefaultOnlineAdaptation())

	// a: 0.5*0.5*0.5=0.125 vs b: 0.5 => a share = 0.125/0.625 = 0.2
	assert.InDelta(t, 0.2, adjusted["a"], 1e-9)
	assert.InDelta(t, 0.8, adjusted["b"], 1e-9)
}

func TestAdjust_OnlineLayerApplied(t *testing.T) {
	adj := NewAdjuster(RegimeMultipliers{})
	base := Weights{"a": 0.5, "b": 0.5}
	online := DefaultOnlineAdaptation()
	online.PerSignal["a"] = 1.5

	adjusted := adj.Adjust(base, regime.Flags{}, online)
	assert.InDelta(t, 0.6, adjusted["a"], 1e-9)
	assert.InDelta(t, 0.4, adjusted["b"], 1e-9)
	assert.False(t, math.Signbit(adjusted["b"]))
}
