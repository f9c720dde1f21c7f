// Package detect defines the detector contract and the battery of
// technical/pattern detectors feeding the scoring engine.
package detect

import (
	"context"

	"github.com/quantfuse/quantfuse/internal/market"
)

// Direction classifies a detection as bullish, bearish or neutral
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// MarketContext carries pre-computed market state shared across detectors.
// Boolean flags are encoded as nonzero values. Keys supplied by the caller
// are never overwritten by context enrichment.
type MarketContext map[string]float64

// Well-known context keys
const (
	CtxTrend          = "trend"            // -1, 0, +1
	CtxHTFTrend       = "htf_trend"        // higher-timeframe trend, -1/0/+1
	CtxVolatility     = "volatility"       // regime hint, 1 = high
	CtxNewsHighImpact = "news_high_impact" // nonzero inside a news window
	CtxSpreadBP       = "spread_bp"        // current spread in basis points
	CtxATRPct         = "atr_pct"          // ATR as fraction of price
	CtxRealizedVol    = "realized_vol"     // realized vol ratio vs baseline
	CtxRSI            = "rsi"              // RSI(14), 0..100
	CtxBollingerPos   = "bollinger_pos"    // 0..1 band position
	CtxSentiment      = "sentiment"        // 0..1 aggregate sentiment
	CtxNewsImpact     = "news_impact"      // 0..1 news significance
	CtxNewsDirection  = "news_direction"   // -1/0/+1 news bias
)

// Flag reports whether a context key is present and nonzero
func (c MarketContext) Flag(key string) bool {
	v, ok := c[key]
	return ok && v != 0
}

// Value returns the context value for key, or fallback when absent
func (c MarketContext) Value(key string, fallback float64) float64 {
	if v, ok := c[key]; ok {
		return v
	}
	return fallback
}

// Result is the outcome of a single detector invocation.
// Score sign must agree with Direction; a zero score is always Neutral.
type Result struct {
	Score      float64                `json:"score"`      // [-1, 1]
	Confidence float64                `json:"confidence"` // [0, 1]
	Direction  Direction              `json:"direction"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Detector is the single capability every detector variant implements.
// Implementations must be deterministic for identical inputs and must
// degrade to a neutral result below MinBars rather than returning an error.
type Detector interface {
	Name() string
	MinBars() int
	Detect(ctx context.Context, bars []market.Bar, mctx MarketContext) (Result, error)
}

// NeutralResult builds the canonical zero-score result with an explanatory
// meta reason, used for insufficient data and failure fallbacks.
func NeutralResult(reason string) Result {
	return Result{
		Score:      0,
		Confidence: 0,
		Direction:  Neutral,
		Meta:       map[string]interface{}{"reason": reason},
	}
}

// Classify derives the direction mandated by a score's sign
func Classify(score float64) Direction {
	switch {
	case score > 0:
		return Bullish
	case score < 0:
		return Bearish
	default:
		return Neutral
	}
}

// newResult assembles a sign-consistent result with score and confidence
// clamped to their contract ranges.
func newResult(score, confidence float64, meta map[string]interface{}) Result {
	score = clamp(score, -1, 1)
	confidence = clamp(confidence, 0, 1)
	return Result{
		Score:      score,
		Confidence: confidence,
		Direction:  Classify(score),
		Meta:       meta,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
