package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/indicators"
	"github.com/quantfuse/quantfuse/internal/market"
)

// Sentiment maps an externally supplied 0..1 sentiment reading to a score.
// When the context carries no sentiment it falls back to a low-confidence
// momentum proxy so the detector still contributes in offline runs.
type Sentiment struct{}

// NewSentiment builds the sentiment detector
func NewSentiment() *Sentiment { return &Sentiment{} }

func (d *Sentiment) Name() string { return "sentiment" }

func (d *Sentiment) MinBars() int { return 20 }

func (d *Sentiment) Detect(_ context.Context, bars []market.Bar, mctx MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	if raw, ok := mctx[CtxSentiment]; ok {
		score := 2*raw - 1
		confidence := 0.4 + 0.5*math.Abs(score)
		return newResult(score, confidence, map[string]interface{}{
			"sentiment": raw,
			"source":    "context",
		}), nil
	}

	// Momentum proxy: 20-bar rate of change squashed into [-1,1]
	roc := indicators.ROC(market.Closes(bars), 20)
	score := math.Tanh(roc * 10)
	return newResult(score, 0.2, map[string]interface{}{
		"roc_20": roc,
		"source": "momentum_proxy",
	}), nil
}

// News scores externally supplied news impact and direction. Inside a
// high-impact window confidence is dampened: headline-driven moves are
// treated as unreliable until the window passes.
type News struct{}

// NewNews builds the news detector
func NewNews() *News { return &News{} }

func (d *News) Name() string { return "news" }

func (d *News) MinBars() int { return 20 }

func (d *News) Detect(_ context.Context, bars []market.Bar, mctx MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	impact := mctx.Value(CtxNewsImpact, 0)
	direction := mctx.Value(CtxNewsDirection, 0)
	if impact == 0 || direction == 0 {
		return NeutralResult("no news signal in context"), nil
	}

	score := clamp(impact, 0, 1)
	if direction < 0 {
		score = -score
	}

	confidence := 0.3 + 0.5*clamp(impact, 0, 1)
	if mctx.Flag(CtxNewsHighImpact) {
		confidence *= 0.5
	}

	return newResult(score, confidence, map[string]interface{}{
		"news_impact":    impact,
		"news_direction": direction,
		"high_impact":    mctx.Flag(CtxNewsHighImpact),
	}), nil
}
