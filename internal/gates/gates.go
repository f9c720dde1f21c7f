// Package gates enforces the hard boolean entry checks applied on top of
// a combined score before a signal becomes actionable.
package gates

import (
	"github.com/quantfuse/quantfuse/internal/sim"
)

// Thresholds holds the gate configuration
type Thresholds struct {
	EntryScore      float64 `yaml:"entry_score" validate:"gte=0,lte=1"`      // min combined score (default: 0.65)
	ConfluenceScore float64 `yaml:"confluence_score" validate:"gte=0,lte=1"` // min confluence score (default: 0.6)
	ZQSMin          float64 `yaml:"zqs_min"`                                 // min SMC zone quality (default: 0.4)
	FVGMinATR       float64 `yaml:"fvg_min_atr"`                             // min FVG size in ATR multiples (default: 0.5)
	RequireBOS2     bool    `yaml:"require_bos2_on_countertrend"`            // counter-trend needs a second BOS
}

// DefaultThresholds returns the production gate thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		EntryScore:      0.65,
		ConfluenceScore: 0.6,
		ZQSMin:          0.4,
		FVGMinATR:       0.5,
		RequireBOS2:     true,
	}
}

// Inputs carries everything the gate battery inspects for one signal
type Inputs struct {
	Direction sim.Direction

	// Momentum
	MACDHistSlope float64

	// SMC structure
	SMCZQS        float64
	FVGATR        float64
	LiquidityNear bool
	HasSecondBOS  bool

	// Sentiment on a 0..1 scale
	Sentiment float64

	// Scores
	EntryScore      float64
	ConfluenceScore float64

	// Higher-timeframe trend: -1, 0, +1
	HTFTrend float64
}

// Result is one gate's verdict with its reason
type Result struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// Report is the combined verdict with the per-gate breakdown
type Report struct {
	Allow bool              `json:"allow"`
	Gates map[string]Result `json:"gates"`
}

// Evaluator runs the gate battery
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates a gate evaluator
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate runs every gate eagerly and ANDs the verdicts. All gates are
// side-effect free, so there is no short-circuiting: the full breakdown is
// always available for observability.
func (e *Evaluator) Evaluate(in Inputs) Report {
	gates := map[string]Result{
		"momentum":     e.momentumGate(in),
		"smc":          e.smcGate(in),
		"sentiment":    e.sentimentGate(in),
		"confluence":   e.confluenceGate(in),
		"countertrend": e.countertrendGate(in),
	}

	allow := true
	for _, r := range gates {
		if !r.Passed {
			allow = false
		}
	}
	return Report{Allow: allow, Gates: gates}
}

// momentumGate requires the MACD histogram slope to point with the trade
func (e *Evaluator) momentumGate(in Inputs) Result {
	if in.Direction == sim.Long && in.MACDHistSlope <= 0 {
		return Result{Passed: false, Reason: "long requires rising macd histogram"}
	}
	if in.Direction == sim.Short && in.MACDHistSlope >= 0 {
		return Result{Passed: false, Reason: "short requires falling macd histogram"}
	}
	return Result{Passed: true, Reason: "momentum aligned"}
}

// smcGate requires structural quality, a meaningful fair value gap and
// nearby liquidity. Liquidity proximity is mandatory, not additive.
func (e *Evaluator) smcGate(in Inputs) Result {
	if in.SMCZQS < e.thresholds.ZQSMin {
		return Result{Passed: false, Reason: "zone quality below minimum"}
	}
	if in.FVGATR < e.thresholds.FVGMinATR {
		return Result{Passed: false, Reason: "fair value gap too small"}
	}
	if !in.LiquidityNear {
		return Result{Passed: false, Reason: "no liquidity nearby"}
	}
	return Result{Passed: true, Reason: "smc structure present"}
}

// sentimentGate requires sentiment on the trade's side of 0.5
func (e *Evaluator) sentimentGate(in Inputs) Result {
	if in.Direction == sim.Long && in.Sentiment < 0.5 {
		return Result{Passed: false, Reason: "sentiment against long"}
	}
	if in.Direction == sim.Short && in.Sentiment > 0.5 {
		return Result{Passed: false, Reason: "sentiment against short"}
	}
	return Result{Passed: true, Reason: "sentiment aligned"}
}

// confluenceGate requires both scores to clear their thresholds
func (e *Evaluator) confluenceGate(in Inputs) Result {
	if in.EntryScore < e.thresholds.EntryScore {
		return Result{Passed: false, Reason: "entry score below threshold"}
	}
	if in.ConfluenceScore < e.thresholds.ConfluenceScore {
		return Result{Passed: false, Reason: "confluence score below threshold"}
	}
	return Result{Passed: true, Reason: "confluence met"}
}

// countertrendGate demands a second break-of-structure confirmation when
// trading against the higher-timeframe trend, if so configured
func (e *Evaluator) countertrendGate(in Inputs) Result {
	if !e.thresholds.RequireBOS2 {
		return Result{Passed: true, Reason: "bos2 confirmation disabled"}
	}
	against := (in.Direction == sim.Long && in.HTFTrend < 0) ||
		(in.Direction == sim.Short && in.HTFTrend > 0)
	if against && !in.HasSecondBOS {
		return Result{Passed: false, Reason: "counter-trend without second bos"}
	}
	return Result{Passed: true, Reason: "trend alignment ok"}
}
