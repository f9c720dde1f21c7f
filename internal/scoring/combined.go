// Package scoring orchestrates the detector battery and combines the
// results into a single weighted trading score.
package scoring

import (
	"time"

	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/regime"
	"github.com/quantfuse/quantfuse/internal/weights"
)

// Advice is the actionable recommendation derived from a combined score
type Advice string

const (
	AdviceBuy  Advice = "BUY"
	AdviceSell Advice = "SELL"
	AdviceHold Advice = "HOLD"
)

// Component is one detector's contribution to a combined score
type Component struct {
	Raw        float64                `json:"raw"`        // Detector score before context gating
	Gated      float64                `json:"gated"`      // After regime dampen/boost multipliers
	Normalized float64                `json:"normalized"` // (gated+1)/2
	Weight     float64                `json:"weight"`     // Adjusted weight used
	Confidence float64                `json:"confidence"`
	Weighted   float64                `json:"weighted"` // normalized * weight * confidence
	Direction  detect.Direction       `json:"direction"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// CombinedScore is the read-only result of one scoring call
type CombinedScore struct {
	FinalScore   float64              `json:"final_score"` // [0,1], 0.5 = balanced
	Direction    detect.Direction     `json:"direction"`
	Advice       Advice               `json:"advice"`
	BullMass     float64              `json:"bull_mass"`
	BearMass     float64              `json:"bear_mass"`
	Confidence   float64              `json:"confidence"`   // weight-averaged detector confidence
	Disagreement float64              `json:"disagreement"` // population stddev of raw scores
	Components   map[string]Component `json:"components"`
	Weights      weights.Weights      `json:"weights"` // adjusted weights for this call
	Regime       regime.Flags         `json:"regime"`
	Timestamp    time.Time            `json:"timestamp"`
}
