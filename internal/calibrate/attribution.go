package calibrate

import (
	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/scoring"
	"github.com/quantfuse/quantfuse/internal/sim"
	"github.com/quantfuse/quantfuse/internal/weights"
)

// moveGain scales a fractional price move into the [-1,1] contribution
// band: a 10% aligned move saturates the attribution.
const moveGain = 10

// Contributions maps a realized market move back onto the detectors that
// voted on it. A detector that called the move's direction earns a
// positive contribution, one that called against it a negative one, both
// scaled by the detector's confidence and clamped to [-1,1]. Neutral
// votes contribute nothing.
func Contributions(score *scoring.CombinedScore, marketMove float64) map[string]float64 {
	out := make(map[string]float64, len(score.Components))
	for name, comp := range score.Components {
		var vote float64
		switch comp.Direction {
		case detect.Bullish:
			vote = 1
		case detect.Bearish:
			vote = -1
		default:
			continue
		}
		contrib := vote * marketMove * moveGain * comp.Confidence
		if contrib > 1 {
			contrib = 1
		} else if contrib < -1 {
			contrib = -1
		}
		out[name] = contrib
	}
	return out
}

// ApplyTradeOutcome feeds one closed trade back into the online weight
// adaptation. The move is measured on the market, not the position, so
// bearish detectors are credited for drops regardless of trade side.
func ApplyTradeOutcome(online *weights.OnlineAdaptation, score *scoring.CombinedScore, trade sim.Trade) {
	if trade.Status != sim.StatusClosed || trade.EntryPrice <= 0 {
		return
	}
	move := trade.ExitPrice/trade.EntryPrice - 1
	online.Update(Contributions(score, move))
}
