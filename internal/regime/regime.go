// Package regime classifies market context into the regime flags that
// drive dynamic weight adjustment.
package regime

import (
	"github.com/quantfuse/quantfuse/internal/detect"
)

// Flag names used as keys in regime-multiplier configuration
const (
	FlagNewsWindow = "news_window"
	FlagHighVol    = "high_vol"
	FlagWideSpread = "wide_spread"
	FlagTrend      = "trend"
	FlagRange      = "range"
)

// DetectorConfig holds the regime flag thresholds
type DetectorConfig struct {
	ATRPctHighVol      float64 `yaml:"atr_pct_high_vol"`      // ATR%% at or above this is high vol (default: 0.03)
	RealizedVolHighVol float64 `yaml:"realized_vol_high_vol"` // Realized vol ratio trigger (default: 2.0)
	WideSpreadBP       float64 `yaml:"wide_spread_bp"`        // Spread in bp at or above is wide (default: 20)
}

// DefaultDetectorConfig returns the tuned flag thresholds
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ATRPctHighVol:      0.03,
		RealizedVolHighVol: 2.0,
		WideSpreadBP:       20,
	}
}

// Flags is the set of simultaneously-active regime classifications.
// Trend and Range are mutually exclusive; the others are independent.
type Flags struct {
	NewsWindow bool `json:"news_window"`
	HighVol    bool `json:"high_vol"`
	WideSpread bool `json:"wide_spread"`
	Trend      bool `json:"trend"`
	Range      bool `json:"range"`
}

// Active returns the names of the active flags in configuration-key order
func (f Flags) Active() []string {
	var out []string
	if f.NewsWindow {
		out = append(out, FlagNewsWindow)
	}
	if f.HighVol {
		out = append(out, FlagHighVol)
	}
	if f.WideSpread {
		out = append(out, FlagWideSpread)
	}
	if f.Trend {
		out = append(out, FlagTrend)
	}
	if f.Range {
		out = append(out, FlagRange)
	}
	return out
}

// Detector derives regime flags from market context
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a regime detector with the given thresholds
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect evaluates all regime flags from the supplied market context.
// Missing context keys leave their flags inactive (range excepted: range
// is simply the absence of a higher-timeframe trend).
func (d *Detector) Detect(mctx detect.MarketContext) Flags {
	f := Flags{
		NewsWindow: mctx.Flag(detect.CtxNewsHighImpact),
		Trend:      mctx.Value(detect.CtxHTFTrend, 0) != 0,
	}
	f.Range = !f.Trend

	if mctx.Value(detect.CtxATRPct, 0) >= d.cfg.ATRPctHighVol ||
		mctx.Value(detect.CtxRealizedVol, 0) >= d.cfg.RealizedVolHighVol {
		f.HighVol = true
	}
	if mctx.Value(detect.CtxSpreadBP, 0) >= d.cfg.WideSpreadBP {
		f.WideSpread = true
	}
	return f
}
