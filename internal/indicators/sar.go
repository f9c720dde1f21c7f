package indicators

import "github.com/quantfuse/quantfuse/internal/market"

// SARPoint is one step of the parabolic SAR series
type SARPoint struct {
	Value  float64
	Rising bool // true while SAR trails below price
}

// ParabolicSAR computes the parabolic stop-and-reverse series with the
// standard acceleration schedule (start/step af up to max).
func ParabolicSAR(bars []market.Bar, afStart, afStep, afMax float64) []SARPoint {
	if len(bars) < 2 {
		return nil
	}
	out := make([]SARPoint, len(bars))

	rising := bars[1].Close >= bars[0].Close
	af := afStart
	var sar, ep float64
	if rising {
		sar = bars[0].Low
		ep = bars[1].High
	} else {
		sar = bars[0].High
		ep = bars[1].Low
	}
	out[0] = SARPoint{Value: sar, Rising: rising}
	out[1] = SARPoint{Value: sar, Rising: rising}

	for i := 2; i < len(bars); i++ {
		sar = sar + af*(ep-sar)

		if rising {
			// SAR may not enter the prior two bars' range
			if sar > bars[i-1].Low {
				sar = bars[i-1].Low
			}
			if sar > bars[i-2].Low {
				sar = bars[i-2].Low
			}
			if bars[i].Low < sar {
				rising = false
				sar = ep
				ep = bars[i].Low
				af = afStart
			} else if bars[i].High > ep {
				ep = bars[i].High
				af = minFloat(af+afStep, afMax)
			}
		} else {
			if sar < bars[i-1].High {
				sar = bars[i-1].High
			}
			if sar < bars[i-2].High {
				sar = bars[i-2].High
			}
			if bars[i].High > sar {
				rising = true
				sar = ep
				ep = bars[i].High
				af = afStart
			} else if bars[i].Low < ep {
				ep = bars[i].Low
				af = minFloat(af+afStep, afMax)
			}
		}
		out[i] = SARPoint{Value: sar, Rising: rising}
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
