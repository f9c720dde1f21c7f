package detect

import "github.com/quantfuse/quantfuse/internal/market"

// PivotKind distinguishes swing highs from swing lows
type PivotKind int

const (
	PivotHigh PivotKind = iota
	PivotLow
)

// Pivot is a local price extremum used by the structural detectors
type Pivot struct {
	Index int
	Price float64
	Kind  PivotKind
}

// FindPivots extracts local extrema over a symmetric window of `order` bars
// on each side. A bar is a pivot high when its high strictly exceeds every
// high within the window, and symmetrically for lows. The returned sequence
// strictly alternates high/low: when two same-kind pivots are adjacent the
// more extreme one is kept and the other dropped.
func FindPivots(bars []market.Bar, order int) []Pivot {
	if order < 1 || len(bars) < 2*order+1 {
		return nil
	}

	var raw []Pivot
	for i := order; i < len(bars)-order; i++ {
		isHigh, isLow := true, true
		for j := i - order; j <= i+order; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			raw = append(raw, Pivot{Index: i, Price: bars[i].High, Kind: PivotHigh})
		} else if isLow {
			raw = append(raw, Pivot{Index: i, Price: bars[i].Low, Kind: PivotLow})
		}
	}

	return alternate(raw)
}

// alternate enforces strict high/low alternation, keeping the more extreme
// of consecutive same-kind pivots.
func alternate(pivots []Pivot) []Pivot {
	if len(pivots) == 0 {
		return nil
	}
	out := []Pivot{pivots[0]}
	for _, p := range pivots[1:] {
		last := &out[len(out)-1]
		if p.Kind != last.Kind {
			out = append(out, p)
			continue
		}
		if p.Kind == PivotHigh && p.Price > last.Price {
			*last = p
		} else if p.Kind == PivotLow && p.Price < last.Price {
			*last = p
		}
	}
	return out
}

// lastPivots returns the trailing n pivots, or nil when fewer exist
func lastPivots(pivots []Pivot, n int) []Pivot {
	if len(pivots) < n {
		return nil
	}
	return pivots[len(pivots)-n:]
}
