package market

import "time"

// Closes extracts the close price series
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high price series
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low price series
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume series
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Returns computes simple per-bar returns of the close series.
// The result has len(bars)-1 entries; a zero previous close yields 0.
func Returns(bars []Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			out[i-1] = 0
			continue
		}
		out[i-1] = (bars[i].Close - prev) / prev
	}
	return out
}

// MedianSpacing returns the median time delta between consecutive bars.
// Used to infer bar frequency for metric annualization.
func MedianSpacing(bars []Bar) time.Duration {
	if len(bars) < 2 {
		return 0
	}
	deltas := make([]time.Duration, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		deltas = append(deltas, bars[i].Timestamp.Sub(bars[i-1].Timestamp))
	}
	// insertion sort keeps this allocation-free for the short slices involved
	for i := 1; i < len(deltas); i++ {
		for j := i; j > 0 && deltas[j] < deltas[j-1]; j-- {
			deltas[j], deltas[j-1] = deltas[j-1], deltas[j]
		}
	}
	return deltas[len(deltas)/2]
}
