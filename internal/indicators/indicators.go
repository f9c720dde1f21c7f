// Package indicators implements the technical indicators consumed by the
// detector battery and the scoring engine's context enrichment.
package indicators

import (
	"math"

	"github.com/quantfuse/quantfuse/internal/market"
)

// SMA computes a simple moving average series. Entries before the first
// full window are zero.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes an exponential moving average series seeded with the SMA of
// the first period values.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values))
	alpha := 2.0 / (float64(period) + 1.0)

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	for i := period; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index series.
// Entries before the first full period are zero.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}
	out := make([]float64, len(closes))

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// MACDResult holds the MACD line, signal line and histogram series
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes MACD(fast, slow, signal) over the close series
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	if len(closes) < slow+signal {
		return MACDResult{}
	}
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line := make([]float64, len(closes))
	for i := slow - 1; i < len(closes); i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(line[slow-1:], signal)

	result := MACDResult{
		Line:      line,
		Signal:    make([]float64, len(closes)),
		Histogram: make([]float64, len(closes)),
	}
	for i := slow - 1; i < len(closes); i++ {
		result.Signal[i] = sig[i-(slow-1)]
		result.Histogram[i] = line[i] - result.Signal[i]
	}
	return result
}

// TrueRange returns the true range for a bar given the previous close
func TrueRange(bar market.Bar, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR computes the Wilder-smoothed average true range series
func ATR(bars []market.Bar, period int) []float64 {
	if period <= 0 || len(bars) < period+1 {
		return nil
	}
	out := make([]float64, len(bars))

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	out[period] = sum / float64(period)

	for i := period + 1; i < len(bars); i++ {
		tr := TrueRange(bars[i], bars[i-1].Close)
		out[i] = (out[i-1]*float64(period-1) + tr) / float64(period)
	}
	return out
}

// ATRPercent returns the latest ATR as a fraction of the latest close,
// or 0 when the series is too short or the close is zero.
func ATRPercent(bars []market.Bar, period int) float64 {
	atr := ATR(bars, period)
	if atr == nil {
		return 0
	}
	last := bars[len(bars)-1].Close
	if last == 0 {
		return 0
	}
	return atr[len(atr)-1] / last
}

// BollingerPosition returns where the latest close sits inside the
// Bollinger band, scaled to [0,1] (0.5 = on the middle band). Degenerate
// zero-width bands return 0.5.
func BollingerPosition(closes []float64, period int, mult float64) float64 {
	if len(closes) < period {
		return 0.5
	}
	window := closes[len(closes)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(variance / float64(period))
	if sd == 0 {
		return 0.5
	}

	upper := mean + mult*sd
	lower := mean - mult*sd
	pos := (closes[len(closes)-1] - lower) / (upper - lower)
	return math.Max(0, math.Min(1, pos))
}

// RealizedVolRatio compares recent close-to-close volatility against a
// longer baseline window. Values above 1 indicate elevated volatility.
func RealizedVolRatio(closes []float64, short, long int) float64 {
	if len(closes) < long+1 {
		return 1.0
	}
	recent := stddevReturns(closes[len(closes)-short-1:])
	baseline := stddevReturns(closes[len(closes)-long-1:])
	if baseline == 0 {
		return 1.0
	}
	return recent / baseline
}

func stddevReturns(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(closes)-1)
	mean := 0.0
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		r := (closes[i] - closes[i-1]) / closes[i-1]
		rets = append(rets, r)
		mean += r
	}
	if len(rets) == 0 {
		return 0
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(len(rets)))
}

// ROC returns the rate of change of the close over period bars
func ROC(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}
	prev := closes[len(closes)-1-period]
	if prev == 0 {
		return 0
	}
	return (closes[len(closes)-1] - prev) / prev
}
