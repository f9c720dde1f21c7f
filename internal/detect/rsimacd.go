package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/indicators"
	"github.com/quantfuse/quantfuse/internal/market"
)

// RSIMACD blends RSI(14) mean-reversion distance with the MACD(12,26,9)
// histogram to produce a momentum score.
type RSIMACD struct {
	rsiPeriod  int
	macdFast   int
	macdSlow   int
	macdSignal int
}

// NewRSIMACD builds the detector with standard periods
func NewRSIMACD() *RSIMACD {
	return &RSIMACD{rsiPeriod: 14, macdFast: 12, macdSlow: 26, macdSignal: 9}
}

func (d *RSIMACD) Name() string { return "rsi_macd" }

func (d *RSIMACD) MinBars() int { return 50 }

func (d *RSIMACD) Detect(_ context.Context, bars []market.Bar, mctx MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}
	closes := market.Closes(bars)

	rsiSeries := indicators.RSI(closes, d.rsiPeriod)
	macd := indicators.MACD(closes, d.macdFast, d.macdSlow, d.macdSignal)
	if rsiSeries == nil || macd.Histogram == nil {
		return NeutralResult("indicator window unavailable"), nil
	}

	rsi := rsiSeries[len(rsiSeries)-1]
	hist := macd.Histogram[len(macd.Histogram)-1]
	prevHist := macd.Histogram[len(macd.Histogram)-2]

	// RSI component: distance from 50, bullish when oversold
	rsiScore := (50.0 - rsi) / 50.0

	// MACD component: histogram sign and magnitude relative to price
	price := closes[len(closes)-1]
	macdScore := 0.0
	if price > 0 {
		macdScore = math.Tanh(hist / price * 500)
	}

	score := 0.5*rsiScore + 0.5*macdScore

	// Confidence grows with indicator agreement and histogram expansion
	agreement := 0.5
	if rsiScore*macdScore > 0 {
		agreement = 1.0
	}
	expanding := math.Abs(hist) >= math.Abs(prevHist)
	confidence := agreement * (0.4 + 0.3*math.Abs(score))
	if expanding {
		confidence += 0.2
	}

	return newResult(score, confidence, map[string]interface{}{
		"rsi":             rsi,
		"macd_hist":       hist,
		"macd_hist_slope": hist - prevHist,
	}), nil
}
