package scoring

import (
	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/indicators"
	"github.com/quantfuse/quantfuse/internal/market"
)

// enrichContext fills derived indicator values into the market context.
// Caller-supplied keys always take precedence and are never overwritten.
func enrichContext(bars []market.Bar, mctx detect.MarketContext) detect.MarketContext {
	out := make(detect.MarketContext, len(mctx)+6)
	for k, v := range mctx {
		out[k] = v
	}
	closes := market.Closes(bars)

	setIfAbsent := func(key string, compute func() float64) {
		if _, ok := out[key]; !ok {
			out[key] = compute()
		}
	}

	setIfAbsent(detect.CtxRSI, func() float64 {
		series := indicators.RSI(closes, 14)
		if series == nil {
			return 50
		}
		return series[len(series)-1]
	})
	setIfAbsent(detect.CtxATRPct, func() float64 {
		return indicators.ATRPercent(bars, 14)
	})
	setIfAbsent(detect.CtxBollingerPos, func() float64 {
		return indicators.BollingerPosition(closes, 20, 2.0)
	})
	setIfAbsent(detect.CtxRealizedVol, func() float64 {
		return indicators.RealizedVolRatio(closes, 10, 50)
	})
	setIfAbsent(detect.CtxTrend, func() float64 {
		return trendDirection(closes)
	})
	setIfAbsent(detect.CtxHTFTrend, func() float64 {
		return out[detect.CtxTrend]
	})
	return out
}

// trendDirection classifies the local trend from the fast/slow SMA spread
func trendDirection(closes []float64) float64 {
	fast := indicators.SMA(closes, 20)
	slow := indicators.SMA(closes, 50)
	if fast == nil || slow == nil {
		return 0
	}
	f := fast[len(fast)-1]
	s := slow[len(slow)-1]
	if s == 0 {
		return 0
	}
	spread := (f - s) / s
	switch {
	case spread > 0.005:
		return 1
	case spread < -0.005:
		return -1
	}
	return 0
}
