package detect

import (
	"context"
	"math"

	"github.com/quantfuse/quantfuse/internal/indicators"
	"github.com/quantfuse/quantfuse/internal/market"
)

// SMCConfig holds the Smart Money Concepts detection thresholds
type SMCConfig struct {
	PivotOrder        int     `yaml:"pivot_order"`          // Symmetric pivot window (default: 3)
	MinOrderBlockMove float64 `yaml:"min_order_block_move"` // Min impulse after an OB (default: 1%)
	MinFVGPct         float64 `yaml:"min_fvg_pct"`          // Min gap size vs price (default: 0.5%)
	EqualLevelTol     float64 `yaml:"equal_level_tol"`      // Equal high/low tolerance (default: 0.1%)
	LiquidityNearPct  float64 `yaml:"liquidity_near_pct"`   // Proximity band for LIQ_NEAR (default: 1%)
	CHOCHLookback     int     `yaml:"choch_lookback"`       // Older swing window for CHOCH (default: 5 pivots)
}

// DefaultSMCConfig returns the tuned production thresholds
func DefaultSMCConfig() SMCConfig {
	return SMCConfig{
		PivotOrder:        3,
		MinOrderBlockMove: 0.01,
		MinFVGPct:         0.005,
		EqualLevelTol:     0.001,
		LiquidityNearPct:  0.01,
		CHOCHLookback:     5,
	}
}

// SMC detects Smart Money Concepts structure: break of structure, change
// of character, order blocks, fair value gaps and liquidity pools.
type SMC struct {
	cfg SMCConfig
}

// NewSMC builds the detector
func NewSMC(cfg SMCConfig) *SMC {
	return &SMC{cfg: cfg}
}

func (d *SMC) Name() string { return "smc" }

func (d *SMC) MinBars() int { return 100 }

func (d *SMC) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	pivots := FindPivots(bars, d.cfg.PivotOrder)
	if len(pivots) < 4 {
		return NeutralResult("no pivot structure"), nil
	}

	bosEvents := d.findBOS(bars, pivots)
	choch := d.findCHOCH(pivots)
	obScore, zqs := d.orderBlockBias(bars)
	fvgScore, fvgATR := d.fairValueGapBias(bars)
	liqNear := d.liquidityNear(bars, pivots)

	score := 0.0
	var lastBOSDir Direction = Neutral
	secondBOS := false
	if len(bosEvents) > 0 {
		last := bosEvents[len(bosEvents)-1]
		lastBOSDir = last.direction
		// Recency-weighted structural break
		recency := math.Exp(-float64(len(bars)-1-last.index) / 20.0)
		if last.direction == Bullish {
			score += 0.5 * recency
		} else {
			score -= 0.5 * recency
		}
		for _, ev := range bosEvents[:len(bosEvents)-1] {
			if ev.direction == last.direction {
				secondBOS = true
			}
		}
	}

	// CHOCH opposes the prior trend
	switch choch {
	case Bullish:
		score += 0.3
	case Bearish:
		score -= 0.3
	}

	score += obScore + fvgScore

	if score == 0 {
		return NeutralResult("no structural bias"), nil
	}

	confidence := 0.25 + 0.35*zqs + 0.2*math.Min(1, math.Abs(score))
	if liqNear {
		confidence += 0.15
	}

	return newResult(score, confidence, map[string]interface{}{
		"bos":            string(lastBOSDir),
		"bos_count":      len(bosEvents),
		"has_second_bos": secondBOS,
		"choch":          string(choch),
		"smc_zqs":        zqs,
		"fvg_atr":        fvgATR,
		"liq_near":       liqNear,
	}), nil
}

type bosEvent struct {
	index     int
	direction Direction
}

// findBOS locates strict-crossing breaks of structure: the close crosses a
// prior swing extreme with the previous close still on the other side.
func (d *SMC) findBOS(bars []market.Bar, pivots []Pivot) []bosEvent {
	var events []bosEvent
	for _, p := range pivots {
		for i := p.Index + 1; i < len(bars); i++ {
			if p.Kind == PivotHigh {
				if bars[i].Close > p.Price && bars[i-1].Close <= p.Price {
					events = append(events, bosEvent{index: i, direction: Bullish})
					break
				}
			} else {
				if bars[i].Close < p.Price && bars[i-1].Close >= p.Price {
					events = append(events, bosEvent{index: i, direction: Bearish})
					break
				}
			}
		}
	}
	// events gathered per pivot; order them by bar index
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].index < events[j-1].index; j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
	return events
}

// findCHOCH reports a change of character: the latest swing fails to take
// out the extreme of an older lookback window.
func (d *SMC) findCHOCH(pivots []Pivot) Direction {
	highs := make([]Pivot, 0, len(pivots))
	lows := make([]Pivot, 0, len(pivots))
	for _, p := range pivots {
		if p.Kind == PivotHigh {
			highs = append(highs, p)
		} else {
			lows = append(lows, p)
		}
	}
	look := d.cfg.CHOCHLookback

	// Uptrend exhaustion: latest high fails the older high extreme
	if len(highs) > look {
		older := highs[len(highs)-1-look : len(highs)-1]
		maxOlder := older[0].Price
		for _, p := range older[1:] {
			if p.Price > maxOlder {
				maxOlder = p.Price
			}
		}
		if highs[len(highs)-1].Price < maxOlder {
			return Bearish
		}
	}
	if len(lows) > look {
		older := lows[len(lows)-1-look : len(lows)-1]
		minOlder := older[0].Price
		for _, p := range older[1:] {
			if p.Price < minOlder {
				minOlder = p.Price
			}
		}
		if lows[len(lows)-1].Price > minOlder {
			return Bullish
		}
	}
	return Neutral
}

// orderBlockBias finds the freshest qualifying order block and scores the
// current price's relation to its zone. Returns the bias and a zone
// quality score in [0,1].
func (d *SMC) orderBlockBias(bars []market.Bar) (float64, float64) {
	price := bars[len(bars)-1].Close
	if price == 0 {
		return 0, 0
	}
	start := len(bars) - 60
	if start < 1 {
		start = 1
	}
	var bias, zqs float64
	for i := start; i < len(bars)-3; i++ {
		b := bars[i]
		if b.Body() == 0 {
			continue
		}
		moveEnd := bars[i+3].Close
		move := (moveEnd - b.Close) / b.Close

		if b.Body() < 0 && move >= d.cfg.MinOrderBlockMove {
			// Bearish candle before an up impulse: bullish OB
			quality := math.Min(1, move/(2*d.cfg.MinOrderBlockMove))
			if price >= b.Low && price <= b.High*1.01 {
				bias = 0.2
				zqs = quality
			} else if quality > zqs {
				zqs = quality * 0.5
			}
		}
		if b.Body() > 0 && move <= -d.cfg.MinOrderBlockMove {
			quality := math.Min(1, -move/(2*d.cfg.MinOrderBlockMove))
			if price <= b.High && price >= b.Low*0.99 {
				bias = -0.2
				zqs = quality
			} else if quality > zqs {
				zqs = quality * 0.5
			}
		}
	}
	return bias, zqs
}

// fairValueGapBias finds the most recent three-candle imbalance at least
// MinFVGPct wide and returns its bias plus the gap size in ATR multiples.
func (d *SMC) fairValueGapBias(bars []market.Bar) (float64, float64) {
	price := bars[len(bars)-1].Close
	if price == 0 {
		return 0, 0
	}
	atr := indicators.ATR(bars, 14)
	atrNow := 0.0
	if atr != nil {
		atrNow = atr[len(atr)-1]
	}

	start := len(bars) - 40
	if start < 2 {
		start = 2
	}
	for i := len(bars) - 1; i >= start; i-- {
		// Bullish FVG: candle i-2 high below candle i low
		if gap := bars[i].Low - bars[i-2].High; gap > 0 && gap/price >= d.cfg.MinFVGPct {
			fvgATR := 0.0
			if atrNow > 0 {
				fvgATR = gap / atrNow
			}
			return 0.2, fvgATR
		}
		if gap := bars[i-2].Low - bars[i].High; gap > 0 && gap/price >= d.cfg.MinFVGPct {
			fvgATR := 0.0
			if atrNow > 0 {
				fvgATR = gap / atrNow
			}
			return -0.2, fvgATR
		}
	}
	return 0, 0
}

// liquidityNear reports whether price sits within the proximity band of an
// equal-highs or equal-lows liquidity pool.
func (d *SMC) liquidityNear(bars []market.Bar, pivots []Pivot) bool {
	price := bars[len(bars)-1].Close
	if price == 0 {
		return false
	}
	for i := 0; i < len(pivots); i++ {
		for j := i + 1; j < len(pivots); j++ {
			if pivots[i].Kind != pivots[j].Kind {
				continue
			}
			ref := pivots[i].Price
			if ref == 0 {
				continue
			}
			if math.Abs(pivots[j].Price-ref)/ref <= d.cfg.EqualLevelTol {
				if math.Abs(price-ref)/price <= d.cfg.LiquidityNearPct {
					return true
				}
			}
		}
	}
	return false
}
