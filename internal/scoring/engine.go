package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/regime"
	"github.com/quantfuse/quantfuse/internal/telemetry"
	"github.com/quantfuse/quantfuse/internal/weights"
)

// ErrInsufficientData is returned when the caller supplies fewer bars than
// the engine's absolute floor. This is a caller contract violation, unlike
// per-detector shortfalls which degrade to neutral.
var ErrInsufficientData = fmt.Errorf("insufficient bars for scoring")

// WeightSource supplies the current base weights and online adaptation
// state. Reads may observe a slightly stale snapshot; writers serialize
// elsewhere (single-writer discipline in the config store).
type WeightSource interface {
	WeightsSnapshot() (weights.Weights, weights.OnlineAdaptation)
}

// StaticWeights is a WeightSource with fixed values, used by backtests and
// calibrators that pin a candidate configuration.
type StaticWeights struct {
	Weights weights.Weights
	Online  weights.OnlineAdaptation
}

func (s StaticWeights) WeightsSnapshot() (weights.Weights, weights.OnlineAdaptation) {
	return s.Weights, s.Online
}

// ContextGateConfig holds the regime dampen/boost multipliers applied to
// raw detector scores before normalization. Values are empirically tuned
// defaults, not derived constants.
type ContextGateConfig struct {
	HighVolDampen  float64  `yaml:"high_vol_dampen"` // default: 0.7
	TrendBoost     float64  `yaml:"trend_boost"`     // default: 1.2
	RangeDampen    float64  `yaml:"range_dampen"`    // default: 0.5
	MeanReversion  []string `yaml:"mean_reversion"`  // dampened in high vol
	TrendFollowing []string `yaml:"trend_following"` // boosted in strong trend
	RangeSensitive []string `yaml:"range_sensitive"` // dampened in ranges
}

// EngineConfig holds the scoring engine thresholds
type EngineConfig struct {
	MinBars           int               `yaml:"min_bars"`            // absolute floor (default: 100)
	DetectorTimeout   time.Duration     `yaml:"detector_timeout"`    // per-detector budget (default: 500ms)
	BullishThreshold  float64           `yaml:"bullish_threshold"`   // final_score >= => BULLISH (default: 0.6)
	BearishThreshold  float64           `yaml:"bearish_threshold"`   // final_score <= => BEARISH (default: 0.4)
	BuyThreshold      float64           `yaml:"buy_threshold"`       // default: 0.65
	BuyTrendThreshold float64           `yaml:"buy_trend_threshold"` // with confirming trend (default: 0.55)
	DisagreementVeto  float64           `yaml:"disagreement_veto"`   // stddev above => HOLD (default: 0.5)
	BreakerFailures   uint32            `yaml:"breaker_failures"`    // consecutive failures to open (default: 5)
	BreakerCooldown   time.Duration     `yaml:"breaker_cooldown"`    // open->half-open (default: 30s)
	ContextGates      ContextGateConfig `yaml:"context_gates"`
}

// DefaultEngineConfig returns production scoring thresholds
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinBars:           100,
		DetectorTimeout:   500 * time.Millisecond,
		BullishThreshold:  0.6,
		BearishThreshold:  0.4,
		BuyThreshold:      0.65,
		BuyTrendThreshold: 0.55,
		DisagreementVeto:  0.5,
		BreakerFailures:   5,
		BreakerCooldown:   30 * time.Second,
		ContextGates: ContextGateConfig{
			HighVolDampen:  0.7,
			TrendBoost:     1.2,
			RangeDampen:    0.5,
			MeanReversion:  []string{"rsi_macd", "fibonacci"},
			TrendFollowing: []string{"sar", "priceaction", "smc"},
			RangeSensitive: []string{"elliott", "sar"},
		},
	}
}

// Engine fans out over the detector registry and combines results into a
// CombinedScore. The engine itself never fails beyond the MinBars
// precondition: detector errors, panics and timeouts all degrade to
// neutral contributions.
type Engine struct {
	cfg      EngineConfig
	registry *detect.Registry
	regimes  *regime.Detector
	adjuster *weights.Adjuster
	source   WeightSource
	metrics  *telemetry.Metrics

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
}

// NewEngine assembles a scoring engine
func NewEngine(cfg EngineConfig, registry *detect.Registry, regimes *regime.Detector, adjuster *weights.Adjuster, source WeightSource, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		regimes:  regimes,
		adjuster: adjuster,
		source:   source,
		metrics:  metrics,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Score runs the full pipeline over the bar window. The supplied market
// context takes precedence over derived enrichment.
func (e *Engine) Score(ctx context.Context, bars []market.Bar, mctx detect.MarketContext) (*CombinedScore, error) {
	if len(bars) < e.cfg.MinBars {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(bars), e.cfg.MinBars)
	}
	start := time.Now()

	enriched := enrichContext(bars, mctx)
	flags := e.regimes.Detect(enriched)

	base, online := e.source.WeightsSnapshot()
	adjusted := e.adjuster.Adjust(base, flags, online)

	results := e.fanOut(ctx, bars, enriched)
	combined := e.combine(results, adjusted, flags, enriched)

	e.metrics.ScoresTotal.Inc()
	e.metrics.ScoringDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return combined, nil
}

type namedResult struct {
	name   string
	result detect.Result
}

// fanOut dispatches every registered detector concurrently and joins all
// results. Detectors share no state; each gets its own timeout budget.
func (e *Engine) fanOut(ctx context.Context, bars []market.Bar, mctx detect.MarketContext) map[string]detect.Result {
	detectors := e.registry.All()
	ch := make(chan namedResult, len(detectors))

	var wg sync.WaitGroup
	for _, d := range detectors {
		wg.Add(1)
		go func(d detect.Detector) {
			defer wg.Done()
			ch <- namedResult{name: d.Name(), result: e.invoke(ctx, d, bars, mctx)}
		}(d)
	}
	wg.Wait()
	close(ch)

	out := make(map[string]detect.Result, len(detectors))
	for nr := range ch {
		out[nr.name] = nr.result
	}
	return out
}

// invoke runs one detector behind its circuit breaker with a hard time
// budget. Any failure path yields a neutral result with the error in meta.
func (e *Engine) invoke(ctx context.Context, d detect.Detector, bars []market.Bar, mctx detect.MarketContext) detect.Result {
	breaker := e.breakerFor(d.Name())

	out, err := breaker.Execute(func() (interface{}, error) {
		return e.invokeWithTimeout(ctx, d, bars, mctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			e.metrics.BreakerOpens.WithLabelValues(d.Name()).Inc()
		} else {
			e.metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
		}
		log.Warn().Str("detector", d.Name()).Err(err).Msg("detector degraded to neutral")
		res := detect.NeutralResult("detector failure")
		res.Meta["error"] = err.Error()
		return res
	}
	return out.(detect.Result)
}

func (e *Engine) invokeWithTimeout(ctx context.Context, d detect.Detector, bars []market.Bar, mctx detect.MarketContext) (detect.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
	defer cancel()

	type outcome struct {
		result detect.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("detector panic: %v", r)}
			}
		}()
		res, err := d.Detect(callCtx, bars, mctx)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-callCtx.Done():
		e.metrics.DetectorTimeouts.WithLabelValues(d.Name()).Inc()
		return detect.Result{}, fmt.Errorf("detector %s: %w", d.Name(), callCtx.Err())
	}
}

func (e *Engine) breakerFor(name string) *gobreaker.CircuitBreaker {
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	if b, ok := e.breakers[name]; ok {
		return b
	}
	failures := e.cfg.BreakerFailures
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "detector:" + name,
		Timeout: e.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
	e.breakers[name] = b
	return b
}

// combine folds the per-detector results into the final weighted score
func (e *Engine) combine(results map[string]detect.Result, adjusted weights.Weights, flags regime.Flags, mctx detect.MarketContext) *CombinedScore {
	components := make(map[string]Component, len(results))
	rawScores := make([]float64, 0, len(results))

	var bullMass, bearMass float64
	var confSum, confWeight float64

	for name, res := range results {
		gated := e.applyContextGates(name, res.Score, flags)
		normalized := (gated + 1) / 2
		weight := adjusted[name]
		weighted := normalized * weight * res.Confidence

		if gated > 0 {
			bullMass += weighted
		} else if gated < 0 {
			bearMass += weighted
		}

		confSum += res.Confidence * weight
		confWeight += weight
		rawScores = append(rawScores, res.Score)

		components[name] = Component{
			Raw:        res.Score,
			Gated:      gated,
			Normalized: normalized,
			Weight:     weight,
			Confidence: res.Confidence,
			Weighted:   weighted,
			Direction:  res.Direction,
			Meta:       res.Meta,
		}
	}

	finalScore := 0.5
	if bullMass+bearMass > 0 {
		finalScore = bullMass / (bullMass + bearMass)
	}

	direction := detect.Neutral
	switch {
	case finalScore >= e.cfg.BullishThreshold:
		direction = detect.Bullish
	case finalScore <= e.cfg.BearishThreshold:
		direction = detect.Bearish
	}

	disagreement := 0.0
	if len(rawScores) > 0 {
		disagreement = stat.PopStdDev(rawScores, nil)
	}

	confidence := 0.0
	if confWeight > 0 {
		confidence = confSum / confWeight
	}

	return &CombinedScore{
		FinalScore:   finalScore,
		Direction:    direction,
		Advice:       e.advise(finalScore, direction, disagreement, mctx),
		BullMass:     bullMass,
		BearMass:     bearMass,
		Confidence:   confidence,
		Disagreement: disagreement,
		Components:   components,
		Weights:      adjusted,
		Regime:       flags,
		Timestamp:    time.Now().UTC(),
	}
}

// applyContextGates dampens or boosts a raw score for the active regime
func (e *Engine) applyContextGates(name string, score float64, flags regime.Flags) float64 {
	g := e.cfg.ContextGates
	if flags.HighVol && contains(g.MeanReversion, name) {
		score *= g.HighVolDampen
	}
	if flags.Trend && contains(g.TrendFollowing, name) {
		score *= g.TrendBoost
	}
	if flags.Range && contains(g.RangeSensitive, name) {
		score *= g.RangeDampen
	}
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score
}

// advise maps the combined score to BUY/SELL/HOLD. High disagreement
// across detectors vetoes any action.
func (e *Engine) advise(finalScore float64, direction detect.Direction, disagreement float64, mctx detect.MarketContext) Advice {
	if disagreement > e.cfg.DisagreementVeto {
		return AdviceHold
	}
	trend := mctx.Value(detect.CtxTrend, 0)

	if direction == detect.Bullish {
		if finalScore >= e.cfg.BuyThreshold || (finalScore >= e.cfg.BuyTrendThreshold && trend > 0) {
			return AdviceBuy
		}
	}
	if direction == detect.Bearish {
		bearScore := 1 - finalScore
		if bearScore >= e.cfg.BuyThreshold || (bearScore >= e.cfg.BuyTrendThreshold && trend < 0) {
			return AdviceSell
		}
	}
	return AdviceHold
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
