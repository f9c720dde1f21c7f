// Package backtest replays historical bars through the scoring engine,
// gate battery and trade simulator, and reports performance metrics.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/gates"
	"github.com/quantfuse/quantfuse/internal/indicators"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/risk"
	"github.com/quantfuse/quantfuse/internal/scoring"
	"github.com/quantfuse/quantfuse/internal/sim"
	"github.com/quantfuse/quantfuse/internal/telemetry"
)

// Scorer produces a combined score for a bar window. Satisfied by
// *scoring.Engine.
type Scorer interface {
	Score(ctx context.Context, bars []market.Bar, mctx detect.MarketContext) (*scoring.CombinedScore, error)
}

// Config holds the backtest run parameters
type Config struct {
	Symbol       string           `yaml:"symbol"`
	StartingCash float64          `yaml:"starting_cash"`  // simulator cash (default: 10000)
	WarmupBars   int              `yaml:"warmup_bars"`    // bars consumed before the first signal (default: 200)
	WindowBars   int              `yaml:"window_bars"`    // scoring window cap, 0 = full history
	TimeStopBars int              `yaml:"time_stop_bars"` // force-close after this many bars held (default: 48)
	Costs        sim.CostModel    `yaml:"costs"`
	Risk         risk.Params      `yaml:"risk"`
	Gates        gates.Thresholds `yaml:"gates"`
}

// DefaultConfig returns the production backtest configuration
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:       symbol,
		StartingCash: 10000,
		WarmupBars:   200,
		WindowBars:   500,
		TimeStopBars: 48,
		Costs:        sim.DefaultCostModel(),
		Risk:         risk.DefaultParams(),
		Gates:        gates.DefaultThresholds(),
	}
}

// Engine drives a single bar-by-bar replay
type Engine struct {
	cfg     Config
	scorer  Scorer
	eval    *gates.Evaluator
	metrics *telemetry.Metrics
}

// NewEngine creates a backtest engine. metrics may be nil.
func NewEngine(cfg Config, scorer Scorer, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		scorer:  scorer,
		eval:    gates.NewEvaluator(cfg.Gates),
		metrics: metrics,
	}
}

// Run replays bars through the full pipeline. The context is checked
// between bars, so a cancelled run returns promptly with the error.
func (e *Engine) Run(ctx context.Context, bars []market.Bar) (*Result, error) {
	if len(bars) <= e.cfg.WarmupBars {
		return nil, fmt.Errorf("backtest needs more than %d warmup bars, have %d", e.cfg.WarmupBars, len(bars))
	}
	if err := market.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("invalid bar series: %w", err)
	}

	started := time.Now()
	simulator := sim.NewSimulator(e.cfg.Symbol, e.cfg.StartingCash, e.cfg.Costs)
	riskState := risk.NewState(e.cfg.StartingCash)
	equity := make([]EquityPoint, 0, len(bars)-e.cfg.WarmupBars)

	for i := e.cfg.WarmupBars; i < len(bars); i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("backtest cancelled at bar %d: %w", i, ctx.Err())
		default:
		}

		bar := bars[i]
		window := e.window(bars, i)

		// Stops, targets and the time stop fire on the current bar before
		// any new signal is considered.
		if closed := simulator.CheckExit(bar, e.cfg.TimeStopBars); closed != nil {
			e.recordClose(closed)
		}

		score, err := e.scorer.Score(ctx, window, nil)
		if err != nil {
			log.Warn().Err(err).Int("bar", i).Msg("scoring failed, skipping bar")
		} else {
			// The final bar only closes: a position opened there would exit
			// at its own entry timestamp.
			e.applySignal(simulator, riskState, score, window, bar, i == len(bars)-1)
		}

		// The curve tracks realized PnL only. Open positions are not
		// marked to market, so the drawdown breaker reacts to closed
		// losses rather than intrabar excursions.
		realized := simulator.Realized()
		riskState.Update(realized)
		equity = append(equity, EquityPoint{Timestamp: bar.Timestamp, Equity: realized})
	}

	last := bars[len(bars)-1]
	if closed := simulator.Close(last.Close, last.Timestamp, sim.ExitEndOfData); closed != nil {
		e.recordClose(closed)
		equity[len(equity)-1].Equity = simulator.Realized()
	}

	if e.metrics != nil {
		e.metrics.BacktestRuns.Inc()
	}
	return &Result{
		Symbol:     e.cfg.Symbol,
		Config:     e.cfg,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Bars:       len(bars) - e.cfg.WarmupBars,
		Trades:     simulator.Closed(),
		Equity:     equity,
		Metrics:    Compute(simulator.Closed(), equity, market.MedianSpacing(bars)),
	}, nil
}

// applySignal turns a combined score into simulator actions for one bar.
// closeOnly suppresses new entries; exits still fire.
func (e *Engine) applySignal(simulator *sim.Simulator, riskState *risk.State, score *scoring.CombinedScore, window []market.Bar, bar market.Bar, closeOnly bool) {
	advice := score.Advice
	open := simulator.Position()

	if open != nil {
		if (open.Direction == sim.Long && advice == scoring.AdviceSell) ||
			(open.Direction == sim.Short && advice == scoring.AdviceBuy) {
			if closed := simulator.Close(bar.Close, bar.Timestamp, sim.ExitSignal); closed != nil {
				e.recordClose(closed)
			}
		}
		return
	}
	if closeOnly || advice == scoring.AdviceHold {
		return
	}

	dir := sim.Long
	if advice == scoring.AdviceSell {
		dir = sim.Short
	}

	atrPct := indicators.ATRPercent(window, 14)
	if !riskState.IsTradingAllowed(atrPct, e.cfg.Risk) {
		return
	}
	report := e.eval.Evaluate(gateInputs(score, dir, window))
	if !report.Allow {
		return
	}

	equityNow := simulator.Realized()
	fraction := risk.PositionSize(equityNow, atrPct, e.cfg.Risk)
	if fraction <= 0 || bar.Close <= 0 {
		return
	}
	qty := equityNow * fraction / bar.Close

	atrSeries := indicators.ATR(window, 14)
	atr := 0.0
	if len(atrSeries) > 0 {
		atr = atrSeries[len(atrSeries)-1]
	}
	stop := risk.StopLoss(bar.Close, atr, dir, e.cfg.Risk)
	target := risk.TakeProfit(bar.Close, stop, dir, e.cfg.Risk)

	simulator.Open(dir, qty, bar.Close, stop, target, bar.Timestamp)
}

func (e *Engine) recordClose(t *sim.Trade) {
	if e.metrics != nil {
		e.metrics.TradesClosed.WithLabelValues(string(t.ExitReason)).Inc()
	}
}

// window returns the scoring slice ending at bar i, capped to WindowBars
func (e *Engine) window(bars []market.Bar, i int) []market.Bar {
	end := i + 1
	if e.cfg.WindowBars > 0 && end > e.cfg.WindowBars {
		return bars[end-e.cfg.WindowBars : end]
	}
	return bars[:end]
}

// gateInputs maps a combined score's component breakdown onto the gate
// battery inputs. Missing or neutral components read as failing inputs
// (zero structure, zero slope, no liquidity): a bar with no structural
// confirmation must not trade, so absence fails closed.
func gateInputs(score *scoring.CombinedScore, dir sim.Direction, window []market.Bar) gates.Inputs {
	in := gates.Inputs{
		Direction:       dir,
		EntryScore:      score.FinalScore,
		ConfluenceScore: score.Confidence,
		Sentiment:       0.5,
		HTFTrend:        htfTrend(window),
	}

	if c, ok := score.Components["rsi_macd"]; ok {
		in.MACDHistSlope = metaFloat(c.Meta, "macd_hist_slope", 0)
	}
	if c, ok := score.Components["smc"]; ok {
		in.SMCZQS = metaFloat(c.Meta, "smc_zqs", 0)
		in.FVGATR = metaFloat(c.Meta, "fvg_atr", 0)
		in.LiquidityNear = metaBool(c.Meta, "liq_near", false)
		in.HasSecondBOS = metaBool(c.Meta, "has_second_bos", false)
	}
	if c, ok := score.Components["sentiment"]; ok {
		in.Sentiment = (c.Raw + 1) / 2
	}
	return in
}

// htfTrend classifies the higher-timeframe trend from the SMA spread
func htfTrend(window []market.Bar) float64 {
	closes := market.Closes(window)
	fast := indicators.SMA(closes, 20)
	slow := indicators.SMA(closes, 50)
	if fast == nil || slow == nil {
		return 0
	}
	f, s := fast[len(fast)-1], slow[len(slow)-1]
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

func metaFloat(meta map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := meta[key].(float64); ok {
		return v
	}
	return fallback
}

func metaBool(meta map[string]interface{}, key string, fallback bool) bool {
	if v, ok := meta[key].(bool); ok {
		return v
	}
	return fallback
}
