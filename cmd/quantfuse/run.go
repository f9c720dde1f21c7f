package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfuse/quantfuse/internal/backtest"
	"github.com/quantfuse/quantfuse/internal/calibrate"
	"github.com/quantfuse/quantfuse/internal/config"
	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/regime"
	"github.com/quantfuse/quantfuse/internal/scan"
	"github.com/quantfuse/quantfuse/internal/scoring"
	"github.com/quantfuse/quantfuse/internal/telemetry"
	"github.com/quantfuse/quantfuse/internal/weights"
)

// loadBars reads the CSV file, or generates a synthetic series when
// --synthetic is set
func loadBars(cmd *cobra.Command) ([]market.Bar, error) {
	synthetic, _ := cmd.Flags().GetInt("synthetic")
	if synthetic > 0 {
		return market.GenerateBars(synthetic, market.DefaultSyntheticConfig()), nil
	}
	path, _ := cmd.Flags().GetString("data")
	if path == "" {
		return nil, fmt.Errorf("either --data or --synthetic is required")
	}
	return market.LoadCSV(path)
}

func configStore(cmd *cobra.Command) *config.FileStore {
	path, _ := cmd.Flags().GetString("config")
	return config.NewFileStore(path)
}

// buildEngine wires the scoring engine from the config store. The entry
// threshold from the gate configuration doubles as the BUY threshold so
// threshold calibration affects both layers.
func buildEngine(store *config.FileStore, metrics *telemetry.Metrics) (*scoring.Engine, error) {
	cfg, err := store.Snapshot()
	if err != nil {
		return nil, err
	}
	engineCfg := scoring.DefaultEngineConfig()
	engineCfg.BuyThreshold = cfg.Gates.EntryScore

	return scoring.NewEngine(
		engineCfg,
		detect.DefaultRegistry(),
		regime.NewDetector(regime.DefaultDetectorConfig()),
		weights.NewAdjuster(cfg.RegimeMultipliers),
		store,
		metrics,
	), nil
}

func runScore(cmd *cobra.Command, _ []string) error {
	bars, err := loadBars(cmd)
	if err != nil {
		return err
	}
	engine, err := buildEngine(configStore(cmd), telemetry.NewMetrics())
	if err != nil {
		return err
	}

	score, err := engine.Score(cmd.Context(), bars, nil)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(score)
	}

	fmt.Printf("final score   %.4f\n", score.FinalScore)
	fmt.Printf("direction     %s\n", score.Direction)
	fmt.Printf("advice        %s\n", score.Advice)
	fmt.Printf("confidence    %.4f\n", score.Confidence)
	fmt.Printf("disagreement  %.4f\n", score.Disagreement)
	if active := score.Regime.Active(); len(active) > 0 {
		fmt.Printf("regime        %s\n", strings.Join(active, ","))
	}
	return nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	symbols, _ := cmd.Flags().GetString("symbols")
	timeframes, _ := cmd.Flags().GetString("timeframes")
	bars, _ := cmd.Flags().GetInt("bars")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	store := configStore(cmd)
	cfg, err := store.Snapshot()
	if err != nil {
		return err
	}
	engine, err := buildEngine(store, telemetry.NewMetrics())
	if err != nil {
		return err
	}

	scanner := scan.NewScanner(syntheticSource{}, engine, cfg.Symbols, concurrency)
	report, err := scanner.Scan(cmd.Context(), scan.Request{
		Symbols:    strings.Split(symbols, ","),
		Timeframes: strings.Split(timeframes, ","),
		BarLimit:   bars,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%-12s %-6s %8s %8s %s\n", "SYMBOL", "TF", "SCORE", "CONV", "ADVICE")
	for _, e := range report.Entries {
		fmt.Printf("%-12s %-6s %8.4f %8.4f %s\n", e.Symbol, e.Timeframe, e.Score.FinalScore, e.Conviction(), e.Score.Advice)
	}
	for key, reason := range report.Failed {
		log.Warn().Str("pair", key).Str("reason", reason).Msg("pair not scored")
	}
	log.Info().Dur("duration", report.Duration).Int("ranked", len(report.Entries)).Msg("scan finished")
	return nil
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	bars, err := loadBars(cmd)
	if err != nil {
		return err
	}
	symbol, _ := cmd.Flags().GetString("symbol")
	cash, _ := cmd.Flags().GetFloat64("cash")
	warmup, _ := cmd.Flags().GetInt("warmup")

	store := configStore(cmd)
	cfg, err := store.Snapshot()
	if err != nil {
		return err
	}
	engine, err := buildEngine(store, telemetry.NewMetrics())
	if err != nil {
		return err
	}

	btCfg := backtest.DefaultConfig(symbol)
	btCfg.StartingCash = cash
	btCfg.WarmupBars = warmup
	btCfg.Gates = cfg.Gates

	result, err := backtest.NewEngine(btCfg, engine, telemetry.NewMetrics()).Run(cmd.Context(), bars)
	if err != nil {
		return err
	}
	backtest.NewCache().Put(result)

	m := result.Metrics
	fmt.Printf("bars          %d\n", result.Bars)
	fmt.Printf("trades        %d (%d W / %d L)\n", m.TotalTrades, m.Wins, m.Losses)
	fmt.Printf("win rate      %.2f%%\n", m.WinRate*100)
	fmt.Printf("profit factor %.2f\n", m.ProfitFactor)
	fmt.Printf("expectancy    %.2f\n", m.Expectancy)
	fmt.Printf("total return  %.2f%%\n", m.TotalReturn*100)
	fmt.Printf("annualized    %.2f%%\n", m.AnnualizedReturn*100)
	fmt.Printf("sharpe        %.2f\n", m.Sharpe)
	fmt.Printf("sortino       %.2f\n", m.Sortino)
	fmt.Printf("max drawdown  %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("kelly         %.3f\n", m.Kelly)

	if path, _ := cmd.Flags().GetString("out-trades"); path != "" {
		if err := writeCSVFile(path, func(f *os.File) error {
			return backtest.WriteTradesCSV(f, result.Trades)
		}); err != nil {
			return err
		}
	}
	if path, _ := cmd.Flags().GetString("out-equity"); path != "" {
		if err := writeCSVFile(path, func(f *os.File) error {
			return backtest.WriteEquityCSV(f, result.Equity)
		}); err != nil {
			return err
		}
	}
	return nil
}

func runCalibrateWeights(cmd *cobra.Command, _ []string) error {
	bars, err := loadBars(cmd)
	if err != nil {
		return err
	}
	store := configStore(cmd)
	cfg, err := store.Snapshot()
	if err != nil {
		return err
	}

	samples, err := calibrate.BuildWalk(cmd.Context(), bars, detect.DefaultRegistry(), 0, 1)
	if err != nil {
		return err
	}
	fitness, err := calibrate.WalkFitness(samples)
	if err != nil {
		return err
	}

	gaCfg := calibrate.DefaultGAConfig()
	gaCfg.Generations, _ = cmd.Flags().GetInt("generations")
	gaCfg.Population, _ = cmd.Flags().GetInt("population")
	gaCfg.Seed, _ = cmd.Flags().GetInt64("seed")

	started := time.Now()
	result, err := gaCfg.OptimizeWeights(cmd.Context(), cfg.Weights, fitness)
	if err != nil {
		return err
	}
	log.Info().
		Float64("base_fitness", fitness(cfg.Weights)).
		Float64("best_fitness", result.BestFitness).
		Dur("took", time.Since(started)).
		Msg("weight calibration finished")

	for _, name := range result.Best.Names() {
		fmt.Printf("%-14s %.4f\n", name, result.Best[name])
	}

	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		return nil
	}
	return store.Update(func(c *config.AIConfig) error {
		c.Weights = result.Best
		return nil
	})
}

func runCalibrateThresholds(cmd *cobra.Command, _ []string) error {
	bars, err := loadBars(cmd)
	if err != nil {
		return err
	}
	store := configStore(cmd)
	cfg, err := store.Snapshot()
	if err != nil {
		return err
	}

	samples, err := calibrate.BuildWalk(cmd.Context(), bars, detect.DefaultRegistry(), 0, 1)
	if err != nil {
		return err
	}

	rlCfg := calibrate.DefaultRLConfig()
	rlCfg.Episodes, _ = cmd.Flags().GetInt("episodes")
	rlCfg.Seed, _ = cmd.Flags().GetInt64("seed")

	result, err := rlCfg.TuneThresholds(cmd.Context(), cfg.Gates.EntryScore, cfg.Gates.ConfluenceScore,
		hitRateEval(samples, cfg.Weights))
	if err != nil {
		return err
	}
	fmt.Printf("entry score      %.3f\n", result.EntryScore)
	fmt.Printf("confluence score %.3f\n", result.ConfluenceScore)
	fmt.Printf("hit rate         %.3f\n", result.Performance)

	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		return nil
	}
	return store.Update(func(c *config.AIConfig) error {
		c.Gates.EntryScore = result.EntryScore
		c.Gates.ConfluenceScore = result.ConfluenceScore
		return nil
	})
}

// hitRateEval scores a threshold pair by the fraction of entry signals
// followed by a positive bar. A bar only signals when its weighted score
// clears entry and its mean detector confidence clears confluence, so
// both tuned thresholds shape the reward. No signals at all scores zero.
func hitRateEval(samples []calibrate.Sample, w weights.Weights) calibrate.ThresholdEval {
	return func(entry, confluence float64) float64 {
		signals, hits := 0, 0
		for _, s := range samples {
			score := 0.0
			for name, weight := range w {
				norm, ok := s.Normalized[name]
				if !ok {
					norm = 0.5
				}
				score += weight * norm
			}
			if score >= entry && meanConfidence(s.Confidence) >= confluence {
				signals++
				if s.NextReturn > 0 {
					hits++
				}
			}
		}
		if signals == 0 {
			return 0
		}
		return float64(hits) / float64(signals)
	}
}

// meanConfidence averages per-detector confidence; no detectors means none.
func meanConfidence(conf map[string]float64) float64 {
	if len(conf) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range conf {
		total += c
	}
	return total / float64(len(conf))
}

// syntheticSource feeds the scanner deterministic per-pair bar series.
// Live exchange connectivity is wired in by swapping this out.
type syntheticSource struct{}

func (syntheticSource) Bars(_ context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	cfg := market.DefaultSyntheticConfig()
	h := fnv.New64a()
	h.Write([]byte(symbol + "/" + timeframe))
	cfg.Seed = int64(h.Sum64() & 0x7fffffffffffffff)
	cfg.BarSpacing = timeframeSpacing(timeframe)
	return market.GenerateBars(limit, cfg), nil
}

func timeframeSpacing(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

func writeCSVFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("wrote csv")
	return nil
}
