package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "quantfuse"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-detector crypto signal scoring and backtesting",
		Version: version,
		Long: `quantfuse scores crypto markets with a battery of technical and
structural detectors, blends them under regime-aware dynamic weights,
and replays the whole pipeline over historical bars.`,
	}
	rootCmd.PersistentFlags().String("config", "quantfuse.yaml", "Path to the tunable scoring configuration")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score one bar series",
		Long:  "Runs the full detector battery on a CSV bar series and prints the combined score",
		RunE:  runScore,
	}
	scoreCmd.Flags().String("data", "", "CSV bar file (timestamp_ms,open,high,low,close,volume)")
	scoreCmd.Flags().Int("synthetic", 0, "Generate N synthetic bars instead of reading a file")
	scoreCmd.Flags().Bool("json", false, "Emit the full component breakdown as JSON")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a symbol/timeframe grid",
		Long:  "Scores every symbol and timeframe pair and ranks the results by conviction",
		RunE:  runScan,
	}
	scanCmd.Flags().String("symbols", "BTC-USD,ETH-USD,SOL-USD", "Comma-separated symbol list")
	scanCmd.Flags().String("timeframes", "1h,4h", "Comma-separated timeframe list")
	scanCmd.Flags().Int("bars", 300, "Bars fetched per pair")
	scanCmd.Flags().Int("concurrency", 4, "Pairs scored in parallel")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the pipeline over historical bars",
		Long:  "Runs score, gates, risk sizing and the trade simulator bar by bar and reports performance metrics",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().String("data", "", "CSV bar file (required unless --synthetic is set)")
	backtestCmd.Flags().Int("synthetic", 0, "Generate N synthetic bars instead of reading a file")
	backtestCmd.Flags().String("symbol", "BTC-USD", "Symbol label for the run")
	backtestCmd.Flags().Float64("cash", 10000, "Starting cash")
	backtestCmd.Flags().Int("warmup", 200, "Warm-up bars before the first signal")
	backtestCmd.Flags().String("out-trades", "", "Write the trade ledger CSV to this path")
	backtestCmd.Flags().String("out-equity", "", "Write the equity curve CSV to this path")

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Offline calibration of weights and thresholds",
	}

	weightsCmd := &cobra.Command{
		Use:   "weights",
		Short: "Evolve detector weights with the genetic optimizer",
		Long:  "Builds a walk-forward sample set from historical bars, evolves the weight vector against it and persists the winner",
		RunE:  runCalibrateWeights,
	}
	weightsCmd.Flags().String("data", "", "CSV bar file (required unless --synthetic is set)")
	weightsCmd.Flags().Int("synthetic", 0, "Generate N synthetic bars instead of reading a file")
	weightsCmd.Flags().Int("generations", 25, "Generations to evolve")
	weightsCmd.Flags().Int("population", 40, "Candidates per generation")
	weightsCmd.Flags().Int64("seed", 1, "Optimizer random seed")
	weightsCmd.Flags().Bool("dry-run", false, "Report the winner without persisting it")

	thresholdsCmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Tune entry thresholds with Q-learning",
		Long:  "Tunes the entry and confluence thresholds against walk-forward hit rate and persists the winner",
		RunE:  runCalibrateThresholds,
	}
	thresholdsCmd.Flags().String("data", "", "CSV bar file (required unless --synthetic is set)")
	thresholdsCmd.Flags().Int("synthetic", 0, "Generate N synthetic bars instead of reading a file")
	thresholdsCmd.Flags().Int("episodes", 200, "Q-learning update steps")
	thresholdsCmd.Flags().Int64("seed", 1, "Tuner random seed")
	thresholdsCmd.Flags().Bool("dry-run", false, "Report the winner without persisting it")

	calibrateCmd.AddCommand(weightsCmd)
	calibrateCmd.AddCommand(thresholdsCmd)

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(calibrateCmd)

	cobra.OnInitialize(func() {
		if debug, _ := rootCmd.PersistentFlags().GetBool("debug"); debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
