// Package telemetry holds the process-internal Prometheus metrics for the
// scoring and backtest pipelines.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all quantfuse Prometheus collectors
type Metrics struct {
	ScoringDuration  *prometheus.HistogramVec
	DetectorFailures *prometheus.CounterVec
	DetectorTimeouts *prometheus.CounterVec
	BreakerOpens     *prometheus.CounterVec
	ScoresTotal      prometheus.Counter
	BacktestRuns     prometheus.Counter
	TradesClosed     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics set on its own registry
func NewMetrics() *Metrics {
	m := &Metrics{
		ScoringDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantfuse_scoring_duration_seconds",
				Help:    "Duration of full scoring calls in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"outcome"},
		),
		DetectorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfuse_detector_failures_total",
				Help: "Detector invocations degraded to neutral by error or panic",
			},
			[]string{"detector"},
		),
		DetectorTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfuse_detector_timeouts_total",
				Help: "Detector invocations that exceeded the time budget",
			},
			[]string{"detector"},
		),
		BreakerOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfuse_detector_breaker_open_total",
				Help: "Scoring calls short-circuited by an open detector breaker",
			},
			[]string{"detector"},
		),
		ScoresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantfuse_scores_total",
				Help: "Total scoring calls completed",
			},
		),
		BacktestRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantfuse_backtest_runs_total",
				Help: "Total backtest runs completed",
			},
		),
		TradesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfuse_trades_closed_total",
				Help: "Simulated trades closed by exit reason",
			},
			[]string{"reason"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.ScoringDuration,
		m.DetectorFailures,
		m.DetectorTimeouts,
		m.BreakerOpens,
		m.ScoresTotal,
		m.BacktestRuns,
		m.TradesClosed,
	)
	return m
}

// Registry exposes the underlying registry for gathering in tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
