package backtest

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfuse/quantfuse/internal/sim"
)

// Annualization treats daily bars as 252 trading days and anything faster
// as hourly crypto bars trading around the clock.
const (
	periodsPerYearDaily  = 252
	periodsPerYearHourly = 252 * 24
	dailySpacingCutoff   = 23 * time.Hour
)

// Metrics is the performance summary of one backtest run
type Metrics struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`

	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"` // reported positive
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"` // mean PnL per trade

	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Calmar           float64 `json:"calmar"`
	Kelly            float64 `json:"kelly"`

	MaxWinStreak  int `json:"max_win_streak"`
	MaxLossStreak int `json:"max_loss_streak"`

	MonthlyReturns map[string]float64 `json:"monthly_returns,omitempty"` // keyed "2024-03"
}

// Compute derives the full metric set from closed trades and the equity
// curve. spacing is the median bar spacing, used to pick the
// annualization factor.
func Compute(trades []sim.Trade, equity []EquityPoint, spacing time.Duration) Metrics {
	m := Metrics{TotalTrades: len(trades)}

	var avgWin, avgLoss float64
	winStreak, lossStreak := 0, 0
	for _, t := range trades {
		if t.PnL > 0 {
			m.Wins++
			m.GrossProfit += t.PnL
			winStreak++
			lossStreak = 0
		} else {
			m.Losses++
			m.GrossLoss += -t.PnL
			lossStreak++
			winStreak = 0
		}
		if winStreak > m.MaxWinStreak {
			m.MaxWinStreak = winStreak
		}
		if lossStreak > m.MaxLossStreak {
			m.MaxLossStreak = lossStreak
		}
		m.Expectancy += t.PnL
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
		m.Expectancy /= float64(m.TotalTrades)
	}
	if m.Wins > 0 {
		avgWin = m.GrossProfit / float64(m.Wins)
	}
	if m.Losses > 0 {
		avgLoss = m.GrossLoss / float64(m.Losses)
	}
	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	case m.GrossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	}
	m.Kelly = KellyFraction(m.WinRate, avgWin, avgLoss)

	if len(equity) < 2 {
		return m
	}
	first, last := equity[0].Equity, equity[len(equity)-1].Equity
	if first > 0 {
		m.TotalReturn = last/first - 1
	}

	perYear := annualizationPeriods(spacing)
	returns := equityReturns(equity)
	m.Sharpe = sharpe(returns, perYear)
	m.Sortino = sortino(returns, perYear)
	m.MaxDrawdown = maxDrawdown(equity)

	years := float64(len(returns)) / perYear
	if years > 0 && m.TotalReturn > -1 {
		m.AnnualizedReturn = math.Pow(1+m.TotalReturn, 1/years) - 1
	}
	if m.MaxDrawdown > 0 {
		m.Calmar = m.AnnualizedReturn / m.MaxDrawdown
	}
	m.MonthlyReturns = monthlyReturns(equity)
	return m
}

// KellyFraction is the Kelly criterion (b*p - q) / b with b the
// win/loss payoff ratio, clamped to [0, 1].
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if avgLoss <= 0 {
		if winRate > 0 && avgWin > 0 {
			return 1
		}
		return 0
	}
	if avgWin <= 0 {
		return 0
	}
	b := avgWin / avgLoss
	k := (b*winRate - (1 - winRate)) / b
	if k < 0 {
		return 0
	}
	if k > 1 {
		return 1
	}
	return k
}

// annualizationPeriods picks the bars-per-year figure from bar spacing:
// anything slower than ~daily is treated as daily, faster as hourly.
func annualizationPeriods(spacing time.Duration) float64 {
	if spacing >= dailySpacingCutoff {
		return periodsPerYearDaily
	}
	return periodsPerYearHourly
}

func equityReturns(equity []EquityPoint) []float64 {
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i].Equity/prev-1)
	}
	return out
}

func sharpe(returns []float64, perYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(perYear)
}

func sortino(returns []float64, perYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	var downSq float64
	for _, r := range returns {
		if r < 0 {
			downSq += r * r
		}
	}
	down := math.Sqrt(downSq / float64(len(returns)))
	if down == 0 {
		return 0
	}
	return mean / down * math.Sqrt(perYear)
}

func maxDrawdown(equity []EquityPoint) float64 {
	peak, maxDD := equity[0].Equity, 0.0
	for _, p := range equity[1:] {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// monthlyReturns buckets the equity curve by calendar month using the
// last mark of each month against the last mark of the prior month.
func monthlyReturns(equity []EquityPoint) map[string]float64 {
	closes := make(map[string]float64)
	order := make([]string, 0, 8)
	for _, p := range equity {
		key := p.Timestamp.Format("2006-01")
		if _, seen := closes[key]; !seen {
			order = append(order, key)
		}
		closes[key] = p.Equity
	}
	out := make(map[string]float64, len(order))
	prev := equity[0].Equity
	for _, key := range order {
		if prev > 0 {
			out[key] = closes[key]/prev - 1
		}
		prev = closes[key]
	}
	return out
}
