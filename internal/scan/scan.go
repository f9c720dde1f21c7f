// Package scan runs the scoring engine across a symbol/timeframe grid
// and ranks the results by conviction.
package scan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfuse/quantfuse/internal/config"
	"github.com/quantfuse/quantfuse/internal/detect"
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/scoring"
)

// DataSource supplies bar history for a symbol and timeframe
type DataSource interface {
	Bars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error)
}

// Scorer produces a combined score for a bar window. Satisfied by
// *scoring.Engine.
type Scorer interface {
	Score(ctx context.Context, bars []market.Bar, mctx detect.MarketContext) (*scoring.CombinedScore, error)
}

// Request describes one scan sweep
type Request struct {
	Symbols    []string
	Timeframes []string
	BarLimit   int // bars fetched per pair (default: 300)
}

// Entry is one scored symbol/timeframe pair
type Entry struct {
	Symbol    string                 `json:"symbol"`
	Timeframe string                 `json:"timeframe"`
	Score     *scoring.CombinedScore `json:"score"`
}

// Conviction is the entry's distance from the balanced score, used for
// ranking: strong signals on either side sort first.
func (e Entry) Conviction() float64 {
	if e.Score.FinalScore >= 0.5 {
		return e.Score.FinalScore - 0.5
	}
	return 0.5 - e.Score.FinalScore
}

// Report is the ranked scan outcome. Pairs that failed to score are
// reported in Failed, never silently dropped.
type Report struct {
	Entries  []Entry           `json:"entries"` // sorted by conviction, descending
	Failed   map[string]string `json:"failed,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// Scanner fans the scoring engine out across symbols
type Scanner struct {
	source      DataSource
	scorer      Scorer
	filters     config.SymbolFilters
	concurrency int
}

// NewScanner creates a scanner. concurrency bounds the number of pairs
// scored at once; values below 1 mean 4.
func NewScanner(source DataSource, scorer Scorer, filters config.SymbolFilters, concurrency int) *Scanner {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Scanner{source: source, scorer: scorer, filters: filters, concurrency: concurrency}
}

// Scan scores every allowed symbol/timeframe pair and returns the ranked
// report. Individual pair failures are collected; only an empty grid is
// an error.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Report, error) {
	if len(req.Symbols) == 0 || len(req.Timeframes) == 0 {
		return nil, fmt.Errorf("scan needs at least one symbol and one timeframe")
	}
	limit := req.BarLimit
	if limit <= 0 {
		limit = 300
	}

	type pair struct{ symbol, timeframe string }
	pairs := make([]pair, 0, len(req.Symbols)*len(req.Timeframes))
	for _, sym := range req.Symbols {
		if !s.filters.Allowed(sym) {
			log.Debug().Str("symbol", sym).Msg("symbol filtered from scan")
			continue
		}
		for _, tf := range req.Timeframes {
			pairs = append(pairs, pair{sym, tf})
		}
	}

	started := time.Now()
	report := &Report{Failed: make(map[string]string)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)
	for _, p := range pairs {
		wg.Add(1)
		go func(p pair) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			key := p.symbol + "/" + p.timeframe
			bars, err := s.source.Bars(ctx, p.symbol, p.timeframe, limit)
			if err == nil {
				var score *scoring.CombinedScore
				score, err = s.scorer.Score(ctx, bars, nil)
				if err == nil {
					mu.Lock()
					report.Entries = append(report.Entries, Entry{Symbol: p.symbol, Timeframe: p.timeframe, Score: score})
					mu.Unlock()
					return
				}
			}
			mu.Lock()
			report.Failed[key] = err.Error()
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	sort.SliceStable(report.Entries, func(i, j int) bool {
		ci, cj := report.Entries[i].Conviction(), report.Entries[j].Conviction()
		if ci != cj {
			return ci > cj
		}
		if report.Entries[i].Symbol != report.Entries[j].Symbol {
			return report.Entries[i].Symbol < report.Entries[j].Symbol
		}
		return report.Entries[i].Timeframe < report.Entries[j].Timeframe
	})
	report.Duration = time.Since(started)
	return report, nil
}
