package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfuse/quantfuse/internal/sim"
)

// EquityPoint is one mark on the equity curve
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Result is the immutable outcome of one backtest run
type Result struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Config     Config        `json:"config"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Bars       int           `json:"bars"`
	Trades     []sim.Trade   `json:"trades"`
	Equity     []EquityPoint `json:"equity"`
	Metrics    Metrics       `json:"metrics"`
}

// Cache stores completed results keyed by run ID. Results are treated as
// immutable once stored.
type Cache struct {
	mu      sync.RWMutex
	results map[string]*Result
}

// NewCache creates an empty result cache
func NewCache() *Cache {
	return &Cache{results: make(map[string]*Result)}
}

// Put stores a result, assigning a run ID when it has none, and returns
// the ID.
func (c *Cache) Put(r *Result) string {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	c.mu.Lock()
	c.results[r.ID] = r
	c.mu.Unlock()
	return r.ID
}

// Get returns the stored result for id
func (c *Cache) Get(id string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[id]
	return r, ok
}

// IDs returns all stored run IDs, sorted
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.results))
	for id := range c.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WriteTradesCSV writes the trade ledger as CSV
func WriteTradesCSV(w io.Writer, trades []sim.Trade) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "symbol", "direction", "quantity", "entry_time", "entry_price", "exit_time", "exit_price", "bars_held", "pnl", "exit_reason"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write trades header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.ID,
			t.Symbol,
			string(t.Direction),
			formatFloat(t.Quantity),
			t.EntryTime.UTC().Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			t.ExitTime.UTC().Format(time.RFC3339),
			formatFloat(t.ExitPrice),
			strconv.Itoa(t.BarsHeld),
			formatFloat(t.PnL),
			string(t.ExitReason),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trade %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the equity curve as CSV
func WriteEquityCSV(w io.Writer, equity []EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "equity"}); err != nil {
		return fmt.Errorf("write equity header: %w", err)
	}
	for _, p := range equity {
		row := []string{p.Timestamp.UTC().Format(time.RFC3339), formatFloat(p.Equity)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write equity point: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
