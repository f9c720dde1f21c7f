// Package market provides OHLCV bar types, series helpers, CSV loading and
// synthetic data generation used by the scoring and backtest engines.
package market

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV candlestick bar
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate checks the OHLCV invariants for a single bar
func (b Bar) Validate() error {
	if b.High < b.Low {
		return fmt.Errorf("bar at %s: high %.8f below low %.8f", b.Timestamp.Format(time.RFC3339), b.High, b.Low)
	}
	if b.Open > b.High || b.Open < b.Low {
		return fmt.Errorf("bar at %s: open %.8f outside [low, high]", b.Timestamp.Format(time.RFC3339), b.Open)
	}
	if b.Close > b.High || b.Close < b.Low {
		return fmt.Errorf("bar at %s: close %.8f outside [low, high]", b.Timestamp.Format(time.RFC3339), b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar at %s: negative volume %.4f", b.Timestamp.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// Body returns the signed candle body (close - open)
func (b Bar) Body() float64 {
	return b.Close - b.Open
}

// Range returns the full high-low range of the bar
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Bullish reports whether the bar closed above its open
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

// ValidateSeries validates every bar and the non-decreasing timestamp ordering
func ValidateSeries(bars []Bar) error {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && bar.Timestamp.Before(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s precedes previous bar", i, bar.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
