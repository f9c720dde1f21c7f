package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// csvHeader is the canonical column layout for bar files
var csvHeader = []string{"timestamp_ms", "open", "high", "low", "close", "volume"}

// LoadCSV reads OHLCV bars from a CSV file with a timestamp_ms header row.
// The series is validated before being returned.
func LoadCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read bars file %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("bars file %s: no data rows", path)
	}

	bars := make([]Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("bars file %s row %d: expected 6 columns, got %d", path, i+2, len(rec))
		}
		fields := make([]float64, 6)
		for j, raw := range rec[:6] {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("bars file %s row %d col %s: %w", path, i+2, csvHeader[j], err)
			}
			fields[j] = v
		}
		bars = append(bars, Bar{
			Timestamp: time.UnixMilli(int64(fields[0])).UTC(),
			Open:      fields[1],
			High:      fields[2],
			Low:       fields[3],
			Close:     fields[4],
			Volume:    fields[5],
		})
	}

	if err := ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("bars file %s: %w", path, err)
	}
	return bars, nil
}

// WriteCSV writes bars to path in the canonical column layout
func WriteCSV(path string, bars []Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bars file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range bars {
		rec := []string{
			strconv.FormatInt(b.Timestamp.UnixMilli(), 10),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write bar row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
