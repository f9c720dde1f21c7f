package market

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarValidate(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	valid := Bar{Timestamp: ts, Open: 100, High: 105, Low: 98, Close: 103, Volume: 10}
	assert.NoError(t, valid.Validate())

	highBelowLow := Bar{Timestamp: ts, Open: 100, High: 95, Low: 98, Close: 96, Volume: 10}
	assert.Error(t, highBelowLow.Validate())

	closeOutside := Bar{Timestamp: ts, Open: 100, High: 105, Low: 98, Close: 110, Volume: 10}
	assert.Error(t, closeOutside.Validate())

	negativeVolume := Bar{Timestamp: ts, Open: 100, High: 105, Low: 98, Close: 103, Volume: -1}
	assert.Error(t, negativeVolume.Validate())
}

func TestValidateSeries_OrderingEnforced(t *testing.T) {
	bars := GenerateBars(50, DefaultSyntheticConfig())
	require.NoError(t, ValidateSeries(bars))

	// Swap two timestamps to break monotonicity
	bars[10].Timestamp, bars[11].Timestamp = bars[11].Timestamp, bars[10].Timestamp
	assert.Error(t, ValidateSeries(bars))
}

func TestGenerateBars_Deterministic(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	a := GenerateBars(300, cfg)
	b := GenerateBars(300, cfg)
	require.Equal(t, a, b, "identical seed must produce identical bars")

	cfg.Seed = 42
	c := GenerateBars(300, cfg)
	assert.NotEqual(t, a, c, "different seed should change the series")
}

func TestReturns(t *testing.T) {
	bars := []Bar{
		{Close: 100}, {Close: 110}, {Close: 99},
	}
	rets := Returns(bars)
	require.Len(t, rets, 2)
	assert.InDelta(t, 0.10, rets[0], 1e-12)
	assert.InDelta(t, -0.10, rets[1], 1e-12)
}

func TestMedianSpacing(t *testing.T) {
	hourly := GenerateBars(24, DefaultSyntheticConfig())
	assert.Equal(t, time.Hour, MedianSpacing(hourly))
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	bars := GenerateBars(20, DefaultSyntheticConfig())

	require.NoError(t, WriteCSV(path, bars))
	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(bars))
	for i := range bars {
		assert.Equal(t, bars[i].Timestamp.UnixMilli(), loaded[i].Timestamp.UnixMilli())
		assert.InDelta(t, bars[i].Close, loaded[i].Close, 1e-9)
	}
}
