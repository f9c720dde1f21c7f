package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/weights"
)

func storeAt(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quantfuse.yaml")
	return NewFileStore(path), path
}

func TestSnapshot_MissingFileYieldsDefaults(t *testing.T) {
	store, path := storeAt(t)

	cfg, err := store.Snapshot()
	require.NoError(t, err)
	assert.NoError(t, cfg.Weights.Validate())
	assert.InDelta(t, 0.65, cfg.Gates.EntryScore, 1e-12)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "snapshot alone does not create the file")
}

func TestUpdate_PersistsAcrossStores(t *testing.T) {
	store, path := storeAt(t)

	err := store.Update(func(c *AIConfig) error {
		c.Gates.EntryScore = 0.7
		return nil
	})
	require.NoError(t, err)

	reopened := NewFileStore(path)
	cfg, err := reopened.Snapshot()
	require.NoError(t, err)
	assert.InDelta(t, 0.7, cfg.Gates.EntryScore, 1e-12)
}

func TestUpdate_InvalidWeightsRejected(t *testing.T) {
	store, _ := storeAt(t)

	err := store.Update(func(c *AIConfig) error {
		c.Weights = weights.Weights{"only": 0.3}
		return nil
	})
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg, snapErr := store.Snapshot()
	require.NoError(t, snapErr)
	assert.NoError(t, cfg.Weights.Validate(), "previous config stays in force")
}

func TestUpdate_CallbackErrorAborts(t *testing.T) {
	store, path := storeAt(t)

	err := store.Update(func(c *AIConfig) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSnapshot_DeepCopy(t *testing.T) {
	store, _ := storeAt(t)

	first, err := store.Snapshot()
	require.NoError(t, err)
	name := first.Weights.Names()[0]
	first.Weights[name] = 99

	second, err := store.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, 99.0, second.Weights[name])
}

func TestWeightsSnapshot_ServesScoring(t *testing.T) {
	store, _ := storeAt(t)

	w, online := store.WeightsSnapshot()
	assert.NoError(t, w.Validate())
	assert.InDelta(t, 0.94, online.Decay, 1e-12)
}

func TestLoad_CorruptFileErrors(t *testing.T) {
	store, path := storeAt(t)
	require.NoError(t, os.WriteFile(path, []byte("weights: [not, a, map]"), 0o644))

	_, err := store.Snapshot()
	assert.Error(t, err)
}

func TestSymbolFilters(t *testing.T) {
	open := SymbolFilters{}
	assert.True(t, open.Allowed("BTC-USD"))

	denied := SymbolFilters{Deny: []string{"DOGE-USD"}}
	assert.False(t, denied.Allowed("DOGE-USD"))
	assert.True(t, denied.Allowed("BTC-USD"))

	allowOnly := SymbolFilters{Allow: []string{"BTC-USD"}, Deny: []string{"BTC-USD"}}
	assert.False(t, allowOnly.Allowed("BTC-USD"), "deny wins over allow")
	assert.False(t, allowOnly.Allowed("ETH-USD"))
}

func TestValidate_SessionBounds(t *testing.T) {
	cfg := DefaultAIConfig()
	cfg.Session.MaxOpenPositions = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
