package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/quantfuse/quantfuse/internal/weights"
)

// FileStore is a YAML-backed configuration store with atomic updates.
// Reads are served from an in-memory snapshot; writes go through a
// temp-file rename so a crash never leaves a half-written config.
type FileStore struct {
	path string

	mu     sync.RWMutex
	cached *AIConfig
}

// NewFileStore creates a store backed by path. Nothing is read until the
// first Snapshot or Update; a missing file yields the defaults.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Snapshot returns a deep copy of the current configuration, loading the
// file on first use
func (s *FileStore) Snapshot() (AIConfig, error) {
	s.mu.RLock()
	if s.cached != nil {
		cfg := s.cached.Clone()
		s.mu.RUnlock()
		return cfg, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		cfg, err := s.load()
		if err != nil {
			return AIConfig{}, err
		}
		s.cached = &cfg
	}
	return s.cached.Clone(), nil
}

// Update applies fn to a copy of the current configuration, validates the
// result and persists it atomically. On any error the previous
// configuration stays in force.
func (s *FileStore) Update(fn func(*AIConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		cfg, err := s.load()
		if err != nil {
			return err
		}
		s.cached = &cfg
	}

	next := s.cached.Clone()
	if err := fn(&next); err != nil {
		return fmt.Errorf("config update: %w", err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.cached = &next
	return nil
}

// WeightsSnapshot serves the scoring engine's per-call weight reads.
// Errors fall back to defaults: scoring never stalls on a config problem.
func (s *FileStore) WeightsSnapshot() (weights.Weights, weights.OnlineAdaptation) {
	cfg, err := s.Snapshot()
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("config snapshot failed, using defaults")
		return weights.DefaultWeights(), weights.DefaultOnlineAdaptation()
	}
	return cfg.Weights, cfg.Online
}

func (s *FileStore) load() (AIConfig, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		log.Info().Str("path", s.path).Msg("no config file, using defaults")
		return DefaultAIConfig(), nil
	}
	if err != nil {
		return AIConfig{}, fmt.Errorf("read config %s: %w", s.path, err)
	}

	cfg := DefaultAIConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AIConfig{}, fmt.Errorf("parse config %s: %w", s.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return AIConfig{}, fmt.Errorf("config %s: %w", s.path, err)
	}
	return cfg, nil
}

// write persists cfg with a same-directory temp file and rename
func (s *FileStore) write(cfg AIConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace config %s: %w", s.path, err)
	}
	return nil
}
