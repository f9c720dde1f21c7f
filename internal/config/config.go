// Package config defines the tunable scoring configuration and its
// YAML-backed store. Everything the calibrators adjust lives here, so a
// calibration run persists by writing one file.
package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/quantfuse/quantfuse/internal/gates"
	"github.com/quantfuse/quantfuse/internal/weights"
)

// ErrInvalidConfig is returned when a loaded or updated configuration
// fails validation. Validation is eager: a bad file never reaches the
// scoring engine.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// SessionConfig bounds concurrent trading activity
type SessionConfig struct {
	MaxOpenPositions int `yaml:"max_open_positions" validate:"gte=1"` // (default: 3)
	CooldownBars     int `yaml:"cooldown_bars" validate:"gte=0"`      // bars to wait after a closed trade (default: 4)
}

// SymbolFilters restricts which symbols are scanned and traded. An empty
// allow list admits everything not denied.
type SymbolFilters struct {
	Allow []string `yaml:"allow,omitempty"`
	Deny  []string `yaml:"deny,omitempty"`
}

// Allowed reports whether symbol passes the filters
func (f SymbolFilters) Allowed(symbol string) bool {
	for _, s := range f.Deny {
		if s == symbol {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, s := range f.Allow {
		if s == symbol {
			return true
		}
	}
	return false
}

// AIConfig is the complete tunable state of the scoring layer
type AIConfig struct {
	Weights           weights.Weights           `yaml:"weights" validate:"required"`
	Gates             gates.Thresholds          `yaml:"gates"`
	RegimeMultipliers weights.RegimeMultipliers `yaml:"regime_multipliers"`
	Online            weights.OnlineAdaptation  `yaml:"online_adaptation"`
	Session           SessionConfig             `yaml:"session"`
	Symbols           SymbolFilters             `yaml:"symbols"`
}

// DefaultAIConfig returns the production defaults
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Weights:           weights.DefaultWeights(),
		Gates:             gates.DefaultThresholds(),
		RegimeMultipliers: weights.DefaultRegimeMultipliers(),
		Online:            weights.DefaultOnlineAdaptation(),
		Session: SessionConfig{
			MaxOpenPositions: 3,
			CooldownBars:     4,
		},
	}
}

// Validate checks structural constraints and the weight-sum invariant
func (c AIConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Clone returns a deep copy, so snapshots never alias store state
func (c AIConfig) Clone() AIConfig {
	out := c
	out.Weights = c.Weights.Clone()
	out.Online.PerSignal = cloneFloatMap(c.Online.PerSignal)
	out.RegimeMultipliers = make(weights.RegimeMultipliers, len(c.RegimeMultipliers))
	for flag, table := range c.RegimeMultipliers {
		out.RegimeMultipliers[flag] = cloneFloatMap(table)
	}
	out.Symbols.Allow = append([]string(nil), c.Symbols.Allow...)
	out.Symbols.Deny = append([]string(nil), c.Symbols.Deny...)
	return out
}

func cloneFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
