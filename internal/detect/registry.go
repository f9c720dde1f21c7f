package detect

import (
	"fmt"
	"sort"
)

// Registry maps detector names to instances for polymorphic fan-out
type Registry struct {
	detectors map[string]Detector
}

// NewRegistry creates an empty detector registry
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]Detector)}
}

// Register adds a detector; a duplicate name is a programming error
func (r *Registry) Register(d Detector) error {
	name := d.Name()
	if _, exists := r.detectors[name]; exists {
		return fmt.Errorf("detector %q already registered", name)
	}
	r.detectors[name] = d
	return nil
}

// Get returns the named detector
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.detectors[name]
	return d, ok
}

// Names returns registered detector names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.detectors))
	for name := range r.detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns detectors in sorted-name order for deterministic iteration
func (r *Registry) All() []Detector {
	out := make([]Detector, 0, len(r.detectors))
	for _, name := range r.Names() {
		out = append(out, r.detectors[name])
	}
	return out
}

// Len returns the number of registered detectors
func (r *Registry) Len() int {
	return len(r.detectors)
}

// DefaultRegistry builds the full production detector battery
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []Detector{
		NewRSIMACD(),
		NewSMC(DefaultSMCConfig()),
		NewHarmonic(DefaultHarmonicConfig()),
		NewElliott(),
		NewFibonacci(),
		NewPriceAction(),
		NewSAR(),
		NewSentiment(),
		NewNews(),
		NewWhales(),
		NewMLEnsemble(DefaultMLConfig()),
	} {
		// Names are compile-time constants here, duplicates cannot occur
		_ = r.Register(d)
	}
	return r
}
