package simulator

import (
	"fmt"
	"sort"
	"sync"

	"deckpilot/internal/config"
)

// Registry holds backends by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// NewDefaultRegistry registers the mock and both process backends. The
// configured binary and arguments apply to the selected backend only.
func NewDefaultRegistry(cfg config.SimulatorConfig) *Registry {
	opm := NewOPMFlow("", nil, cfg.WorkDir)
	ecl := NewEclipse("", nil, cfg.WorkDir)
	switch cfg.Backend {
	case "opm":
		opm = NewOPMFlow(cfg.Binary, cfg.Args, cfg.WorkDir)
	case "eclipse":
		ecl = NewEclipse(cfg.Binary, cfg.Args, cfg.WorkDir)
	}
	opm.KeepRuns, ecl.KeepRuns = cfg.KeepRuns, cfg.KeepRuns
	return NewRegistry(NewMock(), opm, ecl)
}

// FromConfig returns the configured backend.
func FromConfig(cfg config.SimulatorConfig) (Adapter, error) {
	return NewDefaultRegistry(cfg).Get(cfg.Backend)
}

// Register adds a backend; names are unique.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("simulator backend %q already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown simulator backend %q", name)
	}
	return a, nil
}

// Names lists registered backends in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
