package world

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"deckpilot/internal/logging"
)

// Registry publishes field-model snapshots. Current is lock-free; Refresh
// serializes writers and swaps in a new snapshot with the next version.
type Registry struct {
	mu      sync.Mutex // serializes Refresh
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry whose first snapshot has version 1.
func NewRegistry(data FieldData) (*Registry, error) {
	snap, err := NewSnapshot(data, 1)
	if err != nil {
		return nil, fmt.Errorf("invalid field model: %w", err)
	}
	r := &Registry{}
	r.current.Store(snap)
	return r, nil
}

// Current returns the snapshot readers should hold for one pipeline run.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Refresh validates data and publishes it as a new snapshot. On error the
// current snapshot stays in place.
func (r *Registry) Refresh(data FieldData) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	snap, err := NewSnapshot(data, prev.Version()+1)
	if err != nil {
		logging.Get(logging.CategoryWorld).Warnf("field model refresh rejected: %v", err)
		return nil, fmt.Errorf("invalid field model: %w", err)
	}
	r.current.Store(snap)

	logging.World("field model refreshed: version %d -> %d (%d wells, %d groups)",
		prev.Version(), snap.Version(), len(snap.wellNames), len(snap.groupNames))
	logging.Audit().Log(logging.AuditEvent{
		EventType: logging.AuditFieldModelRefresh,
		Target:    snap.Field(),
		Success:   true,
		Fields:    map[string]interface{}{"version": snap.Version()},
		Message:   "field model refreshed",
	})
	return snap, nil
}

// =============================================================================
// LOADING
// =============================================================================

// ParseFieldData decodes a YAML field model.
func ParseFieldData(data []byte) (FieldData, error) {
	var fd FieldData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return FieldData{}, fmt.Errorf("failed to parse field model: %w", err)
	}
	return fd, nil
}

// LoadFile reads and decodes a YAML field model file.
func LoadFile(path string) (FieldData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FieldData{}, fmt.Errorf("failed to read field model: %w", err)
	}
	return ParseFieldData(data)
}

// LoadRegistry loads a field model file into a new registry.
func LoadRegistry(path string) (*Registry, error) {
	fd, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(fd)
}

// SaveFile writes field data as YAML.
func SaveFile(path string, data FieldData) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal field model: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}
