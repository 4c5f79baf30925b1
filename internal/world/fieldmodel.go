// Package world holds the field model: the read-mostly registry of wells,
// groups and grid bounds that extracted identifiers are checked against.
//
// The model is published as immutable, versioned snapshots. A pipeline run
// takes one snapshot and keeps it for its whole duration; refreshing builds a
// new snapshot and swaps it in atomically, so readers never observe a
// partially-updated model.
package world

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"deckpilot/internal/types"
)

// FieldModel is the read interface consulted by asset validation.
type FieldModel interface {
	// Lookup scores every identifier of the given kind against name, best first.
	Lookup(kind types.EntityType, name string) []types.Candidate
	// All lists every identifier of the given kind, sorted.
	All(kind types.EntityType) []string
	Version() uint64
	Bounds() GridBounds
}

// =============================================================================
// FIELD DATA
// =============================================================================

// Well is one well in the field model.
type Well struct {
	Name     string  `yaml:"name" json:"name"`
	Group    string  `yaml:"group" json:"group"`
	I        int     `yaml:"i" json:"i"`
	J        int     `yaml:"j" json:"j"`
	RefDepth float64 `yaml:"ref_depth,omitempty" json:"ref_depth,omitempty"`
	Phase    string  `yaml:"phase" json:"phase"`   // OIL, GAS, WAT
	Role     string  `yaml:"role" json:"role"`     // producer, injector
	Status   string  `yaml:"status" json:"status"` // OPEN, SHUT
}

// IsInjector reports whether the well is an injector.
func (w Well) IsInjector() bool { return strings.EqualFold(w.Role, "injector") }

// Group is one group in the group tree. An empty Parent means FIELD.
type Group struct {
	Name   string `yaml:"name" json:"name"`
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`
}

// GridBounds are the grid dimensions. Cell indices are 1-based.
type GridBounds struct {
	NX int `yaml:"nx" json:"nx"`
	NY int `yaml:"ny" json:"ny"`
	NZ int `yaml:"nz" json:"nz"`
}

// Contains reports whether an (i, j) or (i, j, k) location lies inside the grid.
func (g GridBounds) Contains(loc []int) bool {
	if len(loc) < 2 || len(loc) > 3 {
		return false
	}
	dims := []int{g.NX, g.NY, g.NZ}
	for i, v := range loc {
		if v < 1 || v > dims[i] {
			return false
		}
	}
	return true
}

func (g GridBounds) String() string { return fmt.Sprintf("%dx%dx%d", g.NX, g.NY, g.NZ) }

// FieldData is the serialized form of a field model.
type FieldData struct {
	Field  string     `yaml:"field" json:"field"`
	Grid   GridBounds `yaml:"grid" json:"grid"`
	Groups []Group    `yaml:"groups" json:"groups"`
	Wells  []Well     `yaml:"wells" json:"wells"`
}

// Validate checks the internal consistency of field data.
func (d FieldData) Validate() error {
	if d.Grid.NX <= 0 || d.Grid.NY <= 0 || d.Grid.NZ <= 0 {
		return fmt.Errorf("grid bounds must be positive, got %s", d.Grid)
	}
	groups := make(map[string]bool, len(d.Groups))
	for _, g := range d.Groups {
		key := strings.ToUpper(g.Name)
		if key == "" {
			return fmt.Errorf("group with empty name")
		}
		if groups[key] {
			return fmt.Errorf("duplicate group %s", g.Name)
		}
		groups[key] = true
	}
	for _, g := range d.Groups {
		if g.Parent != "" && !strings.EqualFold(g.Parent, "FIELD") && !groups[strings.ToUpper(g.Parent)] {
			return fmt.Errorf("group %s has unknown parent %s", g.Name, g.Parent)
		}
	}
	wells := make(map[string]bool, len(d.Wells))
	for _, w := range d.Wells {
		key := strings.ToUpper(w.Name)
		if key == "" {
			return fmt.Errorf("well with empty name")
		}
		if wells[key] {
			return fmt.Errorf("duplicate well %s", w.Name)
		}
		wells[key] = true
		if w.Group != "" && !groups[strings.ToUpper(w.Group)] {
			return fmt.Errorf("well %s belongs to unknown group %s", w.Name, w.Group)
		}
		if !d.Grid.Contains([]int{w.I, w.J}) {
			return fmt.Errorf("well %s at (%d,%d) outside grid %s", w.Name, w.I, w.J, d.Grid)
		}
	}
	return nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable, versioned view of the field model.
type Snapshot struct {
	version    uint64
	field      string
	grid       GridBounds
	wells      map[string]Well
	groups     map[string]Group
	wellNames  []string
	groupNames []string
}

// NewSnapshot builds a snapshot from validated field data.
func NewSnapshot(data FieldData, version uint64) (*Snapshot, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	s := &Snapshot{
		version: version,
		field:   data.Field,
		grid:    data.Grid,
		wells:   make(map[string]Well, len(data.Wells)),
		groups:  make(map[string]Group, len(data.Groups)),
	}
	for _, w := range data.Wells {
		s.wells[strings.ToUpper(w.Name)] = w
		s.wellNames = append(s.wellNames, w.Name)
	}
	for _, g := range data.Groups {
		s.groups[strings.ToUpper(g.Name)] = g
		s.groupNames = append(s.groupNames, g.Name)
	}
	sort.Strings(s.wellNames)
	sort.Strings(s.groupNames)
	return s, nil
}

func (s *Snapshot) Version() uint64    { return s.version }
func (s *Snapshot) Field() string      { return s.field }
func (s *Snapshot) Bounds() GridBounds { return s.grid }

// Well returns a well by case-insensitive name.
func (s *Snapshot) Well(name string) (Well, bool) {
	w, ok := s.wells[strings.ToUpper(strings.TrimSpace(name))]
	return w, ok
}

// Group returns a group by case-insensitive name.
func (s *Snapshot) Group(name string) (Group, bool) {
	g, ok := s.groups[strings.ToUpper(strings.TrimSpace(name))]
	return g, ok
}

// WellsInGroup lists the wells directly under a group, sorted.
func (s *Snapshot) WellsInGroup(group string) []string {
	var out []string
	for _, name := range s.wellNames {
		if strings.EqualFold(s.wells[strings.ToUpper(name)].Group, group) {
			out = append(out, name)
		}
	}
	return out
}

// All implements FieldModel.
func (s *Snapshot) All(kind types.EntityType) []string {
	switch kind {
	case types.EntityWellName:
		return append([]string(nil), s.wellNames...)
	case types.EntityGroupName:
		return append([]string(nil), s.groupNames...)
	default:
		return nil
	}
}

// Lookup implements FieldModel. Candidates with zero similarity are omitted.
func (s *Snapshot) Lookup(kind types.EntityType, name string) []types.Candidate {
	var out []types.Candidate
	for _, id := range s.All(kind) {
		score := Similarity(name, id)
		if score <= 0 {
			continue
		}
		out = append(out, types.Candidate{
			Identifier: id,
			Kind:       kind,
			Score:      score,
			Attributes: s.attributes(kind, id),
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Identifier < out[b].Identifier
	})
	return out
}

func (s *Snapshot) attributes(kind types.EntityType, id string) map[string]string {
	switch kind {
	case types.EntityWellName:
		w := s.wells[strings.ToUpper(id)]
		return map[string]string{
			"group":  w.Group,
			"role":   w.Role,
			"phase":  w.Phase,
			"status": w.Status,
			"i":      strconv.Itoa(w.I),
			"j":      strconv.Itoa(w.J),
		}
	case types.EntityGroupName:
		g := s.groups[strings.ToUpper(id)]
		parent := g.Parent
		if parent == "" {
			parent = "FIELD"
		}
		return map[string]string{"parent": parent}
	}
	return nil
}

// Data returns a serializable copy of the snapshot contents.
func (s *Snapshot) Data() FieldData {
	d := FieldData{Field: s.field, Grid: s.grid}
	for _, name := range s.groupNames {
		d.Groups = append(d.Groups, s.groups[strings.ToUpper(name)])
	}
	for _, name := range s.wellNames {
		d.Wells = append(d.Wells, s.wells[strings.ToUpper(name)])
	}
	return d
}
