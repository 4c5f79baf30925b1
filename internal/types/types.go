// Package types provides shared type definitions used across deckpilot packages.
// This package exists to break import cycles between perception, world, deck and session.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// UTTERANCE
// =============================================================================

// Utterance is one piece of engineering text as received from a front end.
// It is never modified after construction.
type Utterance struct {
	text       string
	locale     string
	receivedAt time.Time
}

// NewUtterance captures text with an optional locale tag.
func NewUtterance(text, locale string) Utterance {
	return Utterance{text: text, locale: locale, receivedAt: time.Now().UTC()}
}

// NewUtteranceAt is NewUtterance with an explicit arrival time (replay, tests).
func NewUtteranceAt(text, locale string, at time.Time) Utterance {
	return Utterance{text: text, locale: locale, receivedAt: at.UTC()}
}

func (u Utterance) Text() string          { return u.text }
func (u Utterance) Locale() string        { return u.locale }
func (u Utterance) ReceivedAt() time.Time { return u.receivedAt }

// IsBlank reports whether the utterance carries no usable text.
func (u Utterance) IsBlank() bool { return strings.TrimSpace(u.text) == "" }

// Span is a half-open byte range [Start, End) into the utterance text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span width in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool { return s.Start <= o.Start && o.End <= s.End }

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// =============================================================================
// INTENT
// =============================================================================

// IntentKind is one tag of the closed intent taxonomy.
type IntentKind string

const (
	IntentSetRate            IntentKind = "SET_RATE"
	IntentSetBHP             IntentKind = "SET_BHP"
	IntentShutWell           IntentKind = "SHUT_WELL"
	IntentOpenWell           IntentKind = "OPEN_WELL"
	IntentAddWell            IntentKind = "ADD_WELL"
	IntentAddGroup           IntentKind = "ADD_GROUP"
	IntentSetGroupRate       IntentKind = "SET_GROUP_RATE"
	IntentSetFieldLimit      IntentKind = "SET_FIELD_LIMIT"
	IntentGetGroupProduction IntentKind = "GET_GROUP_PRODUCTION"
	IntentRunSimulation      IntentKind = "RUN_SIMULATION"
	IntentStop               IntentKind = "STOP"
	IntentUnknown            IntentKind = "UNKNOWN_INTENT"
)

// Intent is the single classification produced for an utterance.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Confidence float64    `json:"confidence"`
	Span       Span       `json:"span"`
}

// IsUnknown reports whether the recognizer declined to classify.
func (i Intent) IsUnknown() bool { return i.Kind == IntentUnknown || i.Kind == "" }

// =============================================================================
// ENTITIES
// =============================================================================

// EntityType is the semantic role of an extracted value.
type EntityType string

const (
	EntityWellName      EntityType = "well_name"
	EntityGroupName     EntityType = "group_name"
	EntityRateValue     EntityType = "rate_value"
	EntityRateUnit      EntityType = "rate_unit"
	EntityPressureValue EntityType = "pressure_value"
	EntityPressureUnit  EntityType = "pressure_unit"
	EntityPhase         EntityType = "phase"
	EntityDate          EntityType = "date"
	EntityGridLocation  EntityType = "grid_location"
)

// IsIdentifier reports whether values of this type name an asset in the field model.
func (t EntityType) IsIdentifier() bool {
	return t == EntityWellName || t == EntityGroupName
}

// ExtractedEntity is one typed value pulled out of an utterance.
type ExtractedEntity struct {
	Name       EntityType `json:"name"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Span       Span       `json:"span"`
}

func (e ExtractedEntity) String() string {
	return fmt.Sprintf("%s=%s(%.2f)%s", e.Name, e.Value, e.Confidence, e.Span)
}

// EntitiesOf returns the entities of one type in their original order.
func EntitiesOf(entities []ExtractedEntity, t EntityType) []ExtractedEntity {
	var out []ExtractedEntity
	for _, e := range entities {
		if e.Name == t {
			out = append(out, e)
		}
	}
	return out
}

// FirstOf returns the first entity of the given type.
func FirstOf(entities []ExtractedEntity, t EntityType) (ExtractedEntity, bool) {
	for _, e := range entities {
		if e.Name == t {
			return e, true
		}
	}
	return ExtractedEntity{}, false
}
