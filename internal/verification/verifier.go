// Package verification checks deck fragments before they may reach a
// simulator. Syntactic violations mean the generator produced something the
// grammar does not allow and roll the turn back; plausibility violations
// mean the value is well formed but physically doubtful and ask the user.
package verification

import (
	"fmt"
	"strings"
	"time"

	"deckpilot/internal/config"
	"deckpilot/internal/deck"
	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// StageName is the failed-stage label used in rollbacks.
const StageName = "deck_validation"

// ViolationKind classifies one failed check.
type ViolationKind string

const (
	// syntactic
	UnknownKeyword  ViolationKind = "unknown_keyword"  // keyword outside the catalog
	SectionOrder    ViolationKind = "section_order"    // record precedes an earlier section
	Arity           ViolationKind = "arity"            // too few or too many items
	ItemType        ViolationKind = "item_type"        // item kind does not match the field
	MissingRequired ViolationKind = "missing_required" // required field defaulted
	EnumValue       ViolationKind = "enum_value"       // value outside the field's enumeration

	// plausibility
	NonPositive  ViolationKind = "non_positive"  // rate or pressure <= 0
	AboveCeiling ViolationKind = "above_ceiling" // rate or pressure above its ceiling
	OutOfWindow  ViolationKind = "out_of_window" // date outside the schedule window
)

// Syntactic reports whether the kind indicates a malformed fragment.
func (k ViolationKind) Syntactic() bool {
	switch k {
	case NonPositive, AboveCeiling, OutOfWindow:
		return false
	default:
		return true
	}
}

// Violation is one failed check on one record.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Keyword string        `json:"keyword"`
	Row     int           `json:"row"`
	Field   string        `json:"field,omitempty"`
	Detail  string        `json:"detail"`
}

func (v Violation) String() string {
	if v.Field != "" {
		return fmt.Sprintf("%s.%s: %s", v.Keyword, v.Field, v.Detail)
	}
	return fmt.Sprintf("%s: %s", v.Keyword, v.Detail)
}

// Limits are the plausibility bounds, in the deck's canonical units.
type Limits struct {
	MaxRate     float64
	MaxGasRate  float64
	MaxPressure float64
	MinYear     int
	MaxYear     int
}

// LimitsFromConfig reads the grammar ceilings.
func LimitsFromConfig(g config.GrammarConfig) Limits {
	return Limits{
		MaxRate:     g.MaxRate,
		MaxGasRate:  g.MaxGasRate,
		MaxPressure: g.MaxPressure,
		MinYear:     g.MinScheduleYear,
		MaxYear:     g.MaxScheduleYear,
	}
}

// DefaultLimits returns the bounds of the default configuration.
func DefaultLimits() Limits {
	return LimitsFromConfig(config.DefaultConfig().Grammar)
}

// Report holds every violation found in a fragment.
type Report struct {
	Syntax       []Violation `json:"syntax,omitempty"`
	Plausibility []Violation `json:"plausibility,omitempty"`
}

// OK reports whether the fragment passed both layers.
func (r Report) OK() bool { return len(r.Syntax) == 0 && len(r.Plausibility) == 0 }

func (r *Report) add(v Violation) {
	if v.Kind.Syntactic() {
		r.Syntax = append(r.Syntax, v)
	} else {
		r.Plausibility = append(r.Plausibility, v)
	}
}

// DeckValidator checks fragments against the grammar and plausibility limits.
type DeckValidator struct {
	Limits Limits
}

// NewDeckValidator creates a validator.
func NewDeckValidator(limits Limits) *DeckValidator {
	return &DeckValidator{Limits: limits}
}

// Validate returns the single verdict for a fragment: Rollback on any
// syntactic violation, Clarify on plausibility violations, else Proceed.
func (v *DeckValidator) Validate(f deck.Fragment) types.Verdict {
	log := logging.Get(logging.CategoryVerification)
	report := v.Check(f)
	switch {
	case len(report.Syntax) > 0:
		log.Warnf("fragment %q has %d syntax violations: %s", f.Header(), len(report.Syntax), report.Syntax[0])
		return types.Rollback(StageName, "generated fragment is malformed: "+joinViolations(report.Syntax))
	case len(report.Plausibility) > 0:
		log.Infof("fragment %q has %d implausible values", f.Header(), len(report.Plausibility))
		items := make([]string, len(report.Plausibility))
		for i, p := range report.Plausibility {
			items[i] = p.String()
		}
		return types.Clarify("value outside plausible range", items...)
	default:
		log.Debugf("fragment %q passed validation", f.Header())
		return types.Proceed()
	}
}

// Check runs every check and collects all violations.
func (v *DeckValidator) Check(f deck.Fragment) Report {
	var report Report
	last := deck.SectionRunspec
	rows := make(map[string]int)
	for _, rec := range f.Records() {
		row := rows[rec.Keyword]
		rows[rec.Keyword]++
		def, ok := deck.Lookup(rec.Keyword)
		if !ok {
			report.add(Violation{Kind: UnknownKeyword, Keyword: rec.Keyword, Row: row, Detail: "not in the grammar"})
			continue
		}
		if def.Section < last {
			report.add(Violation{Kind: SectionOrder, Keyword: rec.Keyword, Row: row,
				Detail: fmt.Sprintf("%s record after %s records", def.Section, last)})
		} else {
			last = def.Section
		}
		checkSyntax(&report, def, rec, row)
		v.checkPlausibility(&report, def, rec, row)
	}
	return report
}

func checkSyntax(report *Report, def deck.KeywordDef, rec deck.Record, row int) {
	viol := func(kind ViolationKind, field, format string, args ...interface{}) {
		report.add(Violation{Kind: kind, Keyword: def.Name, Row: row, Field: field, Detail: fmt.Sprintf(format, args...)})
	}

	switch def.Layout {
	case deck.LayoutFlag:
		if len(rec.Items) > 0 {
			viol(Arity, "", "flag keyword carries %d items", len(rec.Items))
		}
		return
	case deck.LayoutList:
		if len(rec.Items) == 0 {
			viol(Arity, "", "list is empty")
		}
		for _, it := range rec.Items {
			if it.Kind != deck.ItemString {
				viol(ItemType, "", "list item %s is not a name", it.Render())
			}
		}
		return
	}

	if n := len(rec.Items); n < def.RequiredCount() || n > len(def.Fields) {
		viol(Arity, "", "%d items, want %d to %d", n, def.RequiredCount(), len(def.Fields))
	}
	for i, it := range rec.Items {
		if i >= len(def.Fields) {
			break
		}
		field := def.Fields[i]
		if it.IsDefault() {
			if field.Required {
				viol(MissingRequired, field.Name, "required field is defaulted")
			}
			continue
		}
		if !kindMatches(field.Kind, it.Kind) {
			viol(ItemType, field.Name, "%s is not a %s", it.Render(), field.Kind)
			continue
		}
		if len(field.Enum) > 0 && !contains(field.Enum, it.Str) {
			viol(EnumValue, field.Name, "%q is not one of %s", it.Str, strings.Join(field.Enum, ", "))
		}
	}
}

func kindMatches(field deck.FieldKind, item deck.ItemKind) bool {
	switch field {
	case deck.FieldString:
		return item == deck.ItemString
	case deck.FieldInt:
		return item == deck.ItemInt
	case deck.FieldFloat:
		return item == deck.ItemFloat || item == deck.ItemInt
	}
	return false
}

func (v *DeckValidator) checkPlausibility(report *Report, def deck.KeywordDef, rec deck.Record, row int) {
	viol := func(kind ViolationKind, field, format string, args ...interface{}) {
		report.add(Violation{Kind: kind, Keyword: def.Name, Row: row, Field: field, Detail: fmt.Sprintf(format, args...)})
	}

	for i, it := range rec.Items {
		if i >= len(def.Fields) {
			break
		}
		field := def.Fields[i]
		value, ok := it.Number()
		if !ok {
			continue
		}
		var ceiling float64
		switch field.Quantity {
		case deck.QuantityLiquidRate:
			ceiling = v.Limits.MaxRate
		case deck.QuantityGasRate:
			ceiling = v.Limits.MaxGasRate
		case deck.QuantityInjRate:
			ceiling = v.Limits.MaxRate
			if rec.Item("TYPE").Str == "GAS" {
				ceiling = v.Limits.MaxGasRate
			}
		case deck.QuantityPressure:
			ceiling = v.Limits.MaxPressure
		case deck.QuantityYear:
			if int(value) < v.Limits.MinYear || int(value) > v.Limits.MaxYear {
				viol(OutOfWindow, field.Name, "year %s outside %d-%d", it.Render(), v.Limits.MinYear, v.Limits.MaxYear)
			}
			continue
		default:
			continue
		}
		if value <= 0 {
			viol(NonPositive, field.Name, "%s must be positive", it.Render())
		} else if value > ceiling {
			viol(AboveCeiling, field.Name, "%s exceeds ceiling %s", it.Render(), deck.FormatFloat(ceiling))
		}
	}

	if def.Name == "DATES" || def.Name == "START" {
		day, dayOK := rec.Item("DAY").Number()
		year, yearOK := rec.Item("YEAR").Number()
		month := deck.MonthNumber(rec.Item("MONTH").Str)
		if dayOK && yearOK && month > 0 {
			t := time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
			if t.Day() != int(day) {
				viol(OutOfWindow, "DAY", "%s %s %s is not a calendar date", rec.Item("DAY").Render(), rec.Item("MONTH").Str, rec.Item("YEAR").Render())
			}
		}
	}
}

func joinViolations(vs []Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
