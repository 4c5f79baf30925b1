// Package deck models the target simulator grammar: sections, keyword
// definitions, typed records and immutable fragments, together with the
// writer, reader and unit conversions used to produce them.
package deck

import (
	"sort"
	"strings"
)

// =============================================================================
// SECTIONS
// =============================================================================

// Section is one deck section. The numeric order is the required deck order.
type Section int

const (
	SectionRunspec Section = iota
	SectionGrid
	SectionProps
	SectionSolution
	SectionSummary
	SectionSchedule
)

var sectionNames = [...]string{"RUNSPEC", "GRID", "PROPS", "SOLUTION", "SUMMARY", "SCHEDULE"}

func (s Section) String() string {
	if s < 0 || int(s) >= len(sectionNames) {
		return "UNKNOWN"
	}
	return sectionNames[s]
}

// Sections lists every section in deck order.
func Sections() []Section {
	return []Section{SectionRunspec, SectionGrid, SectionProps, SectionSolution, SectionSummary, SectionSchedule}
}

// ParseSection maps a section header to its Section.
func ParseSection(name string) (Section, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range sectionNames {
		if n == name {
			return Section(i), true
		}
	}
	return 0, false
}

// =============================================================================
// KEYWORD DEFINITIONS
// =============================================================================

// Layout describes how a keyword carries data.
type Layout int

const (
	// LayoutFlag has no data and no terminator.
	LayoutFlag Layout = iota
	// LayoutRecord is a single row terminated by '/'.
	LayoutRecord
	// LayoutTable is rows terminated by '/', closed by an empty '/'.
	LayoutTable
	// LayoutList is a single row of names terminated by '/'.
	LayoutList
)

// FieldKind is the type of a positional field.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
	FieldFloat
)

func (k FieldKind) String() string {
	switch k {
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	default:
		return "string"
	}
}

// Quantity tags fields that carry a physical value subject to plausibility bounds.
type Quantity string

const (
	QuantityNone       Quantity = ""
	QuantityLiquidRate Quantity = "liquid_rate"
	QuantityGasRate    Quantity = "gas_rate"
	QuantityInjRate    Quantity = "injection_rate" // liquid or gas by the injector type field
	QuantityPressure   Quantity = "pressure"
	QuantityYear       Quantity = "year"
	QuantityDay        Quantity = "day"
)

// FieldDef is one positional field of a keyword row.
type FieldDef struct {
	Name     string
	Kind     FieldKind
	Required bool
	Enum     []string
	Quantity Quantity
}

// KeywordDef declares one keyword of the grammar.
type KeywordDef struct {
	Name    string
	Section Section
	Layout  Layout
	Fields  []FieldDef
	Doc     string
}

// FieldIndex returns the position of a named field, or -1.
func (k KeywordDef) FieldIndex(name string) int {
	for i, f := range k.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// RequiredCount returns the number of leading required fields.
func (k KeywordDef) RequiredCount() int {
	n := 0
	for i, f := range k.Fields {
		if f.Required {
			n = i + 1
		}
	}
	return n
}

var (
	months         = []string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}
	wellStatus     = []string{"OPEN", "SHUT", "STOP", "AUTO"}
	prodControls   = []string{"ORAT", "WRAT", "GRAT", "LRAT", "RESV", "BHP"}
	grpControls    = []string{"NONE", "ORAT", "WRAT", "GRAT", "LRAT", "RESV"}
	injTypes       = []string{"WATER", "GAS", "OIL"}
	injControls    = []string{"RATE", "RESV", "BHP"}
	grpInjControls = []string{"NONE", "RATE", "RESV"}
	wellPhases     = []string{"OIL", "WATER", "GAS", "LIQ"}
)

func str(name string, required bool, enum ...string) FieldDef {
	return FieldDef{Name: name, Kind: FieldString, Required: required, Enum: enum}
}

func num(name string, q Quantity) FieldDef {
	return FieldDef{Name: name, Kind: FieldFloat, Quantity: q}
}

func integer(name string, required bool, q Quantity) FieldDef {
	return FieldDef{Name: name, Kind: FieldInt, Required: required, Quantity: q}
}

var catalog = map[string]KeywordDef{}

func register(defs ...KeywordDef) {
	for _, d := range defs {
		catalog[d.Name] = d
	}
}

func init() {
	register(
		// RUNSPEC
		KeywordDef{Name: "METRIC", Section: SectionRunspec, Layout: LayoutFlag, Doc: "metric unit system"},
		KeywordDef{Name: "FIELD", Section: SectionRunspec, Layout: LayoutFlag, Doc: "field unit system"},
		KeywordDef{Name: "OIL", Section: SectionRunspec, Layout: LayoutFlag, Doc: "oil phase present"},
		KeywordDef{Name: "WATER", Section: SectionRunspec, Layout: LayoutFlag, Doc: "water phase present"},
		KeywordDef{Name: "GAS", Section: SectionRunspec, Layout: LayoutFlag, Doc: "gas phase present"},
		KeywordDef{Name: "DIMENS", Section: SectionRunspec, Layout: LayoutRecord, Doc: "grid dimensions",
			Fields: []FieldDef{integer("NX", true, QuantityNone), integer("NY", true, QuantityNone), integer("NZ", true, QuantityNone)}},
		KeywordDef{Name: "START", Section: SectionRunspec, Layout: LayoutRecord, Doc: "simulation start date",
			Fields: []FieldDef{integer("DAY", true, QuantityDay), str("MONTH", true, months...), integer("YEAR", true, QuantityYear)}},

		// SUMMARY
		KeywordDef{Name: "FOPR", Section: SectionSummary, Layout: LayoutFlag, Doc: "field oil production rate"},
		KeywordDef{Name: "FGPR", Section: SectionSummary, Layout: LayoutFlag, Doc: "field gas production rate"},
		KeywordDef{Name: "FWPR", Section: SectionSummary, Layout: LayoutFlag, Doc: "field water production rate"},
		KeywordDef{Name: "GOPR", Section: SectionSummary, Layout: LayoutList, Doc: "group oil production rate"},
		KeywordDef{Name: "GGPR", Section: SectionSummary, Layout: LayoutList, Doc: "group gas production rate"},
		KeywordDef{Name: "GWPR", Section: SectionSummary, Layout: LayoutList, Doc: "group water production rate"},
		KeywordDef{Name: "WOPR", Section: SectionSummary, Layout: LayoutList, Doc: "well oil production rate"},
		KeywordDef{Name: "WBHP", Section: SectionSummary, Layout: LayoutList, Doc: "well bottom-hole pressure"},

		// SCHEDULE
		KeywordDef{Name: "WELSPECS", Section: SectionSchedule, Layout: LayoutTable, Doc: "well specification",
			Fields: []FieldDef{
				str("WELL", true), str("GROUP", true),
				integer("I", true, QuantityNone), integer("J", true, QuantityNone),
				num("REFDEPTH", QuantityNone), str("PHASE", true, wellPhases...),
			}},
		KeywordDef{Name: "WCONPROD", Section: SectionSchedule, Layout: LayoutTable, Doc: "producer controls",
			Fields: []FieldDef{
				str("WELL", true), str("STATUS", true, wellStatus...), str("CONTROL", true, prodControls...),
				num("ORAT", QuantityLiquidRate), num("WRAT", QuantityLiquidRate), num("GRAT", QuantityGasRate),
				num("LRAT", QuantityLiquidRate), num("RESV", QuantityLiquidRate), num("BHP", QuantityPressure),
			}},
		KeywordDef{Name: "WCONINJE", Section: SectionSchedule, Layout: LayoutTable, Doc: "injector controls",
			Fields: []FieldDef{
				str("WELL", true), str("TYPE", true, injTypes...), str("STATUS", true, wellStatus...),
				str("CONTROL", true, injControls...), num("RATE", QuantityInjRate), num("RESV", QuantityLiquidRate),
				num("BHP", QuantityPressure),
			}},
		KeywordDef{Name: "GCONPROD", Section: SectionSchedule, Layout: LayoutTable, Doc: "group production controls",
			Fields: []FieldDef{
				str("GROUP", true), str("CONTROL", true, grpControls...),
				num("ORAT", QuantityLiquidRate), num("WRAT", QuantityLiquidRate),
				num("GRAT", QuantityGasRate), num("LRAT", QuantityLiquidRate),
			}},
		KeywordDef{Name: "GCONINJE", Section: SectionSchedule, Layout: LayoutTable, Doc: "group injection controls",
			Fields: []FieldDef{
				str("GROUP", true), str("TYPE", true, injTypes...), str("CONTROL", true, grpInjControls...),
				num("RATE", QuantityInjRate), num("RESV", QuantityLiquidRate),
			}},
		KeywordDef{Name: "GRUPTREE", Section: SectionSchedule, Layout: LayoutTable, Doc: "group hierarchy",
			Fields: []FieldDef{str("CHILD", true), str("PARENT", true)}},
		KeywordDef{Name: "WELOPEN", Section: SectionSchedule, Layout: LayoutTable, Doc: "open or shut wells",
			Fields: []FieldDef{str("WELL", true), str("STATUS", true, wellStatus...)}},
		KeywordDef{Name: "DATES", Section: SectionSchedule, Layout: LayoutTable, Doc: "report dates",
			Fields: []FieldDef{integer("DAY", true, QuantityDay), str("MONTH", true, months...), integer("YEAR", true, QuantityYear)}},
		KeywordDef{Name: "RPTSCHED", Section: SectionSchedule, Layout: LayoutList, Doc: "schedule report mnemonics"},
	)

	// INCLUDE is valid in every section; it is declared against SCHEDULE, where
	// fragments use it.
	register(KeywordDef{Name: "INCLUDE", Section: SectionSchedule, Layout: LayoutRecord, Doc: "include a file",
		Fields: []FieldDef{str("FILE", true)}})
}

// Lookup returns the definition of a keyword.
func Lookup(name string) (KeywordDef, bool) {
	d, ok := catalog[strings.ToUpper(name)]
	return d, ok
}

// Keywords lists every keyword name, sorted.
func Keywords() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MonthName returns the grammar spelling of a month (1-based).
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return months[m-1]
}

// MonthNumber returns the 1-based month for a grammar month name.
func MonthNumber(name string) int {
	for i, m := range months {
		if strings.EqualFold(m, name) {
			return i + 1
		}
	}
	return 0
}
