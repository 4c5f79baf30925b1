package deck

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// ITEMS
// =============================================================================

// ItemKind tags the value held by an Item.
type ItemKind int

const (
	ItemString ItemKind = iota
	ItemInt
	ItemFloat
	ItemDefault // rendered as 1*, compressed to N* in runs
)

// Item is one positional value of a record row.
type Item struct {
	Kind  ItemKind
	Str   string
	Int   int64
	Float float64
}

func Str(s string) Item        { return Item{Kind: ItemString, Str: s} }
func Int(n int64) Item         { return Item{Kind: ItemInt, Int: n} }
func Float(f float64) Item     { return Item{Kind: ItemFloat, Float: Round(f)} }
func Default() Item            { return Item{Kind: ItemDefault} }
func (i Item) IsDefault() bool { return i.Kind == ItemDefault }

// Number returns the numeric value of an int or float item.
func (i Item) Number() (float64, bool) {
	switch i.Kind {
	case ItemInt:
		return float64(i.Int), true
	case ItemFloat:
		return i.Float, true
	default:
		return 0, false
	}
}

// Render returns the grammar spelling of the item.
func (i Item) Render() string {
	switch i.Kind {
	case ItemString:
		return "'" + i.Str + "'"
	case ItemInt:
		return strconv.FormatInt(i.Int, 10)
	case ItemFloat:
		return FormatFloat(i.Float)
	default:
		return "1*"
	}
}

func (i Item) String() string {
	if i.Kind == ItemString {
		return i.Str
	}
	return i.Render()
}

// Round rounds to the four decimals the writer emits.
func Round(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}

// FormatFloat renders a float with at most four decimals and no exponent.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(Round(f), 'f', -1, 64)
}

// =============================================================================
// RECORDS
// =============================================================================

// Record is one keyword row. Flag keywords have no items; table keywords
// produce one Record per row and consecutive rows share a block when rendered.
type Record struct {
	Keyword string
	Items   []Item
	Comment string
}

// NewRecord builds a record, upper-casing the keyword.
func NewRecord(keyword string, items ...Item) Record {
	return Record{Keyword: strings.ToUpper(keyword), Items: append([]Item(nil), items...)}
}

// WithComment returns a copy of the record carrying a comment.
func (r Record) WithComment(format string, args ...interface{}) Record {
	r.Items = append([]Item(nil), r.Items...)
	r.Comment = fmt.Sprintf(format, args...)
	return r
}

// Item returns the item at a named field position, or a default item.
func (r Record) Item(field string) Item {
	def, ok := Lookup(r.Keyword)
	if !ok {
		return Default()
	}
	idx := def.FieldIndex(field)
	if idx < 0 || idx >= len(r.Items) {
		return Default()
	}
	return r.Items[idx]
}

// Section returns the section of the record's keyword.
func (r Record) Section() (Section, bool) {
	def, ok := Lookup(r.Keyword)
	return def.Section, ok
}

func (r Record) clone() Record {
	r.Items = append([]Item(nil), r.Items...)
	return r
}

// =============================================================================
// FRAGMENT
// =============================================================================

// Fragment is an ordered, immutable sequence of records.
type Fragment struct {
	header  string
	records []Record
}

// NewFragment copies records into a new fragment.
func NewFragment(header string, records []Record) Fragment {
	f := Fragment{header: header, records: make([]Record, len(records))}
	for i, r := range records {
		f.records[i] = r.clone()
	}
	return f
}

// Header returns the fragment's header comment.
func (f Fragment) Header() string { return f.header }

// Len returns the number of records.
func (f Fragment) Len() int { return len(f.records) }

// IsEmpty reports whether the fragment carries no records.
func (f Fragment) IsEmpty() bool { return len(f.records) == 0 }

// Records returns a copy of the records.
func (f Fragment) Records() []Record {
	out := make([]Record, len(f.records))
	for i, r := range f.records {
		out[i] = r.clone()
	}
	return out
}

// Keywords returns the distinct keywords in order of first appearance.
func (f Fragment) Keywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range f.records {
		if !seen[r.Keyword] {
			seen[r.Keyword] = true
			out = append(out, r.Keyword)
		}
	}
	return out
}

// Sections returns the distinct sections touched, in deck order.
func (f Fragment) Sections() []Section {
	seen := make(map[Section]bool)
	for _, r := range f.records {
		if s, ok := r.Section(); ok {
			seen[s] = true
		}
	}
	var out []Section
	for _, s := range Sections() {
		if seen[s] {
			out = append(out, s)
		}
	}
	return out
}

// sortBySection stably orders records by section.
func sortBySection(records []Record) {
	sort.SliceStable(records, func(a, b int) bool {
		sa, _ := records[a].Section()
		sb, _ := records[b].Section()
		return sa < sb
	})
}
