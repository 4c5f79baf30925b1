package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	def, ok := Lookup("wconprod")
	require.True(t, ok)
	assert.Equal(t, SectionSchedule, def.Section)
	assert.Equal(t, LayoutTable, def.Layout)
	assert.Equal(t, 2, def.FieldIndex("CONTROL"))
	assert.Equal(t, -1, def.FieldIndex("NOPE"))
	assert.Equal(t, 3, def.RequiredCount())

	_, ok = Lookup("COMPDAT")
	assert.False(t, ok)
}

func TestCatalogConsistency(t *testing.T) {
	names := Keywords()
	require.NotEmpty(t, names)
	assert.IsNonDecreasing(t, names)

	for _, name := range names {
		def, _ := Lookup(name)
		switch def.Layout {
		case LayoutFlag, LayoutList:
			assert.Empty(t, def.Fields, name)
		default:
			assert.NotEmpty(t, def.Fields, name)
			// required fields form a prefix
			for i, f := range def.Fields {
				if i >= def.RequiredCount() {
					assert.False(t, f.Required, "%s.%s", name, f.Name)
				}
			}
		}
	}
}

func TestSections(t *testing.T) {
	for i, s := range Sections() {
		assert.Equal(t, Section(i), s)
		parsed, ok := ParseSection(" " + s.String() + " ")
		require.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	_, ok := ParseSection("EDIT")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", Section(42).String())
}

func TestMonths(t *testing.T) {
	assert.Equal(t, "JAN", MonthName(1))
	assert.Equal(t, "DEC", MonthName(12))
	assert.Equal(t, "", MonthName(13))
	assert.Equal(t, 7, MonthNumber("jul"))
	assert.Equal(t, 0, MonthNumber("JULY"))
}

func TestItems(t *testing.T) {
	assert.Equal(t, "'PROD-01'", Str("PROD-01").Render())
	assert.Equal(t, "PROD-01", Str("PROD-01").String())
	assert.Equal(t, "12", Int(12).Render())
	assert.Equal(t, "79.4936", Float(79.493647464).Render())
	assert.Equal(t, "500", Float(500).Render())
	assert.Equal(t, "1*", Default().Render())

	n, ok := Int(3).Number()
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
	_, ok = Str("x").Number()
	assert.False(t, ok)
}

func TestFragmentImmutable(t *testing.T) {
	recs := []Record{NewRecord("welopen", Str("PROD-01"), Str("SHUT"))}
	f := NewFragment("SHUT_WELL PROD-01", recs)

	recs[0].Items[0] = Str("CHANGED")
	got := f.Records()
	assert.Equal(t, "PROD-01", got[0].Items[0].Str)
	assert.Equal(t, "WELOPEN", got[0].Keyword)

	got[0].Items[1] = Str("OPEN")
	assert.Equal(t, "SHUT", f.Records()[0].Item("STATUS").Str)
	assert.True(t, f.Records()[0].Item("MISSING").IsDefault())
}

func TestSortBySection(t *testing.T) {
	recs := []Record{
		NewRecord("WELOPEN", Str("A"), Str("SHUT")),
		NewRecord("GOPR", Str("NORTH")),
		NewRecord("WELOPEN", Str("B"), Str("SHUT")),
		NewRecord("METRIC"),
	}
	sortBySection(recs)
	f := NewFragment("", recs)
	assert.Equal(t, []string{"METRIC", "GOPR", "WELOPEN"}, f.Keywords())
	assert.Equal(t, []Section{SectionRunspec, SectionSummary, SectionSchedule}, f.Sections())
	assert.Equal(t, "A", f.Records()[2].Items[0].Str)
	assert.Equal(t, "B", f.Records()[3].Items[0].Str)
}
