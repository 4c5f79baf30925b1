package deck

import (
	"fmt"
	"strings"
)

// Render writes a fragment in the target grammar. Output is a pure function
// of the fragment: the same fragment always renders to the same bytes.
func Render(f Fragment) string {
	var b strings.Builder
	if f.header != "" {
		b.WriteString("-- " + f.header + "\n")
	}
	renderRecords(&b, f.records, true)
	return b.String()
}

// RenderSection writes only the records of one section, without headers.
func RenderSection(f Fragment, section Section) string {
	var recs []Record
	for _, r := range f.records {
		if s, ok := r.Section(); ok && s == section {
			recs = append(recs, r)
		}
	}
	var b strings.Builder
	renderRecords(&b, recs, false)
	return b.String()
}

func renderRecords(b *strings.Builder, recs []Record, withSections bool) {
	current := Section(-1)
	for i := 0; i < len(recs); {
		r := recs[i]
		def, known := Lookup(r.Keyword)
		if !known {
			def = KeywordDef{Name: r.Keyword, Section: current, Layout: LayoutRecord}
		}
		if withSections && known && def.Section != current {
			if current >= 0 {
				b.WriteString("\n")
			}
			b.WriteString(def.Section.String() + "\n")
			current = def.Section
		}
		b.WriteString("\n")

		switch def.Layout {
		case LayoutFlag:
			writeComment(b, r.Comment)
			b.WriteString(r.Keyword + "\n")
			i++
		case LayoutTable:
			b.WriteString(r.Keyword + "\n")
			j := i
			for j < len(recs) && recs[j].Keyword == r.Keyword {
				writeRow(b, recs[j])
				j++
			}
			b.WriteString("/\n")
			i = j
		default:
			b.WriteString(r.Keyword + "\n")
			writeRow(b, r)
			i++
		}
	}
}

func writeComment(b *strings.Builder, comment string) {
	if comment == "" {
		return
	}
	for _, line := range strings.Split(comment, "\n") {
		b.WriteString("-- " + line + "\n")
	}
}

func writeRow(b *strings.Builder, r Record) {
	writeComment(b, r.Comment)
	parts := make([]string, 0, len(r.Items)+1)
	for i := 0; i < len(r.Items); {
		if r.Items[i].IsDefault() {
			j := i
			for j < len(r.Items) && r.Items[j].IsDefault() {
				j++
			}
			parts = append(parts, fmt.Sprintf("%d*", j-i))
			i = j
			continue
		}
		parts = append(parts, r.Items[i].Render())
		i++
	}
	parts = append(parts, "/")
	b.WriteString("  " + strings.Join(parts, " ") + "\n")
}
