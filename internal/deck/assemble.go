package deck

import (
	"fmt"
	"sort"
	"strings"
)

// Assemble splices a fragment into a full base deck. Each touched section's
// records are inserted at the end of that section, before the next section
// header or END. An empty base yields the rendered fragment.
func Assemble(base string, f Fragment) (string, error) {
	if strings.TrimSpace(base) == "" {
		return Render(f), nil
	}
	lines := strings.Split(base, "\n")

	headers := make(map[Section]int)
	end := len(lines)
	for i, line := range lines {
		code, _, _ := stripComment(line)
		word := strings.ToUpper(strings.TrimSpace(code))
		if s, ok := ParseSection(word); ok {
			if _, dup := headers[s]; !dup {
				headers[s] = i
			}
		}
		if word == "END" && end == len(lines) {
			end = i
		}
	}

	type insertion struct {
		at   int
		text string
	}
	var inserts []insertion
	for _, sec := range f.Sections() {
		start, ok := headers[sec]
		if !ok {
			return "", fmt.Errorf("base deck has no %s section", sec)
		}
		at := end
		for _, idx := range headers {
			if idx > start && idx < at {
				at = idx
			}
		}
		body := RenderSection(f, sec)
		if f.Header() != "" {
			body = "-- " + f.Header() + "\n" + body
		}
		inserts = append(inserts, insertion{at: at, text: body})
	}

	sort.SliceStable(inserts, func(a, b int) bool { return inserts[a].at > inserts[b].at })
	for _, ins := range inserts {
		block := strings.Split(strings.TrimSuffix(ins.text, "\n"), "\n")
		block = append(block, "")
		lines = append(lines[:ins.at], append(block, lines[ins.at:]...)...)
	}
	return strings.Join(lines, "\n"), nil
}
