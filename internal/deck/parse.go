package deck

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var repeatRe = regexp.MustCompile(`^(\d+)\*$`)

type token struct {
	text   string
	quoted bool
	slash  bool
}

// stripComment removes a trailing "--" comment outside quotes and returns the
// code and comment parts.
func stripComment(line string) (code, comment string, hasComment bool) {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\'':
			inQuote = !inQuote
		case !inQuote && line[i] == '-' && i+1 < len(line) && line[i+1] == '-':
			return line[:i], strings.TrimSpace(line[i+2:]), true
		}
	}
	return line, "", false
}

// tokenize splits one comment-free line. Text after a '/' is ignored.
func tokenize(line string) ([]token, error) {
	var out []token
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '/':
			return append(out, token{slash: true}), nil
		case c == '\'':
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote")
			}
			out = append(out, token{text: line[i+1 : i+1+end], quoted: true})
			i += end + 2
		default:
			j := i
			for j < len(line) && !strings.ContainsRune(" \t\r/'", rune(line[j])) {
				j++
			}
			out = append(out, token{text: line[i:j]})
			i = j
		}
	}
	return out, nil
}

// Parse reads deck text back into a fragment. Section headers are checked
// against keyword membership; unknown keywords fail with ErrUnknownKeyword.
// The first comment line before any keyword becomes the fragment header and
// a comment line directly before a row becomes that row's comment.
func Parse(text string) (Fragment, error) {
	var (
		header  string
		records []Record
		section = Section(-1)
		seenAny bool
		pending []string
		current *KeywordDef
		row     []Item
	)

	takeComment := func() string {
		c := strings.Join(pending, "\n")
		pending = nil
		return c
	}

	for n, line := range strings.Split(text, "\n") {
		lineNo := n + 1
		code, comment, hasComment := stripComment(line)
		if hasComment && strings.TrimSpace(code) == "" {
			if !seenAny && header == "" {
				header = comment
			} else {
				pending = append(pending, comment)
			}
			continue
		}
		toks, err := tokenize(code)
		if err != nil {
			return Fragment{}, fmt.Errorf("line %d: %w", lineNo, err)
		}

		for _, tok := range toks {
			seenAny = true
			if current == nil {
				if tok.slash || tok.quoted {
					return Fragment{}, fmt.Errorf("line %d: expected keyword, got %q", lineNo, tok.text)
				}
				name := strings.ToUpper(tok.text)
				if s, ok := ParseSection(name); ok {
					section = s
					continue
				}
				def, ok := Lookup(name)
				if !ok {
					return Fragment{}, fmt.Errorf("line %d: %w %s", lineNo, ErrUnknownKeyword, name)
				}
				if section >= 0 && def.Section != section && def.Name != "INCLUDE" {
					return Fragment{}, fmt.Errorf("line %d: keyword %s belongs to %s, found in %s", lineNo, name, def.Section, section)
				}
				if def.Layout == LayoutFlag {
					records = append(records, Record{Keyword: name, Comment: takeComment()})
					continue
				}
				current, row = &def, nil
				continue
			}

			if !tok.slash {
				items, err := typedItems(*current, len(row), tok)
				if err != nil {
					return Fragment{}, fmt.Errorf("line %d: %s: %w", lineNo, current.Name, err)
				}
				row = append(row, items...)
				continue
			}

			// '/' closes a row; in a table an empty row closes the keyword
			if current.Layout == LayoutTable {
				if len(row) == 0 {
					current = nil
					continue
				}
				records = append(records, Record{Keyword: current.Name, Items: row, Comment: takeComment()})
				row = nil
				continue
			}
			records = append(records, Record{Keyword: current.Name, Items: row, Comment: takeComment()})
			current = nil
		}
	}

	if current != nil {
		return Fragment{}, fmt.Errorf("keyword %s is not terminated", current.Name)
	}
	return NewFragment(header, records), nil
}

func typedItems(def KeywordDef, idx int, tok token) ([]Item, error) {
	if tok.quoted {
		return []Item{Str(tok.text)}, nil
	}
	if m := repeatRe.FindStringSubmatch(tok.text); m != nil {
		count, _ := strconv.Atoi(m[1])
		if count < 1 {
			return nil, fmt.Errorf("invalid repeat %q", tok.text)
		}
		out := make([]Item, count)
		for i := range out {
			out[i] = Default()
		}
		return out, nil
	}
	if def.Layout == LayoutList || idx >= len(def.Fields) {
		return []Item{Str(tok.text)}, nil
	}
	switch def.Fields[idx].Kind {
	case FieldInt:
		if n, err := strconv.ParseInt(tok.text, 10, 64); err == nil {
			return []Item{Int(n)}, nil
		}
		if f, err := strconv.ParseFloat(tok.text, 64); err == nil {
			return []Item{Float(f)}, nil
		}
	case FieldFloat:
		if f, err := strconv.ParseFloat(tok.text, 64); err == nil {
			return []Item{Float(f)}, nil
		}
	}
	return []Item{Str(tok.text)}, nil
}
