package world

import (
	"strings"

	"github.com/agext/levenshtein"
)

const normalizedMatchScore = 0.97

var separators = strings.NewReplacer("-", "", "_", "", " ", "", ".", "", "/", "")

// Similarity scores how well a requested name matches an identifier:
// 1.0 for a case-insensitive exact match, 0.97 when only separators differ,
// otherwise the normalized Levenshtein similarity.
func Similarity(requested, identifier string) float64 {
	a := strings.ToUpper(strings.TrimSpace(requested))
	b := strings.ToUpper(strings.TrimSpace(identifier))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if na, nb := separators.Replace(a), separators.Replace(b); na != "" && na == nb {
		return normalizedMatchScore
	}
	return levenshtein.Similarity(a, b, nil)
}
