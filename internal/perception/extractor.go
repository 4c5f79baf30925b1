package perception

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// DefaultEntityMinConfidence is the floor used when none is configured.
const DefaultEntityMinConfidence = 0.5

// typedExtractor pulls candidates of one semantic type out of the text.
type typedExtractor struct {
	name    types.EntityType
	extract func(text string, intent types.Intent) []types.ExtractedEntity
}

// Extractor runs one typed extractor per entity type and merges the results.
type Extractor struct {
	minConfidence float64
	extractors    []typedExtractor
}

// NewExtractor creates an extractor dropping entities below minConfidence.
func NewExtractor(minConfidence float64) *Extractor {
	return &Extractor{
		minConfidence: minConfidence,
		extractors: []typedExtractor{
			{types.EntityWellName, extractWells},
			{types.EntityGroupName, extractGroups},
			{types.EntityRateValue, extractRateValues},
			{types.EntityRateUnit, extractRateUnits},
			{types.EntityPressureValue, extractPressureValues},
			{types.EntityPressureUnit, extractPressureUnits},
			{types.EntityPhase, extractPhases},
			{types.EntityDate, extractDates},
			{types.EntityGridLocation, extractGridLocations},
		},
	}
}

// =============================================================================
// PATTERNS
// =============================================================================

const identList = `([A-Za-z][A-Za-z0-9_-]*(?:\s*(?:,|\band\b)\s*[A-Za-z][A-Za-z0-9_-]*)*)`

var (
	wellCueRe   = regexp.MustCompile(`(?i)\b(?:wells?|producers?|injectors?)\s+(?:named\s+|called\s+)?` + identList)
	groupCueRe  = regexp.MustCompile(`(?i)\bgroups?\s+(?:named\s+|called\s+)?` + identList)
	parentCueRe = regexp.MustCompile(`(?i)\bunder\s+(?:group\s+)?([A-Za-z][A-Za-z0-9_-]*)`)
	identRe     = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_-]*`)
	bareWellRe  = regexp.MustCompile(`\b[A-Z][A-Z0-9]*(?:-[A-Z0-9]+)*-\d+[A-Z0-9]*\b`)
	groupTailRe = regexp.MustCompile(`(?i)\b(?:groups?|under)\s+$`)

	rateRe         = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(mmscf|mscf|mcf|scf|sm3|scm|m3|stbd|stb|bbls?|barrels?|bopd|bpd)\b(\s*(?:/\s*d(?:ay)?|per\s+day|a\s+day|pd)\b)?`)
	rateCueRe      = regexp.MustCompile(`(?i)\b(?:rate|production|ceiling|limit|target|cap)\s+(?:to|of|at|=|is)?\s*(\d+(?:\.\d+)?)\b`)
	toNumberRe     = regexp.MustCompile(`(?i)\bto\s+(\d+(?:\.\d+)?)\b`)
	pressureRe     = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(psia|psig|psi|barsa|bara|bar|kpa)\b`)
	pressureCueRe  = regexp.MustCompile(`(?i)\b(?:bhp|pressure)\s+(?:to|of|at|=|is)?\s*(\d+(?:\.\d+)?)\b`)
	phaseRe        = regexp.MustCompile(`(?i)\b(oil|gas|water|wat|liquid|liq)\b`)
	isoDateRe      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	textDateRe     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)
	gridLocationRe = regexp.MustCompile(`(?i)\bat\s+(?:cell\s+|location\s+|grid\s+)?\(?\s*(\d+)\s*,\s*(\d+)(?:\s*,\s*(\d+))?`)
	bareTokenRe    = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9_-]*)\s*[.!]?\s*$`)
	bareNumberRe   = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*$`)
)

// rateUnits maps surface unit tokens to canonical per-day rate units.
var rateUnits = map[string]string{
	"bbl": "bbl/day", "bbls": "bbl/day", "barrel": "bbl/day", "barrels": "bbl/day",
	"stb": "bbl/day", "stbd": "bbl/day", "bpd": "bbl/day", "bopd": "bbl/day",
	"sm3": "sm3/day", "scm": "sm3/day", "m3": "sm3/day",
	"mscf": "mscf/day", "mcf": "mscf/day", "mmscf": "mmscf/day", "scf": "scf/day",
}

// pressureUnits maps surface tokens to canonical pressure units.
var pressureUnits = map[string]string{
	"psi": "psi", "psia": "psi", "psig": "psi",
	"bar": "bar", "bara": "bar", "barsa": "bar",
	"kpa": "kpa",
}

var phases = map[string]string{
	"oil": "OIL", "gas": "GAS", "water": "WAT", "wat": "WAT", "liquid": "LIQ", "liq": "LIQ",
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// rateIntents accept a bare "to N" as a rate value.
var rateIntents = map[types.IntentKind]bool{
	types.IntentSetRate:       true,
	types.IntentSetGroupRate:  true,
	types.IntentSetFieldLimit: true,
}

func entity(t types.EntityType, value string, conf float64, start, end int) types.ExtractedEntity {
	return types.ExtractedEntity{Name: t, Value: value, Confidence: conf, Span: types.Span{Start: start, End: end}}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// listIdentifiers splits a cue-captured list into individual identifiers,
// dropping reserved tokens.
func listIdentifiers(t types.EntityType, text string, start, end int, conf float64) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, loc := range identRe.FindAllStringIndex(text[start:end], -1) {
		tok := text[start+loc[0] : start+loc[1]]
		if IsReserved(tok) {
			continue
		}
		out = append(out, entity(t, tok, conf, start+loc[0], start+loc[1]))
	}
	return out
}

func extractWells(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range wellCueRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, listIdentifiers(types.EntityWellName, text, m[2], m[3], 0.95)...)
	}
	for _, loc := range bareWellRe.FindAllStringIndex(text, -1) {
		if groupTailRe.MatchString(text[:loc[0]]) {
			continue
		}
		tok := text[loc[0]:loc[1]]
		if IsReserved(tok) {
			continue
		}
		out = append(out, entity(types.EntityWellName, tok, 0.6, loc[0], loc[1]))
	}
	return out
}

func extractGroups(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range groupCueRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, listIdentifiers(types.EntityGroupName, text, m[2], m[3], 0.9)...)
	}
	for _, m := range parentCueRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, listIdentifiers(types.EntityGroupName, text, m[2], m[3], 0.85)...)
	}
	return out
}

// =============================================================================
// QUANTITIES
// =============================================================================

func extractRateValues(text string, intent types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range rateRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, entity(types.EntityRateValue, text[m[2]:m[3]], 0.95, m[2], m[3]))
	}
	for _, m := range rateCueRe.FindAllStringSubmatchIndex(text, -1) {
		if followedByPressureUnit(text, m[3]) {
			continue
		}
		out = append(out, entity(types.EntityRateValue, text[m[2]:m[3]], 0.6, m[2], m[3]))
	}
	if rateIntents[intent.Kind] {
		for _, m := range toNumberRe.FindAllStringSubmatchIndex(text, -1) {
			if followedByPressureUnit(text, m[3]) {
				continue
			}
			out = append(out, entity(types.EntityRateValue, text[m[2]:m[3]], 0.55, m[2], m[3]))
		}
	}
	return out
}

func followedByPressureUnit(text string, numberEnd int) bool {
	for _, m := range pressureRe.FindAllStringSubmatchIndex(text, -1) {
		if m[3] == numberEnd {
			return true
		}
	}
	return false
}

func extractRateUnits(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range rateRe.FindAllStringSubmatchIndex(text, -1) {
		tok := strings.ToLower(text[m[4]:m[5]])
		end, conf := m[5], 0.85
		if m[6] >= 0 {
			end, conf = m[7], 0.95
		}
		switch tok {
		case "bpd", "bopd", "stbd":
			conf = 0.95
		}
		out = append(out, entity(types.EntityRateUnit, rateUnits[tok], conf, m[4], end))
	}
	return out
}

func extractPressureValues(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range pressureRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, entity(types.EntityPressureValue, text[m[2]:m[3]], 0.95, m[2], m[3]))
	}
	for _, m := range pressureCueRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, entity(types.EntityPressureValue, text[m[2]:m[3]], 0.6, m[2], m[3]))
	}
	return out
}

func extractPressureUnits(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range pressureRe.FindAllStringSubmatchIndex(text, -1) {
		tok := strings.ToLower(text[m[4]:m[5]])
		out = append(out, entity(types.EntityPressureUnit, pressureUnits[tok], 0.95, m[4], m[5]))
	}
	return out
}

// =============================================================================
// PHASES, DATES, LOCATIONS
// =============================================================================

func extractPhases(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, loc := range phaseRe.FindAllStringIndex(text, -1) {
		tok := strings.ToLower(text[loc[0]:loc[1]])
		out = append(out, entity(types.EntityPhase, phases[tok], 0.8, loc[0], loc[1]))
	}
	return out
}

func extractDates(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		if d, err := time.Parse("2006-1-2", text[m[0]:m[1]]); err == nil {
			out = append(out, entity(types.EntityDate, d.Format("2006-01-02"), 0.95, m[0], m[1]))
		}
	}
	for _, m := range textDateRe.FindAllStringSubmatchIndex(text, -1) {
		day, month, year := text[m[2]:m[3]], strings.ToLower(text[m[4]:m[5]]), text[m[6]:m[7]]
		raw := fmt.Sprintf("%s-%d-%s", year, int(months[month]), day)
		if d, err := time.Parse("2006-1-2", raw); err == nil {
			out = append(out, entity(types.EntityDate, d.Format("2006-01-02"), 0.9, m[0], m[1]))
		}
	}
	return out
}

func extractGridLocations(text string, _ types.Intent) []types.ExtractedEntity {
	var out []types.ExtractedEntity
	for _, m := range gridLocationRe.FindAllStringSubmatchIndex(text, -1) {
		parts := []string{text[m[2]:m[3]], text[m[4]:m[5]]}
		end := m[5]
		if m[6] >= 0 {
			parts = append(parts, text[m[6]:m[7]])
			end = m[7]
		}
		out = append(out, entity(types.EntityGridLocation, strings.Join(parts, ","), 0.9, m[2], end))
	}
	return out
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract runs every typed extractor over the utterance. Same-type overlaps
// keep the longer match (higher confidence on identical spans); entities are
// returned in order of first appearance.
func (e *Extractor) Extract(u types.Utterance, intent types.Intent) []types.ExtractedEntity {
	text := u.Text()
	results := make([][]types.ExtractedEntity, len(e.extractors))

	var g errgroup.Group
	for i, x := range e.extractors {
		g.Go(func() error {
			results[i] = resolveOverlaps(x.extract(text, intent))
			return nil
		})
	}
	_ = g.Wait()

	order := make(map[types.EntityType]int, len(e.extractors))
	var merged []types.ExtractedEntity
	for i, res := range results {
		order[e.extractors[i].name] = i
		for _, ent := range res {
			if ent.Confidence < e.minConfidence {
				logging.Get(logging.CategoryExtraction).Debugf("dropping %s below floor %.2f", ent, e.minConfidence)
				continue
			}
			merged = append(merged, ent)
		}
	}
	sort.SliceStable(merged, func(a, b int) bool {
		if merged[a].Span.Start != merged[b].Span.Start {
			return merged[a].Span.Start < merged[b].Span.Start
		}
		return order[merged[a].Name] < order[merged[b].Name]
	})

	logging.Get(logging.CategoryExtraction).Debugf("extracted %d entities from %q", len(merged), text)
	return merged
}

// ExtractWithHints is Extract for a clarification answer. When the answer is a
// single bare token and an expected role is still missing, the token fills
// that role. Reserved tokens are never accepted.
func (e *Extractor) ExtractWithHints(u types.Utterance, intent types.Intent, expected []types.EntityType) []types.ExtractedEntity {
	out := e.Extract(u, intent)
	text := u.Text()
	for _, want := range expected {
		if _, ok := types.FirstOf(out, want); ok {
			continue
		}
		switch {
		case want.IsIdentifier():
			m := bareTokenRe.FindStringSubmatchIndex(text)
			if m == nil || IsReserved(text[m[2]:m[3]]) {
				continue
			}
			out = append(out, entity(want, text[m[2]:m[3]], 0.85, m[2], m[3]))
		case want == types.EntityRateValue || want == types.EntityPressureValue:
			m := bareNumberRe.FindStringSubmatchIndex(text)
			if m == nil {
				continue
			}
			out = append(out, entity(want, text[m[2]:m[3]], 0.85, m[2], m[3]))
		}
		// one bare token answers one role
		break
	}
	return out
}

// resolveOverlaps keeps, among same-type candidates, the longer of any two
// overlapping spans. Identical spans keep the higher confidence.
func resolveOverlaps(cands []types.ExtractedEntity) []types.ExtractedEntity {
	if len(cands) < 2 {
		return cands
	}
	ranked := append([]types.ExtractedEntity(nil), cands...)
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Span.Len() != ranked[b].Span.Len() {
			return ranked[a].Span.Len() > ranked[b].Span.Len()
		}
		if ranked[a].Confidence != ranked[b].Confidence {
			return ranked[a].Confidence > ranked[b].Confidence
		}
		return ranked[a].Span.Start < ranked[b].Span.Start
	})

	var kept []types.ExtractedEntity
	for _, c := range ranked {
		clash := false
		for _, k := range kept {
			if k.Span.Overlaps(c.Span) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].Span.Start < kept[b].Span.Start })
	return kept
}
