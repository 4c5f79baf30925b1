// Package perception turns engineering utterances into an intent and a list of
// typed, confidence-scored entities. Everything here is a pure function of the
// text and the static tables in this package.
package perception

import (
	"regexp"
	"strings"

	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// DefaultIntentThreshold is the acceptance threshold used when none is configured.
const DefaultIntentThreshold = 0.45

// Recognizer classifies an utterance into one intent of the taxonomy.
type Recognizer struct {
	threshold float64
	defs      []compiledDefinition
}

type compiledDefinition struct {
	IntentDefinition
	synonyms *regexp.Regexp
}

// NewRecognizer builds a recognizer over the given taxonomy. A nil taxonomy
// uses DefaultTaxonomy.
func NewRecognizer(threshold float64, taxonomy []IntentDefinition) *Recognizer {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy
	}
	r := &Recognizer{threshold: threshold}
	for _, def := range taxonomy {
		cd := compiledDefinition{IntentDefinition: def}
		if len(def.Synonyms) > 0 {
			quoted := make([]string, len(def.Synonyms))
			for i, s := range def.Synonyms {
				quoted[i] = regexp.QuoteMeta(s)
			}
			cd.synonyms = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
		}
		r.defs = append(r.defs, cd)
	}
	return r
}

// Threshold returns the acceptance threshold.
func (r *Recognizer) Threshold() float64 { return r.threshold }

// score returns the capped score and matched span of one definition.
func (d compiledDefinition) score(text string) (float64, types.Span, bool) {
	total := 0.0
	span := types.Span{Start: -1}
	widen := func(loc []int) {
		if span.Start < 0 || loc[0] < span.Start {
			span.Start = loc[0]
		}
		if loc[1] > span.End {
			span.End = loc[1]
		}
	}
	for _, p := range d.Patterns {
		if loc := p.Re.FindStringIndex(text); loc != nil {
			total += p.Weight
			widen(loc)
		}
	}
	if d.synonyms != nil {
		if loc := d.synonyms.FindStringIndex(text); loc != nil {
			total += d.SynonymWeight
			widen(loc)
		}
	}
	if span.Start < 0 {
		return 0, types.Span{}, false
	}
	if total > 1.0 {
		total = 1.0
	}
	return total, span, true
}

// Recognize scores every definition and returns the best. Below the threshold
// the result is UNKNOWN_INTENT carrying the best score. It never fails.
func (r *Recognizer) Recognize(u types.Utterance) types.Intent {
	if u.IsBlank() {
		return types.Intent{Kind: types.IntentUnknown}
	}
	text := u.Text()

	best := types.Intent{Kind: types.IntentUnknown}
	for _, def := range r.defs {
		s, span, ok := def.score(text)
		// strict comparison keeps the earlier declaration on ties
		if ok && s > best.Confidence {
			best = types.Intent{Kind: def.Kind, Confidence: s, Span: span}
		}
	}

	if best.Confidence < r.threshold {
		logging.PerceptionDebug("best intent %s (%.2f) below threshold %.2f", best.Kind, best.Confidence, r.threshold)
		return types.Intent{Kind: types.IntentUnknown, Confidence: best.Confidence, Span: best.Span}
	}
	logging.PerceptionDebug("recognized %s (%.2f) span=%s", best.Kind, best.Confidence, best.Span)
	return best
}

// Scores returns every definition's score in declaration order. Used by the
// CLI to explain a classification.
func (r *Recognizer) Scores(u types.Utterance) []types.Intent {
	out := make([]types.Intent, 0, len(r.defs))
	for _, def := range r.defs {
		s, span, _ := def.score(u.Text())
		out = append(out, types.Intent{Kind: def.Kind, Confidence: s, Span: span})
	}
	return out
}
