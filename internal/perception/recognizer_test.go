package perception

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpilot/internal/types"
)

func recognize(t *testing.T, text string) types.Intent {
	t.Helper()
	return NewRecognizer(DefaultIntentThreshold, nil).Recognize(types.NewUtterance(text, "en"))
}

func TestRecognize_Taxonomy(t *testing.T) {
	tests := []struct {
		text string
		want types.IntentKind
	}{
		{"set well PROD-01 rate to 500 bbl per day", types.IntentSetRate},
		{"tweak the group rate", types.IntentSetGroupRate},
		{"set group GAS rate to 1000 bbl per day", types.IntentSetGroupRate},
		{"set the field production ceiling to 20000 bbl per day", types.IntentSetFieldLimit},
		{"set well PROD-01 bhp to 200 bar", types.IntentSetBHP},
		{"shut in PROD-02", types.IntentShutWell},
		{"reopen well INJ-01", types.IntentOpenWell},
		{"add a producer PROD-09 at 10,12 in group NORTH", types.IntentAddWell},
		{"create group EAST under FIELD with wells PROD-01 and PROD-02", types.IntentAddGroup},
		{"what is the oil production of group NORTH", types.IntentGetGroupProduction},
		{"run the simulation", types.IntentRunSimulation},
		{"stop", types.IntentStop},
		{"stop well PROD-01", types.IntentShutWell},
		{"stop the simulation", types.IntentStop},
		{"hello there", types.IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := recognize(t, tt.text)
			assert.Equal(t, tt.want, got.Kind)
			if tt.want != types.IntentUnknown {
				assert.GreaterOrEqual(t, got.Confidence, DefaultIntentThreshold)
				assert.LessOrEqual(t, got.Confidence, 1.0)
			}
		})
	}
}

func TestRecognize_StopWellIsShutIn(t *testing.T) {
	r := NewRecognizer(DefaultIntentThreshold, nil)
	for _, text := range []string{"stop well PROD-01", "halt producer PROD-02", "stop PROD-01 and PROD-02"} {
		got := r.Recognize(types.NewUtterance(text, ""))
		assert.Equal(t, types.IntentShutWell, got.Kind, text)
	}

	got := r.Recognize(types.NewUtterance("stop", ""))
	assert.Equal(t, types.IntentStop, got.Kind)
}

func TestRecognize_SetRateIsConfident(t *testing.T) {
	got := recognize(t, "set well PROD-01 rate to 500 bbl per day")
	require.Equal(t, types.IntentSetRate, got.Kind)
	assert.GreaterOrEqual(t, got.Confidence, 0.8)
	assert.Equal(t, 0, got.Span.Start)
	assert.Greater(t, got.Span.End, got.Span.Start)
}

func TestRecognize_BelowThresholdKeepsBestScore(t *testing.T) {
	got := recognize(t, "the group")
	assert.Equal(t, types.IntentUnknown, got.Kind)
	assert.InDelta(t, 0.35, got.Confidence, 1e-9)
}

func TestRecognize_BlankNeverFails(t *testing.T) {
	got := recognize(t, "   ")
	assert.Equal(t, types.IntentUnknown, got.Kind)
	assert.Zero(t, got.Confidence)
}

func TestRecognize_TieGoesToEarlierDeclaration(t *testing.T) {
	first := IntentDefinition{
		Kind:     types.IntentShutWell,
		Patterns: []WeightedPattern{{Re: regexp.MustCompile(`(?i)\bclose\b`), Weight: 0.6}},
	}
	second := IntentDefinition{
		Kind:     types.IntentStop,
		Patterns: []WeightedPattern{{Re: regexp.MustCompile(`(?i)\bclose\b`), Weight: 0.6}},
	}
	u := types.NewUtterance("close it", "")

	got := NewRecognizer(0.5, []IntentDefinition{first, second}).Recognize(u)
	assert.Equal(t, types.IntentShutWell, got.Kind)

	got = NewRecognizer(0.5, []IntentDefinition{second, first}).Recognize(u)
	assert.Equal(t, types.IntentStop, got.Kind)
}

func TestRecognize_ScoreIsCapped(t *testing.T) {
	def := IntentDefinition{
		Kind: types.IntentRunSimulation,
		Patterns: []WeightedPattern{
			{Re: regexp.MustCompile(`run`), Weight: 0.9},
			{Re: regexp.MustCompile(`case`), Weight: 0.9},
		},
		Synonyms:      []string{"now"},
		SynonymWeight: 0.5,
	}
	got := NewRecognizer(0.5, []IntentDefinition{def}).Recognize(types.NewUtterance("run case now", ""))
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, types.Span{Start: 0, End: 12}, got.Span)
}

func TestRecognize_MonotonicThreshold(t *testing.T) {
	utterances := []string{
		"set well PROD-01 rate to 500 bbl per day",
		"tweak the group rate",
		"the group",
		"open PROD-01",
		"run",
	}
	thresholds := []float64{0, 0.2, 0.4, 0.5, 0.7, 0.9, 1.0, 1.01}

	for _, text := range utterances {
		u := types.NewUtterance(text, "")
		unknown := false
		for _, th := range thresholds {
			got := NewRecognizer(th, nil).Recognize(u)
			if unknown {
				assert.Equal(t, types.IntentUnknown, got.Kind, "%q at %.2f went back to a known intent", text, th)
			}
			unknown = got.IsUnknown()
		}
		assert.True(t, unknown, "%q must be unknown above 1.0", text)
	}
}

func TestScores_DeclarationOrder(t *testing.T) {
	r := NewRecognizer(DefaultIntentThreshold, nil)
	scores := r.Scores(types.NewUtterance("stop", ""))
	require.Len(t, scores, len(DefaultTaxonomy))
	for i, s := range scores {
		assert.Equal(t, DefaultTaxonomy[i].Kind, s.Kind)
	}
	assert.InDelta(t, 0.8, scores[0].Confidence, 1e-9)
}
