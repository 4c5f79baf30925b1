package perception

import (
	"regexp"

	"deckpilot/internal/types"
)

// =============================================================================
// INTENT TAXONOMY
// =============================================================================
// Declaration order is significant: when two definitions score the same the
// one declared first wins.

// WeightedPattern is one regex rule contributing Weight when it matches.
type WeightedPattern struct {
	Re     *regexp.Regexp
	Weight float64
}

// IntentDefinition describes how an intent is recognized.
type IntentDefinition struct {
	Kind          types.IntentKind
	Patterns      []WeightedPattern
	Synonyms      []string // whole-word verbs; any match adds SynonymWeight once
	SynonymWeight float64
}

func wp(expr string, w float64) WeightedPattern {
	return WeightedPattern{Re: regexp.MustCompile(expr), Weight: w}
}

var setVerbs = []string{"set", "change", "adjust", "tweak", "increase", "decrease", "raise", "lower", "cut", "boost", "reduce", "update", "modify", "make"}

const wellTarget = `(?i)\b(wells?|producers?|injectors?)\b|\b[A-Za-z]+-\d+\b`

// DefaultTaxonomy is the closed intent taxonomy in declaration order.
var DefaultTaxonomy = []IntentDefinition{
	{
		Kind: types.IntentStop,
		Patterns: []WeightedPattern{
			wp(`(?i)^\s*(stop|abort|cancel|halt|kill)\b`, 0.8),
			wp(`(?i)\b(stop|abort|cancel|halt)\b.*\b(run|simulation|job|everything|it)\b`, 0.2),
		},
	},
	{
		Kind: types.IntentSetFieldLimit,
		Patterns: []WeightedPattern{
			wp(`(?i)\bfield\b`, 0.35),
			wp(`(?i)\b(ceiling|limit|cap|maximum|max)\b`, 0.35),
			wp(`(?i)\b(production|injection|output)\b`, 0.1),
		},
		Synonyms:      append([]string{"limit", "cap", "restrict"}, setVerbs...),
		SynonymWeight: 0.2,
	},
	{
		Kind: types.IntentSetGroupRate,
		Patterns: []WeightedPattern{
			wp(`(?i)\bgroups?\b`, 0.35),
			wp(`(?i)\b(rates?|production|target|limit)\b`, 0.3),
			wp(`(?i)\bto\s+\d`, 0.15),
		},
		Synonyms:      setVerbs,
		SynonymWeight: 0.2,
	},
	{
		Kind: types.IntentGetGroupProduction,
		Patterns: []WeightedPattern{
			wp(`(?i)^\s*(what|how much|show|report|get|give|list|tell)\b`, 0.4),
			wp(`(?i)\b(production|output|rates?|producing)\b`, 0.3),
			wp(`(?i)\bgroups?\b`, 0.3),
		},
	},
	{
		Kind: types.IntentSetRate,
		Patterns: []WeightedPattern{
			wp(wellTarget, 0.3),
			wp(`(?i)\b(rate|flow|production)\b`, 0.3),
			wp(`(?i)\d\s*(bbls?|barrels?|stb|bpd|bopd|sm3|m3|scm|mscf|mcf|mmscf|scf)\b`, 0.2),
		},
		Synonyms:      setVerbs,
		SynonymWeight: 0.2,
	},
	{
		Kind: types.IntentSetBHP,
		Patterns: []WeightedPattern{
			wp(`(?i)\b(bhp|bottom[- ]?hole(\s+pressure)?)\b`, 0.45),
			wp(`(?i)\d\s*(psia|psig|psi|barsa|bara|bar|kpa)\b`, 0.25),
			wp(wellTarget, 0.15),
		},
		Synonyms:      setVerbs,
		SynonymWeight: 0.15,
	},
	{
		Kind: types.IntentShutWell,
		Patterns: []WeightedPattern{
			wp(`(?i)\b(shut|shut-in|close|shutin)\b`, 0.65),
			wp(wellTarget, 0.35),
			// "stop well X" outranks the bare STOP cue
			wp(`(?i)\b(stop|halt)\b.*(\b(wells?|producers?|injectors?)\b|\b[A-Za-z]+-\d+\b)`, 0.5),
		},
	},
	{
		Kind: types.IntentOpenWell,
		Patterns: []WeightedPattern{
			wp(`(?i)\b(open|reopen|re-open|restart|resume)\b`, 0.65),
			wp(wellTarget, 0.35),
		},
	},
	{
		Kind: types.IntentAddWell,
		Patterns: []WeightedPattern{
			wp(`(?i)\b(wells?|producers?|injectors?)\b`, 0.35),
			wp(`(?i)\bat\s+(cell\s+)?\(?\s*\d+\s*,\s*\d+`, 0.3),
		},
		Synonyms:      []string{"add", "create", "drill", "new", "place", "insert"},
		SynonymWeight: 0.35,
	},
	{
		Kind: types.IntentAddGroup,
		Patterns: []WeightedPattern{
			wp(`(?i)\bgroups?\b`, 0.35),
			wp(`(?i)\b(under|parent|containing|with\s+wells?)\b`, 0.3),
		},
		Synonyms:      []string{"add", "create", "new", "define", "form"},
		SynonymWeight: 0.35,
	},
	{
		Kind: types.IntentRunSimulation,
		Patterns: []WeightedPattern{
			wp(`(?i)\b(run|simulate|execute|launch|start)\b`, 0.5),
			wp(`(?i)\b(simulation|simulator|model|case|deck|forecast)\b`, 0.5),
		},
	},
}
