package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpilot/internal/config"
	"deckpilot/internal/deck"
	"deckpilot/internal/types"
)

func frag(recs ...deck.Record) deck.Fragment {
	return deck.NewFragment("test", recs)
}

func wconprod(rate float64) deck.Record {
	return deck.NewRecord("WCONPROD", deck.Str("PROD-01"), deck.Str("OPEN"), deck.Str("ORAT"), deck.Float(rate))
}

func TestValidate_Proceed(t *testing.T) {
	v := NewDeckValidator(DefaultLimits())
	f := frag(
		deck.NewRecord("GOPR", deck.Str("NORTH")),
		deck.NewRecord("DATES", deck.Int(29), deck.Str("FEB"), deck.Int(2028)),
		wconprod(79.4936),
		deck.NewRecord("GCONPROD", deck.Str("FIELD"), deck.Str("GRAT"), deck.Default(), deck.Default(), deck.Float(2e6)),
		deck.NewRecord("WCONINJE", deck.Str("INJ-01"), deck.Str("WATER"), deck.Str("OPEN"), deck.Str("RATE"), deck.Int(800)),
	)
	assert.True(t, v.Check(f).OK())
	assert.Equal(t, types.Proceed(), v.Validate(f))
	assert.True(t, v.Validate(deck.NewFragment("RUN_SIMULATION", nil)).IsProceed())
}

func TestValidate_Syntax(t *testing.T) {
	tests := []struct {
		name string
		rec  []deck.Record
		kind ViolationKind
	}{
		{"unknown keyword", []deck.Record{deck.NewRecord("COMPDAT", deck.Str("P"))}, UnknownKeyword},
		{"section order", []deck.Record{wconprod(10), deck.NewRecord("GOPR", deck.Str("NORTH"))}, SectionOrder},
		{"too few items", []deck.Record{deck.NewRecord("WCONPROD", deck.Str("PROD-01"), deck.Str("OPEN"))}, Arity},
		{"too many items", []deck.Record{deck.NewRecord("WELOPEN", deck.Str("P"), deck.Str("SHUT"), deck.Str("X"))}, Arity},
		{"flag with items", []deck.Record{deck.NewRecord("METRIC", deck.Int(1))}, Arity},
		{"empty list", []deck.Record{deck.NewRecord("GOPR")}, Arity},
		{"number in list", []deck.Record{deck.NewRecord("GOPR", deck.Int(1))}, ItemType},
		{"string for float", []deck.Record{deck.NewRecord("WCONPROD", deck.Str("P"), deck.Str("OPEN"), deck.Str("ORAT"), deck.Str("lots"))}, ItemType},
		{"float for int", []deck.Record{deck.NewRecord("DATES", deck.Float(1.5), deck.Str("JAN"), deck.Int(2027))}, ItemType},
		{"defaulted required", []deck.Record{deck.NewRecord("WELOPEN", deck.Default(), deck.Str("SHUT"))}, MissingRequired},
		{"bad enum", []deck.Record{deck.NewRecord("WELOPEN", deck.Str("P"), deck.Str("CLOSED"))}, EnumValue},
	}
	v := NewDeckValidator(DefaultLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frag(tt.rec...)
			report := v.Check(f)
			require.NotEmpty(t, report.Syntax)
			assert.Equal(t, tt.kind, report.Syntax[0].Kind)

			verdict := v.Validate(f)
			assert.True(t, verdict.IsRollback())
			assert.Equal(t, StageName, verdict.FailedStage)
		})
	}
}

func TestValidate_Plausibility(t *testing.T) {
	tests := []struct {
		name  string
		rec   deck.Record
		kind  ViolationKind
		field string
	}{
		{"zero rate", wconprod(0), NonPositive, "ORAT"},
		{"negative rate", wconprod(-5), NonPositive, "ORAT"},
		{"rate above ceiling", wconprod(50000.5), AboveCeiling, "ORAT"},
		{"gas above gas ceiling", deck.NewRecord("GCONPROD", deck.Str("FIELD"), deck.Str("GRAT"), deck.Default(), deck.Default(), deck.Float(6e6)), AboveCeiling, "GRAT"},
		{"water injection uses liquid ceiling", deck.NewRecord("WCONINJE", deck.Str("I"), deck.Str("WATER"), deck.Str("OPEN"), deck.Str("RATE"), deck.Float(60000)), AboveCeiling, "RATE"},
		{"pressure above ceiling", deck.NewRecord("WCONPROD", deck.Str("P"), deck.Str("OPEN"), deck.Str("BHP"),
			deck.Default(), deck.Default(), deck.Default(), deck.Default(), deck.Default(), deck.Float(1200)), AboveCeiling, "BHP"},
		{"year before window", deck.NewRecord("DATES", deck.Int(1), deck.Str("JAN"), deck.Int(1850)), OutOfWindow, "YEAR"},
		{"not a calendar date", deck.NewRecord("DATES", deck.Int(31), deck.Str("APR"), deck.Int(2027)), OutOfWindow, "DAY"},
	}
	v := NewDeckValidator(DefaultLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Check(frag(tt.rec))
			assert.Empty(t, report.Syntax)
			require.Len(t, report.Plausibility, 1)
			assert.Equal(t, tt.kind, report.Plausibility[0].Kind)
			assert.Equal(t, tt.field, report.Plausibility[0].Field)

			verdict := v.Validate(frag(tt.rec))
			require.True(t, verdict.IsClarify())
			assert.Len(t, verdict.Items, 1)
		})
	}
}

func TestValidate_GasInjectionCeiling(t *testing.T) {
	v := NewDeckValidator(DefaultLimits())
	rec := deck.NewRecord("WCONINJE", deck.Str("I"), deck.Str("GAS"), deck.Str("OPEN"), deck.Str("RATE"), deck.Float(60000))
	assert.True(t, v.Check(frag(rec)).OK())
}

func TestValidate_SyntaxWinsOverPlausibility(t *testing.T) {
	v := NewDeckValidator(DefaultLimits())
	f := frag(wconprod(-1), deck.NewRecord("WELOPEN", deck.Str("P"), deck.Str("CLOSED")))
	report := v.Check(f)
	assert.Len(t, report.Syntax, 1)
	assert.Len(t, report.Plausibility, 1)
	assert.True(t, v.Validate(f).IsRollback())
}

func TestLimitsFromConfig(t *testing.T) {
	l := DefaultLimits()
	assert.Equal(t, 50000.0, l.MaxRate)
	assert.Equal(t, 5e6, l.MaxGasRate)
	assert.Equal(t, 1000.0, l.MaxPressure)
	assert.Equal(t, 1900, l.MinYear)
	assert.Equal(t, 2200, l.MaxYear)
}

func TestFieldUnitCeilings(t *testing.T) {
	bhp := frag(deck.NewRecord("WCONPROD", deck.Str("PROD-01"), deck.Str("OPEN"), deck.Str("BHP"),
		deck.Default(), deck.Default(), deck.Default(), deck.Default(), deck.Default(), deck.Float(3500)))

	g := config.DefaultConfig().Grammar
	assert.True(t, NewDeckValidator(LimitsFromConfig(g)).Validate(bhp).IsClarify())

	g.UnitSystem = "FIELD"
	g.MaxRate, g.MaxGasRate, g.MaxPressure = config.DefaultCeilings(g.UnitSystem)
	assert.True(t, NewDeckValidator(LimitsFromConfig(g)).Validate(bhp).IsProceed())
}

func TestViolationString(t *testing.T) {
	assert.Equal(t, "WCONPROD.ORAT: bad", Violation{Keyword: "WCONPROD", Field: "ORAT", Detail: "bad"}.String())
	assert.Equal(t, "GOPR: bad", Violation{Keyword: "GOPR", Detail: "bad"}.String())
	assert.True(t, Arity.Syntactic())
	assert.False(t, AboveCeiling.Syntactic())
}
