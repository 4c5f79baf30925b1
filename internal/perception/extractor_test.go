package perception

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpilot/internal/types"
)

func extract(text string, kind types.IntentKind) []types.ExtractedEntity {
	u := types.NewUtterance(text, "en")
	return NewExtractor(DefaultEntityMinConfidence).Extract(u, types.Intent{Kind: kind, Confidence: 1})
}

func TestExtract_SetRate(t *testing.T) {
	got := extract("set well PROD-01 rate to 500 bbl per day", types.IntentSetRate)
	want := []types.ExtractedEntity{
		{Name: types.EntityWellName, Value: "PROD-01", Confidence: 0.95, Span: types.Span{Start: 9, End: 16}},
		{Name: types.EntityRateValue, Value: "500", Confidence: 0.95, Span: types.Span{Start: 25, End: 28}},
		{Name: types.EntityRateUnit, Value: "bbl/day", Confidence: 0.95, Span: types.Span{Start: 29, End: 40}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_ReservedGroupNameIsExcluded(t *testing.T) {
	got := extract("set group GAS rate to 1000 bbl per day", types.IntentSetGroupRate)
	assert.Empty(t, types.EntitiesOf(got, types.EntityGroupName))

	phase, ok := types.FirstOf(got, types.EntityPhase)
	require.True(t, ok)
	assert.Equal(t, "GAS", phase.Value)

	rate, ok := types.FirstOf(got, types.EntityRateValue)
	require.True(t, ok)
	assert.Equal(t, "1000", rate.Value)
}

func TestExtract_NoGroupNamePresent(t *testing.T) {
	got := extract("tweak the group rate", types.IntentSetGroupRate)
	assert.Empty(t, types.EntitiesOf(got, types.EntityGroupName))
}

func TestIsReserved(t *testing.T) {
	for _, tok := range []string{"GAS", "gas", "GOR", "OIL", "WCT", "BHP", "FIELD", "rate", " the "} {
		assert.True(t, IsReserved(tok), tok)
	}
	for _, tok := range []string{"NORTH", "PROD-01", "GASCAP", "G1"} {
		assert.False(t, IsReserved(tok), tok)
	}
}

func TestExtract_ReservedTokensNeverNameGroups(t *testing.T) {
	for tok := range ReservedTokens {
		got := extract("set group "+tok+" rate to 100 sm3 per day", types.IntentSetGroupRate)
		assert.Empty(t, types.EntitiesOf(got, types.EntityGroupName), tok)
	}
}

func TestExtract_WellListPreservesOrder(t *testing.T) {
	got := extract("shut wells PROD-01 and PROD-02", types.IntentShutWell)
	wells := types.EntitiesOf(got, types.EntityWellName)
	require.Len(t, wells, 2)
	assert.Equal(t, "PROD-01", wells[0].Value)
	assert.Equal(t, types.Span{Start: 11, End: 18}, wells[0].Span)
	assert.Equal(t, "PROD-02", wells[1].Value)
	assert.Equal(t, types.Span{Start: 23, End: 30}, wells[1].Span)
}

func TestExtract_BareIdentifierHasLowerConfidence(t *testing.T) {
	got := extract("shut in PROD-02", types.IntentShutWell)
	well, ok := types.FirstOf(got, types.EntityWellName)
	require.True(t, ok)
	assert.Equal(t, "PROD-02", well.Value)
	assert.InDelta(t, 0.6, well.Confidence, 1e-9)
}

func TestExtract_GroupCueSuppressesBareWell(t *testing.T) {
	got := extract("what is the production of group G-1", types.IntentGetGroupProduction)
	assert.Empty(t, types.EntitiesOf(got, types.EntityWellName))
	group, ok := types.FirstOf(got, types.EntityGroupName)
	require.True(t, ok)
	assert.Equal(t, "G-1", group.Value)
}

func TestExtract_Pressure(t *testing.T) {
	got := extract("set well PROD-01 bhp to 200 bar", types.IntentSetBHP)
	value, ok := types.FirstOf(got, types.EntityPressureValue)
	require.True(t, ok)
	assert.Equal(t, "200", value.Value)
	assert.Equal(t, types.Span{Start: 24, End: 27}, value.Span)
	assert.InDelta(t, 0.95, value.Confidence, 1e-9)

	unit, ok := types.FirstOf(got, types.EntityPressureUnit)
	require.True(t, ok)
	assert.Equal(t, "bar", unit.Value)
	assert.Empty(t, types.EntitiesOf(got, types.EntityRateValue))
}

func TestExtract_RateUnits(t *testing.T) {
	tests := []struct {
		text string
		unit string
	}{
		{"set well P-1 rate to 500 stb/d", "bbl/day"},
		{"set well P-1 rate to 500 bpd", "bbl/day"},
		{"set well P-1 rate to 80 sm3 per day", "sm3/day"},
		{"set well P-1 gas rate to 2000 mscf/day", "mscf/day"},
		{"set well P-1 gas rate to 3 MMscf a day", "mmscf/day"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			unit, ok := types.FirstOf(extract(tt.text, types.IntentSetRate), types.EntityRateUnit)
			require.True(t, ok)
			assert.Equal(t, tt.unit, unit.Value)
		})
	}
}

func TestExtract_Dates(t *testing.T) {
	for _, text := range []string{
		"open well PROD-03 on 1 Jan 2026",
		"open well PROD-03 on 2026-01-01",
		"open well PROD-03 on 1st January 2026",
	} {
		date, ok := types.FirstOf(extract(text, types.IntentOpenWell), types.EntityDate)
		require.True(t, ok, text)
		assert.Equal(t, "2026-01-01", date.Value, text)
	}

	assert.Empty(t, types.EntitiesOf(extract("open well PROD-03 on 2026-02-31", types.IntentOpenWell), types.EntityDate))
}

func TestExtract_GridLocation(t *testing.T) {
	got := extract("add a producer PROD-09 at 10,12 in group NORTH", types.IntentAddWell)
	loc, ok := types.FirstOf(got, types.EntityGridLocation)
	require.True(t, ok)
	assert.Equal(t, "10,12", loc.Value)

	well, ok := types.FirstOf(got, types.EntityWellName)
	require.True(t, ok)
	assert.Equal(t, "PROD-09", well.Value)

	group, ok := types.FirstOf(got, types.EntityGroupName)
	require.True(t, ok)
	assert.Equal(t, "NORTH", group.Value)
}

func TestExtract_EntitiesInOrderOfAppearance(t *testing.T) {
	got := extract("on 2026-01-01 set well PROD-01 oil rate to 500 bbl per day", types.IntentSetRate)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Span.Start, got[i].Span.Start)
	}
	assert.Equal(t, types.EntityDate, got[0].Name)
}

func TestExtract_ConfidenceFloor(t *testing.T) {
	u := types.NewUtterance("set the rate to 500", "")
	intent := types.Intent{Kind: types.IntentSetRate, Confidence: 1}

	low := NewExtractor(0.5).Extract(u, intent)
	rate, ok := types.FirstOf(low, types.EntityRateValue)
	require.True(t, ok)
	assert.InDelta(t, 0.6, rate.Confidence, 1e-9)

	high := NewExtractor(0.7).Extract(u, intent)
	assert.Empty(t, types.EntitiesOf(high, types.EntityRateValue))
}

func TestResolveOverlaps(t *testing.T) {
	short := types.ExtractedEntity{Name: types.EntityWellName, Value: "P-1", Confidence: 0.9, Span: types.Span{Start: 0, End: 3}}
	long := types.ExtractedEntity{Name: types.EntityWellName, Value: "P-1A", Confidence: 0.5, Span: types.Span{Start: 0, End: 4}}
	same := types.ExtractedEntity{Name: types.EntityWellName, Value: "P-1", Confidence: 0.6, Span: types.Span{Start: 0, End: 3}}
	apart := types.ExtractedEntity{Name: types.EntityWellName, Value: "P-2", Confidence: 0.6, Span: types.Span{Start: 8, End: 11}}

	assert.Equal(t, []types.ExtractedEntity{long, apart}, resolveOverlaps([]types.ExtractedEntity{apart, short, long}))
	assert.Equal(t, []types.ExtractedEntity{short}, resolveOverlaps([]types.ExtractedEntity{same, short}))
}

func TestExtractWithHints(t *testing.T) {
	e := NewExtractor(DefaultEntityMinConfidence)
	intent := types.Intent{Kind: types.IntentSetGroupRate, Confidence: 0.85}
	expected := []types.EntityType{types.EntityGroupName}

	got := e.ExtractWithHints(types.NewUtterance("NORTH", ""), intent, expected)
	require.Len(t, got, 1)
	assert.Equal(t, types.EntityGroupName, got[0].Name)
	assert.Equal(t, "NORTH", got[0].Value)

	got = e.ExtractWithHints(types.NewUtterance("GAS", ""), intent, expected)
	assert.Empty(t, types.EntitiesOf(got, types.EntityGroupName))

	got = e.ExtractWithHints(types.NewUtterance("1500", ""), intent, []types.EntityType{types.EntityRateValue})
	rate, ok := types.FirstOf(got, types.EntityRateValue)
	require.True(t, ok)
	assert.Equal(t, "1500", rate.Value)
}
