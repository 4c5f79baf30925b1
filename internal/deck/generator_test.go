package deck

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpilot/internal/types"
	"deckpilot/internal/world"
)

func testSnapshot(t *testing.T) *world.Snapshot {
	t.Helper()
	snap, err := world.NewSnapshot(world.FieldData{
		Field: "TEST",
		Grid:  world.GridBounds{NX: 20, NY: 20, NZ: 5},
		Groups: []world.Group{
			{Name: "NORTH"},
			{Name: "SOUTH"},
		},
		Wells: []world.Well{
			{Name: "PROD-01", Group: "NORTH", I: 5, J: 5, Phase: "OIL", Role: "producer", Status: "OPEN"},
			{Name: "PROD-02", Group: "NORTH", I: 6, J: 8, Phase: "OIL", Role: "producer", Status: "OPEN"},
			{Name: "PROD-03", Group: "SOUTH", I: 14, J: 3, Phase: "OIL", Role: "producer", Status: "SHUT"},
			{Name: "INJ-01", Group: "SOUTH", I: 15, J: 12, Phase: "WAT", Role: "injector", Status: "OPEN"},
		},
	}, 1)
	require.NoError(t, err)
	return snap
}

func ent(name types.EntityType, value string) types.ExtractedEntity {
	return types.ExtractedEntity{Name: name, Value: value, Confidence: 1}
}

// request validates identifiers the way the pipeline does: the first value
// of a declared role is new, everything else must exist.
func request(snap *world.Snapshot, kind types.IntentKind, entities ...types.ExtractedEntity) Request {
	v := world.NewAssetValidator(world.DefaultMatchThreshold, world.DefaultAmbiguityMargin, world.DefaultSuggestionFloor)
	tmpl, _ := TemplateFor(kind)
	declared := make(map[types.EntityType]bool)
	var assets []types.ValidatedAsset
	for _, e := range entities {
		switch {
		case e.Name.IsIdentifier() && tmpl.DeclaresRole(e.Name) && !declared[e.Name]:
			declared[e.Name] = true
			assets = append(assets, v.Declare(e, snap))
		default:
			assets = append(assets, v.Validate([]types.ExtractedEntity{e}, snap)...)
		}
	}
	return Request{Intent: types.Intent{Kind: kind, Confidence: 1}, Entities: entities, Assets: assets}
}

func TestGenerate_SetRate(t *testing.T) {
	snap := testSnapshot(t)
	g := NewGenerator(UnitsMetric)
	req := request(snap, types.IntentSetRate,
		ent(types.EntityWellName, "PROD-01"),
		ent(types.EntityRateValue, "500"),
		ent(types.EntityRateUnit, "bbl/day"))

	f, err := g.Generate(req)
	require.NoError(t, err)
	assert.Equal(t, "SET_RATE PROD-01", f.Header())
	require.Equal(t, 1, f.Len())
	rec := f.Records()[0]
	assert.Equal(t, "WCONPROD", rec.Keyword)
	assert.Equal(t, "ORAT", rec.Item("CONTROL").Str)
	assert.Equal(t, Float(79.4936), rec.Item("ORAT"))

	again, err := g.Generate(req)
	require.NoError(t, err)
	assert.Equal(t, Render(f), Render(again))
}

func TestGenerate_Injector(t *testing.T) {
	g := NewGenerator(UnitsMetric)
	f, err := g.Generate(request(testSnapshot(t), types.IntentSetRate,
		ent(types.EntityWellName, "INJ-01"),
		ent(types.EntityRateValue, "5000"),
		ent(types.EntityRateUnit, "bbl/day")))
	require.NoError(t, err)
	rec := f.Records()[0]
	assert.Equal(t, "WCONINJE", rec.Keyword)
	assert.Equal(t, "WATER", rec.Item("TYPE").Str)
	assert.Equal(t, Float(794.9365), rec.Item("RATE"))
}

func TestGenerate_GasPhaseFromUnit(t *testing.T) {
	g := NewGenerator(UnitsField)
	f, err := g.Generate(request(testSnapshot(t), types.IntentSetRate,
		ent(types.EntityWellName, "PROD-02"),
		ent(types.EntityRateValue, "2"),
		ent(types.EntityRateUnit, "mmscf/day")))
	require.NoError(t, err)
	rec := f.Records()[0]
	assert.Equal(t, "GRAT", rec.Item("CONTROL").Str)
	assert.Equal(t, Float(2000), rec.Item("GRAT"))
}

func TestGenerate_UnitMismatch(t *testing.T) {
	g := NewGenerator(UnitsMetric)
	_, err := g.Generate(request(testSnapshot(t), types.IntentSetRate,
		ent(types.EntityWellName, "PROD-01"),
		ent(types.EntityRateValue, "500"),
		ent(types.EntityRateUnit, "bbl/day"),
		ent(types.EntityPhase, "GAS")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnitConversion))
	var ue *UnitError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "GAS", ue.Phase)
}

func TestGenerate_MissingRole(t *testing.T) {
	snap := testSnapshot(t)
	g := NewGenerator(UnitsMetric)

	_, err := g.Generate(request(snap, types.IntentSetGroupRate, ent(types.EntityRateValue, "100")))
	var mre *MissingRoleError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, types.EntityGroupName, mre.Role)
	assert.True(t, errors.Is(err, ErrMissingRequiredEntity))

	// an unresolved identifier does not fill its role
	_, err = g.Generate(request(snap, types.IntentShutWell, ent(types.EntityWellName, "ZZZ-99")))
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, types.EntityWellName, mre.Role)

	_, err = g.Generate(Request{Intent: types.Intent{Kind: types.IntentStop}})
	assert.True(t, errors.Is(err, ErrNoTemplate))
}

func TestMissingRoles(t *testing.T) {
	assert.Equal(t, []types.EntityType{types.EntityGroupName, types.EntityRateValue},
		MissingRoles(types.IntentSetGroupRate, nil))
	assert.Equal(t, []types.EntityType{types.EntityGroupName},
		MissingRoles(types.IntentSetGroupRate, []types.ExtractedEntity{ent(types.EntityRateValue, "1")}))
	assert.Empty(t, MissingRoles(types.IntentRunSimulation, nil))
	assert.Nil(t, MissingRoles(types.IntentUnknown, nil))
}

func TestGenerate_WellStatusRecords(t *testing.T) {
	g := NewGenerator(UnitsMetric)
	cases := []struct {
		kind   types.IntentKind
		status string
	}{
		{types.IntentShutWell, "SHUT"},
		{types.IntentOpenWell, "OPEN"},
	}
	def, ok := Lookup("WELOPEN")
	require.True(t, ok)
	for _, c := range cases {
		f, err := g.Generate(request(testSnapshot(t), c.kind,
			ent(types.EntityWellName, "PROD-01"), ent(types.EntityWellName, "PROD-02")))
		require.NoError(t, err, c.kind)
		require.Len(t, f.Records(), 2)
		for i, want := range []string{"PROD-01", "PROD-02"} {
			rec := f.Records()[i]
			assert.Equal(t, []Item{Str(want), Str(c.status)}, rec.Items)
			assert.Contains(t, def.Fields[1].Enum, c.status)
		}
	}
}

func TestGenerate_SectionOrder(t *testing.T) {
	g := NewGenerator(UnitsMetric)
	f, err := g.Generate(request(testSnapshot(t), types.IntentShutWell,
		ent(types.EntityWellName, "PROD-01"),
		ent(types.EntityWellName, "PROD-03"),
		ent(types.EntityDate, "2027-03-15")))
	require.NoError(t, err)
	assert.Equal(t, []string{"DATES", "WELOPEN"}, f.Keywords())
	assert.Equal(t, "SHUT_WELL PROD-01 PROD-03", f.Header())
	assert.Equal(t, []Item{Int(15), Str("MAR"), Int(2027)}, f.Records()[0].Items)

	last := SectionRunspec
	for _, r := range f.Records() {
		s, ok := r.Section()
		require.True(t, ok)
		assert.GreaterOrEqual(t, s, last)
		last = s
	}
}

func TestGenerate_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		sys      UnitSystem
		kind     types.IntentKind
		entities []types.ExtractedEntity
	}{
		{"set rate", UnitsMetric, types.IntentSetRate, []types.ExtractedEntity{
			ent(types.EntityWellName, "PROD-01"), ent(types.EntityRateValue, "500"), ent(types.EntityRateUnit, "bbl/day"),
		}},
		{"gas rate on two wells with date", UnitsMetric, types.IntentSetRate, []types.ExtractedEntity{
			ent(types.EntityWellName, "PROD-01"), ent(types.EntityWellName, "prod-02"),
			ent(types.EntityRateValue, "10"), ent(types.EntityRateUnit, "mmscf/day"),
			ent(types.EntityPhase, "GAS"), ent(types.EntityDate, "2027-01-01"),
		}},
		{"injector rate in field units", UnitsField, types.IntentSetRate, []types.ExtractedEntity{
			ent(types.EntityWellName, "INJ-01"), ent(types.EntityRateValue, "800"), ent(types.EntityRateUnit, "sm3/day"),
		}},
		{"bhp", UnitsMetric, types.IntentSetBHP, []types.ExtractedEntity{
			ent(types.EntityWellName, "PROD-02"), ent(types.EntityPressureValue, "2000"), ent(types.EntityPressureUnit, "psi"),
		}},
		{"injector bhp", UnitsField, types.IntentSetBHP, []types.ExtractedEntity{
			ent(types.EntityWellName, "INJ-01"), ent(types.EntityPressureValue, "300"), ent(types.EntityPressureUnit, "bar"),
		}},
		{"shut", UnitsMetric, types.IntentShutWell, []types.ExtractedEntity{
			ent(types.EntityWellName, "PROD-01"), ent(types.EntityWellName, "PROD-02"),
		}},
		{"open with date", UnitsMetric, types.IntentOpenWell, []types.ExtractedEntity{
			ent(types.EntityWellName, "PROD-03"), ent(types.EntityDate, "2026-12-31"),
		}},
		{"add well", UnitsMetric, types.IntentAddWell, []types.ExtractedEntity{
			ent(types.EntityWellName, "PROD-09"), ent(types.EntityGroupName, "NORTH"),
			ent(types.EntityGridLocation, "3,4,1"), ent(types.EntityPhase, "WAT"),
		}},
		{"add group", UnitsMetric, types.IntentAddGroup, []types.ExtractedEntity{
			ent(types.EntityGroupName, "EAST"), ent(types.EntityGroupName, "NORTH"),
			ent(types.EntityWellName, "PROD-01"), ent(types.EntityWellName, "PROD-02"),
		}},
		{"add group under field", UnitsMetric, types.IntentAddGroup, []types.ExtractedEntity{
			ent(types.EntityGroupName, "WEST"),
		}},
		{"group rate", UnitsMetric, types.IntentSetGroupRate, []types.ExtractedEntity{
			ent(types.EntityGroupName, "NORTH"), ent(types.EntityRateValue, "1000"), ent(types.EntityRateUnit, "sm3/day"),
			ent(types.EntityPhase, "LIQ"),
		}},
		{"field limit", UnitsMetric, types.IntentSetFieldLimit, []types.ExtractedEntity{
			ent(types.EntityRateValue, "20000"), ent(types.EntityRateUnit, "bbl/day"),
		}},
		{"group report", UnitsMetric, types.IntentGetGroupProduction, []types.ExtractedEntity{
			ent(types.EntityGroupName, "NORTH"), ent(types.EntityGroupName, "SOUTH"),
		}},
		{"gas report", UnitsMetric, types.IntentGetGroupProduction, []types.ExtractedEntity{
			ent(types.EntityGroupName, "SOUTH"), ent(types.EntityPhase, "GAS"),
		}},
		{"liquid report", UnitsMetric, types.IntentGetGroupProduction, []types.ExtractedEntity{
			ent(types.EntityGroupName, "NORTH"), ent(types.EntityPhase, "LIQ"),
		}},
		{"run", UnitsMetric, types.IntentRunSimulation, nil},
	}
	snap := testSnapshot(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.sys)
			first, err := g.Generate(request(snap, tt.kind, tt.entities...))
			require.NoError(t, err)
			text := Render(first)

			parsed, err := Parse(text)
			require.NoError(t, err)
			if diff := cmp.Diff(first, parsed, fragmentCmp); diff != "" {
				t.Fatalf("parse mismatch (-want +got):\n%s", diff)
			}

			kind, entities, err := g.Recover(parsed)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)

			second, err := g.Generate(request(snap, kind, entities...))
			require.NoError(t, err)
			assert.Equal(t, text, Render(second))
		})
	}
}

func TestRecover_Errors(t *testing.T) {
	g := NewGenerator(UnitsMetric)
	_, _, err := g.Recover(NewFragment("", nil))
	assert.Error(t, err)
	_, _, err = g.Recover(NewFragment("DELETE_FIELD", nil))
	assert.True(t, errors.Is(err, ErrNoTemplate))
}
