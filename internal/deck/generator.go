package deck

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// =============================================================================
// TEMPLATES
// =============================================================================

// Template declares the entity roles an intent needs. Declares lists
// identifier roles whose first value names a new asset rather than an
// existing one.
type Template struct {
	Required []types.EntityType
	Optional []types.EntityType
	Declares []types.EntityType
}

var templates = map[types.IntentKind]Template{
	types.IntentSetRate: {
		Required: []types.EntityType{types.EntityWellName, types.EntityRateValue},
		Optional: []types.EntityType{types.EntityRateUnit, types.EntityPhase, types.EntityDate},
	},
	types.IntentSetBHP: {
		Required: []types.EntityType{types.EntityWellName, types.EntityPressureValue},
		Optional: []types.EntityType{types.EntityPressureUnit, types.EntityDate},
	},
	types.IntentShutWell: {
		Required: []types.EntityType{types.EntityWellName},
		Optional: []types.EntityType{types.EntityDate},
	},
	types.IntentOpenWell: {
		Required: []types.EntityType{types.EntityWellName},
		Optional: []types.EntityType{types.EntityDate},
	},
	types.IntentAddWell: {
		Required: []types.EntityType{types.EntityWellName, types.EntityGroupName, types.EntityGridLocation},
		Optional: []types.EntityType{types.EntityPhase, types.EntityDate},
		Declares: []types.EntityType{types.EntityWellName},
	},
	types.IntentAddGroup: {
		Required: []types.EntityType{types.EntityGroupName},
		Optional: []types.EntityType{types.EntityWellName, types.EntityDate},
		Declares: []types.EntityType{types.EntityGroupName},
	},
	types.IntentSetGroupRate: {
		Required: []types.EntityType{types.EntityGroupName, types.EntityRateValue},
		Optional: []types.EntityType{types.EntityRateUnit, types.EntityPhase, types.EntityDate},
	},
	types.IntentSetFieldLimit: {
		Required: []types.EntityType{types.EntityRateValue},
		Optional: []types.EntityType{types.EntityRateUnit, types.EntityPhase, types.EntityDate},
	},
	types.IntentGetGroupProduction: {
		Required: []types.EntityType{types.EntityGroupName},
		Optional: []types.EntityType{types.EntityPhase},
	},
	types.IntentRunSimulation: {},
}

// TemplateFor returns the template of an intent.
func TemplateFor(kind types.IntentKind) (Template, bool) {
	t, ok := templates[kind]
	return t, ok
}

// DeclaresRole reports whether the first value of role names a new asset.
func (t Template) DeclaresRole(role types.EntityType) bool {
	for _, r := range t.Declares {
		if r == role {
			return true
		}
	}
	return false
}

// MissingRoles lists required roles with no extracted entity, in template order.
func MissingRoles(kind types.IntentKind, entities []types.ExtractedEntity) []types.EntityType {
	t, ok := templates[kind]
	if !ok {
		return nil
	}
	var missing []types.EntityType
	for _, role := range t.Required {
		if _, found := types.FirstOf(entities, role); !found {
			missing = append(missing, role)
		}
	}
	return missing
}

// =============================================================================
// GENERATOR
// =============================================================================

// Request is everything generation reads: the intent, the extracted entities
// and the assets resolved for them.
type Request struct {
	Intent   types.Intent
	Entities []types.ExtractedEntity
	Assets   []types.ValidatedAsset
}

// resolved returns the resolved assets of a role in order of appearance.
func (r Request) resolved(role types.EntityType) []types.ValidatedAsset {
	var out []types.ValidatedAsset
	for _, a := range r.Assets {
		if a.Entity.Name == role && a.Resolved() {
			out = append(out, a)
		}
	}
	return out
}

func (r Request) value(role types.EntityType) (string, bool) {
	e, ok := types.FirstOf(r.Entities, role)
	return e.Value, ok
}

// Generator maps intents to deck fragments in one unit system.
type Generator struct {
	System UnitSystem
}

// NewGenerator creates a generator for a unit system.
func NewGenerator(sys UnitSystem) *Generator {
	if sys == "" {
		sys = UnitsMetric
	}
	return &Generator{System: sys}
}

// Generate builds the fragment for a request. The result depends only on the
// request, so generating twice yields identical fragments.
func (g *Generator) Generate(req Request) (Fragment, error) {
	kind := req.Intent.Kind
	t, ok := templates[kind]
	if !ok {
		return Fragment{}, fmt.Errorf("%w %s", ErrNoTemplate, kind)
	}
	for _, role := range t.Required {
		if role.IsIdentifier() {
			if len(req.resolved(role)) == 0 {
				return Fragment{}, &MissingRoleError{Intent: kind, Role: role}
			}
			continue
		}
		if _, ok := req.value(role); !ok {
			return Fragment{}, &MissingRoleError{Intent: kind, Role: role}
		}
	}

	var (
		records []Record
		targets []string
		err     error
	)
	switch kind {
	case types.IntentSetRate:
		records, targets, err = g.wellRate(req)
	case types.IntentSetBHP:
		records, targets, err = g.wellPressure(req)
	case types.IntentShutWell, types.IntentOpenWell:
		records, targets = wellStatusRecords(req)
	case types.IntentAddWell:
		records, targets, err = addWell(req)
	case types.IntentAddGroup:
		records, targets, err = addGroup(req)
	case types.IntentSetGroupRate, types.IntentSetFieldLimit:
		records, targets, err = g.groupRate(req)
	case types.IntentGetGroupProduction:
		records, targets = groupReport(req)
	case types.IntentRunSimulation:
	}
	if err != nil {
		return Fragment{}, err
	}

	if kind != types.IntentGetGroupProduction {
		if date, ok := req.value(types.EntityDate); ok {
			rec, err := datesRecord(date)
			if err != nil {
				return Fragment{}, err
			}
			records = append([]Record{rec}, records...)
		}
	}
	sortBySection(records)

	header := strings.TrimSpace(string(kind) + " " + strings.Join(targets, " "))
	logging.Get(logging.CategoryGenerator).Debugf("%s: %d records", header, len(records))
	return NewFragment(header, records), nil
}

// =============================================================================
// PER-INTENT RECORDS
// =============================================================================

var (
	prodControlByPhase = map[string]string{"OIL": "ORAT", "WAT": "WRAT", "GAS": "GRAT", "LIQ": "LRAT"}
	injTypeByPhase     = map[string]string{"OIL": "OIL", "WAT": "WATER", "GAS": "GAS", "LIQ": "WATER"}
	specPhaseByPhase   = map[string]string{"OIL": "OIL", "WAT": "WATER", "GAS": "GAS", "LIQ": "LIQ"}
)

// ratePhase picks the phase of a rate request: an explicit phase, then a
// gas-only unit, then the asset's own phase, then oil.
func ratePhase(req Request, assetPhase string) string {
	if p, ok := req.value(types.EntityPhase); ok {
		return p
	}
	if u, ok := req.value(types.EntityRateUnit); ok && IsGasUnit(u) {
		return "GAS"
	}
	if assetPhase != "" {
		return strings.ToUpper(assetPhase)
	}
	return "OIL"
}

func rateQuantity(phase string) Quantity {
	if phase == "GAS" {
		return QuantityGasRate
	}
	return QuantityLiquidRate
}

func (g *Generator) normalizeRate(req Request, phase string) (float64, string, error) {
	raw, _ := req.value(types.EntityRateValue)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "", fmt.Errorf("rate value %q: %w", raw, err)
	}
	unit, ok := req.value(types.EntityRateUnit)
	if !ok {
		logging.Get(logging.CategoryGenerator).Debugf("rate %s has no unit, assuming %s", raw, CanonicalUnit(rateQuantity(phase), g.System))
	}
	q := rateQuantity(phase)
	out, err := Normalize(q, v, unit, g.System)
	if err != nil {
		var ue *UnitError
		if errors.As(err, &ue) {
			ue.Phase = phase
		}
		return 0, "", err
	}
	return out, CanonicalUnit(q, g.System), nil
}

func (g *Generator) wellRate(req Request) ([]Record, []string, error) {
	var out []Record
	var targets []string
	for _, w := range req.resolved(types.EntityWellName) {
		phase := ratePhase(req, w.Attributes["phase"])
		rate, unit, err := g.normalizeRate(req, phase)
		if err != nil {
			return nil, nil, err
		}
		if isInjector(w) {
			typ := injTypeByPhase[phase]
			rec := NewRecord("WCONINJE", Str(w.ResolvedID), Str(typ), Str("OPEN"), Str("RATE"), Float(rate)).
				WithComment("%s %s RATE %s %s", w.ResolvedID, typ, FormatFloat(rate), unit)
			out = append(out, rec)
		} else {
			control := prodControlByPhase[phase]
			if control == "" {
				return nil, nil, fmt.Errorf("no production control for phase %q", phase)
			}
			items := []Item{Str(w.ResolvedID), Str("OPEN"), Str(control)}
			items = append(items, rateColumns(control, rate)...)
			rec := NewRecord("WCONPROD", items...).
				WithComment("%s %s %s %s", w.ResolvedID, control, FormatFloat(rate), unit)
			out = append(out, rec)
		}
		targets = append(targets, w.ResolvedID)
	}
	return out, targets, nil
}

// rateColumns places rate in the column of control among ORAT, WRAT, GRAT,
// LRAT, defaulting the columns before it. Trailing columns are omitted.
func rateColumns(control string, rate float64) []Item {
	order := []string{"ORAT", "WRAT", "GRAT", "LRAT"}
	var items []Item
	for _, c := range order {
		if c == control {
			return append(items, Float(rate))
		}
		items = append(items, Default())
	}
	return items
}

func (g *Generator) wellPressure(req Request) ([]Record, []string, error) {
	raw, _ := req.value(types.EntityPressureValue)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("pressure value %q: %w", raw, err)
	}
	unit, _ := req.value(types.EntityPressureUnit)
	bhp, err := Normalize(QuantityPressure, v, unit, g.System)
	if err != nil {
		return nil, nil, err
	}
	canonical := CanonicalUnit(QuantityPressure, g.System)

	var out []Record
	var targets []string
	for _, w := range req.resolved(types.EntityWellName) {
		var rec Record
		if isInjector(w) {
			typ := injTypeByPhase[strings.ToUpper(w.Attributes["phase"])]
			if typ == "" {
				typ = "WATER"
			}
			rec = NewRecord("WCONINJE", Str(w.ResolvedID), Str(typ), Str("OPEN"), Str("BHP"),
				Default(), Default(), Float(bhp))
		} else {
			rec = NewRecord("WCONPROD", Str(w.ResolvedID), Str("OPEN"), Str("BHP"),
				Default(), Default(), Default(), Default(), Default(), Float(bhp))
		}
		out = append(out, rec.WithComment("%s BHP %s %s", w.ResolvedID, FormatFloat(bhp), canonical))
		targets = append(targets, w.ResolvedID)
	}
	return out, targets, nil
}

func wellStatusRecords(req Request) ([]Record, []string) {
	status := "OPEN"
	if req.Intent.Kind == types.IntentShutWell {
		status = "SHUT"
	}
	var out []Record
	var targets []string
	for _, w := range req.resolved(types.EntityWellName) {
		out = append(out, NewRecord("WELOPEN", Str(w.ResolvedID), Str(status)))
		targets = append(targets, w.ResolvedID)
	}
	return out, targets
}

func addWell(req Request) ([]Record, []string, error) {
	well := req.resolved(types.EntityWellName)[0]
	group := req.resolved(types.EntityGroupName)[0]
	loc, _ := req.value(types.EntityGridLocation)
	ij, err := parseIJ(loc)
	if err != nil {
		return nil, nil, err
	}
	phase := "OIL"
	if p, ok := req.value(types.EntityPhase); ok {
		phase = p
	}
	rec := NewRecord("WELSPECS", Str(well.ResolvedID), Str(group.ResolvedID),
		Int(int64(ij[0])), Int(int64(ij[1])), Default(), Str(specPhaseByPhase[phase]))
	return []Record{rec}, []string{well.ResolvedID}, nil
}

func addGroup(req Request) ([]Record, []string, error) {
	groups := req.resolved(types.EntityGroupName)
	child := groups[0].ResolvedID
	parent := "FIELD"
	if len(groups) > 1 {
		parent = groups[1].ResolvedID
	}
	out := []Record{NewRecord("GRUPTREE", Str(child), Str(parent))}
	for _, w := range req.resolved(types.EntityWellName) {
		i, errI := strconv.Atoi(w.Attributes["i"])
		j, errJ := strconv.Atoi(w.Attributes["j"])
		if errI != nil || errJ != nil {
			return nil, nil, fmt.Errorf("well %s has no grid location", w.ResolvedID)
		}
		phase := specPhaseByPhase[strings.ToUpper(w.Attributes["phase"])]
		if phase == "" {
			phase = "OIL"
		}
		out = append(out, NewRecord("WELSPECS", Str(w.ResolvedID), Str(child),
			Int(int64(i)), Int(int64(j)), Default(), Str(phase)))
	}
	return out, []string{child}, nil
}

func (g *Generator) groupRate(req Request) ([]Record, []string, error) {
	phase := ratePhase(req, "")
	rate, unit, err := g.normalizeRate(req, phase)
	if err != nil {
		return nil, nil, err
	}
	control := prodControlByPhase[phase]
	if control == "" {
		return nil, nil, fmt.Errorf("no group control for phase %q", phase)
	}

	names := []string{"FIELD"}
	if req.Intent.Kind == types.IntentSetGroupRate {
		names = nil
		for _, a := range req.resolved(types.EntityGroupName) {
			names = append(names, a.ResolvedID)
		}
	}
	var out []Record
	for _, name := range names {
		items := append([]Item{Str(name), Str(control)}, rateColumns(control, rate)...)
		out = append(out, NewRecord("GCONPROD", items...).
			WithComment("%s %s %s %s", name, control, FormatFloat(rate), unit))
	}
	return out, names, nil
}

var reportByPhase = map[string][]string{
	"OIL": {"GOPR"},
	"GAS": {"GGPR"},
	"WAT": {"GWPR"},
	"LIQ": {"GOPR", "GWPR"},
	"":    {"GOPR", "GGPR", "GWPR"},
}

func groupReport(req Request) ([]Record, []string) {
	var names []string
	var items []Item
	for _, a := range req.resolved(types.EntityGroupName) {
		names = append(names, a.ResolvedID)
		items = append(items, Str(a.ResolvedID))
	}
	phase, _ := req.value(types.EntityPhase)
	var out []Record
	for _, kw := range reportByPhase[phase] {
		out = append(out, NewRecord(kw, items...))
	}
	return out, names
}

func datesRecord(date string) (Record, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Record{}, fmt.Errorf("date %q: %w", date, err)
	}
	return NewRecord("DATES", Int(int64(t.Day())), Str(MonthName(int(t.Month()))), Int(int64(t.Year()))), nil
}

func isInjector(a types.ValidatedAsset) bool {
	return strings.EqualFold(a.Attributes["role"], "injector")
}

func parseIJ(loc string) ([]int, error) {
	parts := strings.Split(loc, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("grid location %q needs i,j", loc)
	}
	out := make([]int, 2)
	for k := 0; k < 2; k++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[k]))
		if err != nil {
			return nil, fmt.Errorf("grid location %q: %w", loc, err)
		}
		out[k] = n
	}
	return out, nil
}
