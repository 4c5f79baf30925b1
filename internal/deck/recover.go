package deck

import (
	"fmt"
	"strings"

	"deckpilot/internal/types"
)

var (
	phaseByControl  = map[string]string{"ORAT": "OIL", "WRAT": "WAT", "GRAT": "GAS", "LRAT": "LIQ"}
	phaseByInjType  = map[string]string{"OIL": "OIL", "WATER": "WAT", "GAS": "GAS"}
	phaseBySpecName = map[string]string{"OIL": "OIL", "WATER": "WAT", "GAS": "GAS", "LIQ": "LIQ"}
)

// Recover reads the intent and entities back out of a generated fragment.
// Values come back in this generator's canonical units, so feeding them
// through asset validation and Generate reproduces the fragment.
func (g *Generator) Recover(f Fragment) (types.IntentKind, []types.ExtractedEntity, error) {
	fields := strings.Fields(f.Header())
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("fragment has no header")
	}
	kind := types.IntentKind(fields[0])
	if _, ok := templates[kind]; !ok {
		return "", nil, fmt.Errorf("%w %s", ErrNoTemplate, kind)
	}

	r := &recovered{}
	for _, rec := range f.Records() {
		switch rec.Keyword {
		case "DATES":
			day, _ := rec.Item("DAY").Number()
			year, _ := rec.Item("YEAR").Number()
			month := MonthNumber(rec.Item("MONTH").Str)
			r.once(types.EntityDate, fmt.Sprintf("%04d-%02d-%02d", int(year), month, int(day)))
		case "WCONPROD":
			r.add(types.EntityWellName, rec.Item("WELL").Str)
			control := rec.Item("CONTROL").Str
			if control == "BHP" {
				r.pressure(rec.Item("BHP"), g.System)
				continue
			}
			phase := phaseByControl[control]
			r.rate(rec.Item(control), phase, g.System)
		case "WCONINJE":
			r.add(types.EntityWellName, rec.Item("WELL").Str)
			if rec.Item("CONTROL").Str == "BHP" {
				r.pressure(rec.Item("BHP"), g.System)
				continue
			}
			r.rate(rec.Item("RATE"), phaseByInjType[rec.Item("TYPE").Str], g.System)
		case "GCONPROD":
			if name := rec.Item("GROUP").Str; name != "FIELD" {
				r.add(types.EntityGroupName, name)
			}
			control := rec.Item("CONTROL").Str
			r.rate(rec.Item(control), phaseByControl[control], g.System)
		case "WELOPEN":
			r.add(types.EntityWellName, rec.Item("WELL").Str)
		case "GRUPTREE":
			r.add(types.EntityGroupName, rec.Item("CHILD").Str)
			if parent := rec.Item("PARENT").Str; parent != "FIELD" {
				r.add(types.EntityGroupName, parent)
			}
		case "WELSPECS":
			r.add(types.EntityWellName, rec.Item("WELL").Str)
			if kind == types.IntentAddWell {
				r.add(types.EntityGroupName, rec.Item("GROUP").Str)
				r.once(types.EntityGridLocation, fmt.Sprintf("%s,%s", rec.Item("I").Render(), rec.Item("J").Render()))
				r.once(types.EntityPhase, phaseBySpecName[rec.Item("PHASE").Str])
			}
		case "GOPR", "GGPR", "GWPR":
			r.reports = append(r.reports, rec.Keyword)
			if len(r.reports) == 1 {
				for _, it := range rec.Items {
					r.add(types.EntityGroupName, it.Str)
				}
			}
		}
	}

	if kind == types.IntentGetGroupProduction {
		got := strings.Join(r.reports, ",")
		for phase, kws := range reportByPhase {
			if phase != "" && strings.Join(kws, ",") == got {
				r.once(types.EntityPhase, phase)
			}
		}
	}
	return kind, r.entities, nil
}

type recovered struct {
	entities []types.ExtractedEntity
	reports  []string
}

func (r *recovered) add(role types.EntityType, value string) {
	for _, e := range r.entities {
		if e.Name == role && e.Value == value {
			return
		}
	}
	r.entities = append(r.entities, types.ExtractedEntity{Name: role, Value: value, Confidence: 1})
}

func (r *recovered) once(role types.EntityType, value string) {
	if value == "" {
		return
	}
	if _, ok := types.FirstOf(r.entities, role); ok {
		return
	}
	r.add(role, value)
}

func (r *recovered) rate(it Item, phase string, sys UnitSystem) {
	v, ok := it.Number()
	if !ok {
		return
	}
	r.once(types.EntityRateValue, FormatFloat(v))
	r.once(types.EntityRateUnit, CanonicalUnit(rateQuantity(phase), sys))
	r.once(types.EntityPhase, phase)
}

func (r *recovered) pressure(it Item, sys UnitSystem) {
	v, ok := it.Number()
	if !ok {
		return
	}
	r.once(types.EntityPressureValue, FormatFloat(v))
	r.once(types.EntityPressureUnit, CanonicalUnit(QuantityPressure, sys))
}
