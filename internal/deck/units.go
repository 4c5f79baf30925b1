package deck

import (
	"fmt"
	"strings"
)

// UnitSystem is the unit convention of the target deck.
type UnitSystem string

const (
	UnitsMetric UnitSystem = "METRIC"
	UnitsField  UnitSystem = "FIELD"
)

// ParseUnitSystem accepts METRIC or FIELD in any case.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch UnitSystem(strings.ToUpper(strings.TrimSpace(s))) {
	case UnitsMetric, "":
		return UnitsMetric, nil
	case UnitsField:
		return UnitsField, nil
	default:
		return "", fmt.Errorf("unknown unit system %q", s)
	}
}

const (
	bblToM3     = 0.158987294928
	mscfToSm3   = 28.316846592
	psiToBar    = 0.0689475729
	kpaToBar    = 0.01
	scfToSm3    = mscfToSm3 / 1000
	mmscfToSm3  = mscfToSm3 * 1000
	unitSm3Day  = "sm3/day"
	unitBblDay  = "bbl/day"
	unitMscfDay = "mscf/day"
)

// liquid and gas rate units to standard cubic metres per day
var (
	liquidToSI = map[string]float64{unitBblDay: bblToM3, "stb/day": bblToM3, unitSm3Day: 1}
	gasToSI    = map[string]float64{unitSm3Day: 1, "scf/day": scfToSm3, unitMscfDay: mscfToSm3, "mmscf/day": mmscfToSm3}
	pressToBar = map[string]float64{"bar": 1, "psi": psiToBar, "psia": psiToBar, "kpa": kpaToBar}
)

// CanonicalUnit returns the unit a quantity is written in for a system.
func CanonicalUnit(q Quantity, sys UnitSystem) string {
	switch q {
	case QuantityLiquidRate, QuantityInjRate:
		if sys == UnitsField {
			return "stb/day"
		}
		return unitSm3Day
	case QuantityGasRate:
		if sys == UnitsField {
			return unitMscfDay
		}
		return unitSm3Day
	case QuantityPressure:
		if sys == UnitsField {
			return "psia"
		}
		return "bar"
	default:
		return ""
	}
}

// IsGasUnit reports whether a rate unit only measures gas.
func IsGasUnit(unit string) bool {
	unit = strings.ToLower(unit)
	_, gas := gasToSI[unit]
	_, liquid := liquidToSI[unit]
	return gas && !liquid
}

// Normalize converts value in unit to the canonical unit of q in sys. An
// empty unit means the value is already canonical. Units with no conversion
// path for the quantity return a *UnitError.
func Normalize(q Quantity, value float64, unit string, sys UnitSystem) (float64, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" || unit == strings.ToLower(CanonicalUnit(q, sys)) {
		return Round(value), nil
	}

	var table map[string]float64
	var fromSI float64
	switch q {
	case QuantityLiquidRate, QuantityInjRate:
		table, fromSI = liquidToSI, 1
		if sys == UnitsField {
			fromSI = 1 / bblToM3
		}
	case QuantityGasRate:
		table, fromSI = gasToSI, 1
		if sys == UnitsField {
			fromSI = 1 / mscfToSm3
		}
	case QuantityPressure:
		table, fromSI = pressToBar, 1
		if sys == UnitsField {
			fromSI = 1 / psiToBar
		}
	default:
		return 0, &UnitError{Quantity: q, Unit: unit, System: sys}
	}

	factor, ok := table[unit]
	if !ok {
		return 0, &UnitError{Quantity: q, Unit: unit, System: sys}
	}
	return Round(value * factor * fromSI), nil
}
