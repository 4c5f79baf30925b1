package deck

import (
	"errors"
	"fmt"

	"deckpilot/internal/types"
)

var (
	// ErrMissingRequiredEntity is returned when a template role has no value.
	ErrMissingRequiredEntity = errors.New("missing required entity")
	// ErrUnitConversion is returned when a unit has no defined conversion.
	ErrUnitConversion = errors.New("undefined unit conversion")
	// ErrUnknownKeyword is returned for keywords outside the grammar.
	ErrUnknownKeyword = errors.New("unknown keyword")
	// ErrNoTemplate is returned for intents that do not produce deck records.
	ErrNoTemplate = errors.New("no template for intent")
)

// MissingRoleError names the role a template could not fill.
type MissingRoleError struct {
	Intent types.IntentKind
	Role   types.EntityType
}

func (e *MissingRoleError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Intent, e.Role)
}

func (e *MissingRoleError) Unwrap() error { return ErrMissingRequiredEntity }

// UnitError reports a unit that cannot be converted for a quantity.
type UnitError struct {
	Quantity Quantity
	Unit     string
	Phase    string
	System   UnitSystem
}

func (e *UnitError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("cannot convert %s %s for phase %s to %s units", e.Quantity, e.Unit, e.Phase, e.System)
	}
	return fmt.Sprintf("cannot convert %s %s to %s units", e.Quantity, e.Unit, e.System)
}

func (e *UnitError) Unwrap() error { return ErrUnitConversion }
