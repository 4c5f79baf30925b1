package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("simulator and field model", func(t *testing.T) {
		t.Setenv("DECKPILOT_SIMULATOR", "opm")
		t.Setenv("DECKPILOT_SIMULATOR_BINARY", "/opt/opm/bin/flow")
		t.Setenv("DECKPILOT_BASE_DECK", "BASE.DATA")
		t.Setenv("DECKPILOT_FIELD_MODEL", "/data/field.yaml")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "opm", cfg.Simulator.Backend)
		assert.Equal(t, "/opt/opm/bin/flow", cfg.Simulator.Binary)
		assert.Equal(t, "BASE.DATA", cfg.Simulator.BaseDeck)
		assert.Equal(t, "/data/field.yaml", cfg.FieldModel.Path)
	})

	t.Run("unit system is upper-cased", func(t *testing.T) {
		t.Setenv("DECKPILOT_UNIT_SYSTEM", "field")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "FIELD", cfg.Grammar.UnitSystem)
	})

	t.Run("governance", func(t *testing.T) {
		t.Setenv("DECKPILOT_POLICY", "policy.yaml")
		t.Setenv("DECKPILOT_APPROVAL_CHANNEL", "none")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "policy.yaml", cfg.Governance.PolicyPath)
		assert.Equal(t, "none", cfg.Governance.ApprovalChannel)
	})

	t.Run("threshold parses floats", func(t *testing.T) {
		t.Setenv("DECKPILOT_INTENT_THRESHOLD", "0.7")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.InDelta(t, 0.7, cfg.Perception.IntentThreshold, 1e-9)
	})

	t.Run("bad threshold is ignored", func(t *testing.T) {
		t.Setenv("DECKPILOT_INTENT_THRESHOLD", "high")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.InDelta(t, DefaultConfig().Perception.IntentThreshold, cfg.Perception.IntentThreshold, 1e-9)
	})

	t.Run("empty values leave config alone", func(t *testing.T) {
		t.Setenv("DECKPILOT_DB", "")
		t.Setenv("DECKPILOT_LOG_LEVEL", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "deckpilot.db", cfg.Store.Path)
		assert.Equal(t, "info", cfg.Logging.Level)
	})
}
