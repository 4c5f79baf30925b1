package session

import (
	"fmt"
	"os"

	"deckpilot/internal/config"
	"deckpilot/internal/deck"
	"deckpilot/internal/governance"
	"deckpilot/internal/governance/approval/memory"
	"deckpilot/internal/logging"
	"deckpilot/internal/perception"
	"deckpilot/internal/simulator"
	"deckpilot/internal/verification"
	"deckpilot/internal/world"
)

// Build wires an orchestrator from configuration. recorder may be nil.
func Build(cfg *config.Config, fields FieldSource, recorder Recorder) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sys, err := deck.ParseUnitSystem(cfg.Grammar.UnitSystem)
	if err != nil {
		return nil, err
	}
	policy, err := governance.PolicyFromConfig(cfg.Governance)
	if err != nil {
		return nil, fmt.Errorf("invalid governance policy: %w", err)
	}
	adapter, err := simulator.FromConfig(cfg.Simulator)
	if err != nil {
		return nil, err
	}

	var base string
	if cfg.Simulator.BaseDeck != "" {
		data, err := os.ReadFile(cfg.Simulator.BaseDeck)
		if err != nil {
			return nil, fmt.Errorf("failed to read base deck: %w", err)
		}
		base = string(data)
	}

	deps := Dependencies{
		Recognizer: perception.NewRecognizer(cfg.Perception.IntentThreshold, nil),
		Extractor:  perception.NewExtractor(cfg.Perception.EntityMinConfidence),
		Assets:     world.NewAssetValidator(cfg.Assets.MatchThreshold, cfg.Assets.AmbiguityMargin, cfg.Assets.SuggestionFloor),
		Fields:     fields,
		Generator:  deck.NewGenerator(sys),
		Validator:  verification.NewDeckValidator(verification.LimitsFromConfig(cfg.Grammar)),
		Gate:       governance.NewGate(),
		Policy:     policy,
		Simulator:  adapter,
		Recorder:   recorder,
	}
	if policy.HasChannel() {
		deps.Approvals = memory.New()
	}

	opts := DefaultOptions()
	opts.ClarifyTTL = cfg.GetClarifyTTL()
	if cfg.Session.MaxParked > 0 {
		opts.MaxParked = cfg.Session.MaxParked
	}
	opts.SimulatorTimeout = cfg.GetSimulatorTimeout()
	opts.BaseDeck = base

	logging.Boot("pipeline ready: units=%s backend=%s policy=%s governed=%v approvals=%v",
		cfg.Grammar.UnitSystem, adapter.Name(), policy.Version, policy.Governed, deps.Approvals != nil)
	return NewOrchestrator(deps, opts), nil
}
