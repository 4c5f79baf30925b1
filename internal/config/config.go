package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all deckpilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Natural-language stages
	Perception PerceptionConfig `yaml:"perception"`

	// Asset resolution against the field model
	Assets AssetsConfig `yaml:"assets"`

	// Field model source
	FieldModel FieldModelConfig `yaml:"field_model"`

	// Deck grammar and plausibility bounds
	Grammar GrammarConfig `yaml:"grammar"`

	// Governance policy and approval channel
	Governance GovernanceConfig `yaml:"governance"`

	// Simulator backend
	Simulator SimulatorConfig `yaml:"simulator"`

	// Conversation handling
	Session SessionConfig `yaml:"session"`

	// Audit store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PerceptionConfig configures intent recognition and entity extraction.
type PerceptionConfig struct {
	IntentThreshold     float64 `yaml:"intent_threshold"`      // below this the intent is UNKNOWN_INTENT
	EntityMinConfidence float64 `yaml:"entity_min_confidence"` // entities below this are dropped
}

// AssetsConfig configures fuzzy resolution of well and group names.
type AssetsConfig struct {
	MatchThreshold  float64 `yaml:"match_threshold"`  // minimum similarity to resolve
	AmbiguityMargin float64 `yaml:"ambiguity_margin"` // top-two gap under which a match is ambiguous
	SuggestionFloor float64 `yaml:"suggestion_floor"` // minimum similarity to offer as a candidate
}

// FieldModelConfig points at the field model description.
type FieldModelConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // reload on file change
}

// GrammarConfig configures the target deck grammar.
type GrammarConfig struct {
	UnitSystem      string  `yaml:"unit_system"`       // METRIC or FIELD
	MaxRate         float64 `yaml:"max_rate"`          // canonical liquid rate units of UnitSystem
	MaxGasRate      float64 `yaml:"max_gas_rate"`      // canonical gas rate units of UnitSystem
	MaxPressure     float64 `yaml:"max_pressure"`      // canonical pressure units of UnitSystem
	MinScheduleYear int     `yaml:"min_schedule_year"` // DATES plausibility window
	MaxScheduleYear int     `yaml:"max_schedule_year"`
}

// GovernanceConfig configures the policy gate.
type GovernanceConfig struct {
	PolicyPath      string   `yaml:"policy_path"` // optional YAML policy; overrides the inline fields
	PolicyVersion   string   `yaml:"policy_version"`
	Governed        []string `yaml:"governed"`         // KEYWORD or KEYWORD.FIELD, * globs allowed
	ApprovalChannel string   `yaml:"approval_channel"` // none, memory
	ApprovalTimeout string   `yaml:"approval_timeout"`
}

// SimulatorConfig selects and configures a simulator backend.
type SimulatorConfig struct {
	Backend  string   `yaml:"backend"` // mock, opm, eclipse
	Binary   string   `yaml:"binary"`
	Args     []string `yaml:"args"`
	Timeout  string   `yaml:"timeout"`
	WorkDir  string   `yaml:"work_dir"`
	BaseDeck string   `yaml:"base_deck"` // deck the fragments are appended to
	KeepRuns bool     `yaml:"keep_runs"` // leave run directories in work_dir
}

// SessionConfig configures conversation parking.
type SessionConfig struct {
	ClarifyTTL string `yaml:"clarify_ttl"`
	MaxParked  int    `yaml:"max_parked"`
}

// StoreConfig configures the audit database.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables the audit store
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "deckpilot",
		Version: "0.4.0",

		Perception: PerceptionConfig{
			IntentThreshold:     0.45,
			EntityMinConfidence: 0.5,
		},

		Assets: AssetsConfig{
			MatchThreshold:  0.8,
			AmbiguityMargin: 0.05,
			SuggestionFloor: 0.5,
		},

		FieldModel: FieldModelConfig{
			Path:  "field.yaml",
			Watch: false,
		},

		Grammar: GrammarConfig{
			UnitSystem:      "METRIC",
			MaxRate:         metricCeilings.rate,
			MaxGasRate:      metricCeilings.gasRate,
			MaxPressure:     metricCeilings.pressure,
			MinScheduleYear: 1900,
			MaxScheduleYear: 2200,
		},

		Governance: GovernanceConfig{
			PolicyVersion:   "2024.1",
			Governed:        []string{"GCONPROD", "GCONINJE"},
			ApprovalChannel: "memory",
			ApprovalTimeout: "5m",
		},

		Simulator: SimulatorConfig{
			Backend: "mock",
			Timeout: "30m",
			WorkDir: "runs",
		},

		Session: SessionConfig{
			ClarifyTTL: "30m",
			MaxParked:  1024,
		},

		Store: StoreConfig{
			Path: "deckpilot.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

type ceilings struct{ rate, gasRate, pressure float64 }

var (
	// sm3/day, sm3/day, barsa
	metricCeilings = ceilings{rate: 50000, gasRate: 5e6, pressure: 1000}
	// stb/day, Mscf/day, psia
	fieldCeilings = ceilings{rate: 315000, gasRate: 176000, pressure: 14500}
)

// DefaultCeilings returns the plausibility ceilings of a unit system in its
// canonical units.
func DefaultCeilings(unitSystem string) (rate, gasRate, pressure float64) {
	c := metricCeilings
	if strings.EqualFold(unitSystem, "FIELD") {
		c = fieldCeilings
	}
	return c.rate, c.gasRate, c.pressure
}

// fillCeilings sets every ceiling the file left unset to the default of the
// configured unit system.
func (g *GrammarConfig) fillCeilings() {
	rate, gasRate, pressure := DefaultCeilings(g.UnitSystem)
	if g.MaxRate == 0 {
		g.MaxRate = rate
	}
	if g.MaxGasRate == 0 {
		g.MaxGasRate = gasRate
	}
	if g.MaxPressure == 0 {
		g.MaxPressure = pressure
	}
}

// Load loads configuration from a YAML file. Plausibility ceilings not set
// in the file follow the unit system.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Grammar.MaxRate, cfg.Grammar.MaxGasRate, cfg.Grammar.MaxPressure = 0, 0, 0

	// .env in the working directory is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			cfg.Grammar.fillCeilings()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()
	cfg.Grammar.fillCeilings()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DECKPILOT_FIELD_MODEL"); v != "" {
		c.FieldModel.Path = v
	}
	if v := os.Getenv("DECKPILOT_SIMULATOR"); v != "" {
		c.Simulator.Backend = v
	}
	if v := os.Getenv("DECKPILOT_SIMULATOR_BINARY"); v != "" {
		c.Simulator.Binary = v
	}
	if v := os.Getenv("DECKPILOT_BASE_DECK"); v != "" {
		c.Simulator.BaseDeck = v
	}
	if v := os.Getenv("DECKPILOT_POLICY"); v != "" {
		c.Governance.PolicyPath = v
	}
	if v := os.Getenv("DECKPILOT_APPROVAL_CHANNEL"); v != "" {
		c.Governance.ApprovalChannel = v
	}
	if v := os.Getenv("DECKPILOT_UNIT_SYSTEM"); v != "" {
		c.Grammar.UnitSystem = strings.ToUpper(v)
	}
	if v := os.Getenv("DECKPILOT_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("DECKPILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DECKPILOT_INTENT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Perception.IntentThreshold = f
		}
	}
}

// GetSimulatorTimeout returns the simulator timeout as a duration.
func (c *Config) GetSimulatorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Simulator.Timeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetApprovalTimeout returns the approval wait as a duration.
func (c *Config) GetApprovalTimeout() time.Duration {
	d, err := time.ParseDuration(c.Governance.ApprovalTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetClarifyTTL returns how long a parked clarification survives.
func (c *Config) GetClarifyTTL() time.Duration {
	d, err := time.ParseDuration(c.Session.ClarifyTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ValidBackends lists all supported simulator backends.
var ValidBackends = []string{"mock", "opm", "eclipse"}

// ValidApprovalChannels lists all supported approval channels.
var ValidApprovalChannels = []string{"none", "memory"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidBackends, c.Simulator.Backend) {
		return fmt.Errorf("invalid simulator backend: %s (valid: %v)", c.Simulator.Backend, ValidBackends)
	}
	if c.Simulator.Backend != "mock" && c.Simulator.BaseDeck == "" {
		return fmt.Errorf("simulator backend %s requires base_deck", c.Simulator.Backend)
	}
	if !contains(ValidApprovalChannels, c.Governance.ApprovalChannel) {
		return fmt.Errorf("invalid approval channel: %s (valid: %v)", c.Governance.ApprovalChannel, ValidApprovalChannels)
	}
	switch c.Grammar.UnitSystem {
	case "METRIC", "FIELD":
	default:
		return fmt.Errorf("invalid unit system: %s (valid: METRIC, FIELD)", c.Grammar.UnitSystem)
	}
	if err := checkUnit("perception.intent_threshold", c.Perception.IntentThreshold); err != nil {
		return err
	}
	if err := checkUnit("perception.entity_min_confidence", c.Perception.EntityMinConfidence); err != nil {
		return err
	}
	if err := checkUnit("assets.match_threshold", c.Assets.MatchThreshold); err != nil {
		return err
	}
	if c.Assets.SuggestionFloor > c.Assets.MatchThreshold {
		return fmt.Errorf("assets.suggestion_floor (%.2f) must not exceed match_threshold (%.2f)", c.Assets.SuggestionFloor, c.Assets.MatchThreshold)
	}
	if c.Grammar.MaxRate <= 0 || c.Grammar.MaxGasRate <= 0 || c.Grammar.MaxPressure <= 0 {
		return fmt.Errorf("grammar ceilings must be positive")
	}
	if c.Grammar.MinScheduleYear > c.Grammar.MaxScheduleYear {
		return fmt.Errorf("grammar schedule window is empty")
	}
	return nil
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0,1], got %.3f", name, v)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
