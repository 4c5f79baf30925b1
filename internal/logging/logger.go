// Package logging provides config-driven categorized logging for deckpilot.
// Every pipeline stage logs through its own named zap logger so that a single
// category (perception, governance, simulator...) can be silenced or raised to
// debug without touching the others.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategorySession Category = "session" // Conversation turns, orchestrator state machine
	CategoryStore   Category = "store"   // Audit store operations
	CategoryWorld   Category = "world"   // Field model snapshots and refresh

	// Pipeline stages
	CategoryPerception   Category = "perception"   // Intent recognition
	CategoryExtraction   Category = "extraction"   // Entity extraction
	CategoryAssets       Category = "assets"       // Asset validation
	CategoryGenerator    Category = "generator"    // Deck syntax generation
	CategoryVerification Category = "verification" // Deck validation
	CategoryGovernance   Category = "governance"   // Policy gate and approvals
	CategorySimulator    Category = "simulator"    // Simulator adapters

	CategoryAudit Category = "audit" // Structured audit events
)

// Options mirrors config.LoggingConfig to avoid circular imports.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // optional output path; stderr when empty
	DebugMode  bool            // forces debug level on every enabled category
	Categories map[string]bool // per-category toggles; absent means enabled
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize builds the process logger from options. Safe to call again;
// cached category loggers are discarded.
func Initialize(o Options) error {
	level, err := parseLevel(o.Level)
	if err != nil {
		return err
	}
	if o.DebugMode {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Sampling = nil
	switch strings.ToLower(o.Format) {
	case "", "console", "text":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	case "json":
		zcfg.Encoding = "json"
	default:
		return fmt.Errorf("unknown log format %q", o.Format)
	}
	if o.File != "" {
		zcfg.OutputPaths = []string{o.File}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	old := base
	base = logger
	opts = o
	loggers = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()
	_ = old.Sync()

	Get(CategoryBoot).Debugf("logging initialized: level=%s format=%s debug=%v", level, zcfg.Encoding, o.DebugMode)
	return nil
}

// Use installs an already-built zap logger (CLI, tests).
func Use(logger *zap.Logger, o Options) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = logger
	opts = o
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Base returns the root zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = Base().Sync()
}

// IsCategoryEnabled returns whether logging is enabled for a category.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns the logger for a category. Disabled categories get a no-op logger.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	var l *zap.SugaredLogger
	if categoryEnabledLocked(category) {
		l = base.Named(string(category)).Sugar()
	} else {
		l = zap.NewNop().Sugar()
	}
	loggers[category] = l
	return l
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

func Session(format string, args ...interface{}) {
	Get(CategorySession).Infof(format, args...)
}

func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debugf(format, args...)
}

func Perception(format string, args ...interface{}) {
	Get(CategoryPerception).Infof(format, args...)
}

func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debugf(format, args...)
}

func Governance(format string, args ...interface{}) {
	Get(CategoryGovernance).Infof(format, args...)
}

func Simulator(format string, args ...interface{}) {
	Get(CategorySimulator).Infof(format, args...)
}

func World(format string, args ...interface{}) {
	Get(CategoryWorld).Infof(format, args...)
}
