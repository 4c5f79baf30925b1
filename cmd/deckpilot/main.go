// Command deckpilot turns natural-language reservoir requests into governed
// simulator input decks.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deckpilot/internal/config"
	"deckpilot/internal/logging"
	"deckpilot/internal/session"
	"deckpilot/internal/store"
	"deckpilot/internal/world"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	conversation string
	timeout      time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deckpilot",
	Short: "deckpilot - natural-language changes to simulator input decks",
	Long: `deckpilot turns a request such as "set well PROD-01 rate to 500 bbl per day"
into a validated keyword fragment of the target deck grammar.

Every request passes the same checkpoints: intent recognition, entity
extraction, asset resolution against the field model, syntax generation,
deck validation and the governance gate. Only fragments the policy allows
reach the simulator backend.

Run "deckpilot chat" for an interactive session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		opts := cfg.Logging.Options()
		if verbose {
			opts.DebugMode = true
		}
		if err := logging.Initialize(opts); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Base()
		logger.Debug("configuration loaded", zap.String("path", configPath), zap.String("backend", cfg.Simulator.Backend))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "deckpilot.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&conversation, "conversation", "", "Conversation id (default: generated)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall deadline (0 = none)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(checkDeckCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(assetsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext applies the --timeout flag.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// app holds everything a turn-running command opens.
type app struct {
	orch    *session.Orchestrator
	fields  *world.Registry
	audit   *store.AuditStore
	watcher *world.Watcher
}

func (r *app) Close() {
	if r.watcher != nil {
		r.watcher.Stop()
	}
	if r.audit != nil {
		if err := r.audit.Close(); err != nil {
			logging.Get(logging.CategoryStore).Warnf("closing audit store: %v", err)
		}
	}
}

// openFields loads the configured field model.
func openFields() (*world.Registry, error) {
	reg, err := world.LoadRegistry(cfg.FieldModel.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load field model: %w", err)
	}
	return reg, nil
}

// openRuntime wires the field model, the optional watcher and audit store,
// and the orchestrator.
func openRuntime(ctx context.Context) (*app, error) {
	rt := &app{}
	fields, err := openFields()
	if err != nil {
		return nil, err
	}
	rt.fields = fields

	if cfg.FieldModel.Watch {
		w, err := world.NewWatcher(cfg.FieldModel.Path, fields)
		if err != nil {
			return nil, fmt.Errorf("failed to watch field model: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to watch field model: %w", err)
		}
		rt.watcher = w
	}

	var recorder session.Recorder
	if cfg.Store.Path != "" {
		audit, err := store.NewAuditStore(cfg.Store.Path)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.audit = audit
		recorder = audit
	}

	orch, err := session.Build(cfg, fields, recorder)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.orch = orch
	return rt, nil
}
