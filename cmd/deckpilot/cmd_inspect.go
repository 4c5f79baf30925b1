package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"deckpilot/internal/deck"
	"deckpilot/internal/governance"
	"deckpilot/internal/store"
	"deckpilot/internal/types"
	"deckpilot/internal/verification"
)

// checkDeckCmd parses and validates a deck file
var checkDeckCmd = &cobra.Command{
	Use:   "check-deck [file]",
	Short: "Parse and validate a deck fragment file",
	Long: `Reads a deck fragment, checks it against the keyword grammar and the
plausibility bounds of the configuration, and reports what the governance
policy would decide for it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckDeck,
}

// policyCmd prints the effective governance policy
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the effective governance policy",
	RunE:  runPolicy,
}

// historyCmd lists audited turns
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent audited turns",
	RunE:  runHistory,
}

// assetsCmd lists the field model
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List wells and groups of the field model",
	RunE:  runAssets,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of turns to show")
}

func runCheckDeck(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	frag, err := deck.Parse(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d records in %d sections\n", frag.Len(), len(frag.Sections()))

	report := verification.NewDeckValidator(verification.LimitsFromConfig(cfg.Grammar)).Check(frag)
	for _, v := range report.Syntax {
		fmt.Fprintf(out, "  [STRUCTURAL] %s\n", v)
	}
	for _, v := range report.Plausibility {
		fmt.Fprintf(out, "  [CLARIFY] %s\n", v)
	}

	policy, err := governance.PolicyFromConfig(cfg.Governance)
	if err != nil {
		return err
	}
	d := governance.NewGate().Decide(frag, policy)
	fmt.Fprintf(out, "Governance: %s (policy %s)", d.Outcome, d.PolicyVersion)
	if len(d.MatchedTokens) > 0 {
		fmt.Fprintf(out, " governed: %s", strings.Join(d.MatchedTokens, ", "))
	}
	fmt.Fprintln(out)

	if len(report.Syntax) > 0 {
		return fmt.Errorf("%s: %d syntax violations", args[0], len(report.Syntax))
	}
	return nil
}

func runPolicy(cmd *cobra.Command, args []string) error {
	policy, err := governance.PolicyFromConfig(cfg.Governance)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(policy)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))
	fmt.Fprintf(out, "expanded: %s\n", strings.Join(policy.Expanded(), ", "))
	fmt.Fprintf(out, "approval wait: %s\n", policy.ApprovalTimeout())
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("audit store is disabled (store.path is empty)")
	}
	audit, err := store.NewAuditStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer audit.Close()

	var turns []store.TurnRecord
	if conversation != "" {
		turns, err = audit.ConversationTurns(cmd.Context(), conversation, historyLimit)
	} else {
		turns, err = audit.RecentTurns(cmd.Context(), historyLimit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(turns) == 0 {
		fmt.Fprintln(out, "No audited turns.")
		return nil
	}
	for _, t := range turns {
		fmt.Fprintf(out, "%s  %-12s %-11s %-20s %s\n",
			t.CreatedAt.Local().Format(time.DateTime), shortID(t.ConversationID), t.Outcome, t.Intent, t.Utterance)
		if t.Decision != nil {
			fmt.Fprintf(out, "    governance %s (policy %s)\n", t.Decision.Outcome, t.Decision.PolicyVersion)
		}
		if t.Outcome != "completed" {
			fmt.Fprintf(out, "    %s\n", t.Reason)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func runAssets(cmd *cobra.Command, args []string) error {
	fields, err := openFields()
	if err != nil {
		return err
	}
	snap := fields.Current()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Field %s (version %d, grid %s)\n", snap.Field(), snap.Version(), snap.Bounds())

	fmt.Fprintln(out, "Groups:")
	for _, name := range snap.All(types.EntityGroupName) {
		g, _ := snap.Group(name)
		parent := g.Parent
		if parent == "" {
			parent = "FIELD"
		}
		fmt.Fprintf(out, "  %-12s under %-10s wells: %s\n", name, parent, strings.Join(snap.WellsInGroup(name), ", "))
	}
	fmt.Fprintln(out, "Wells:")
	for _, name := range snap.All(types.EntityWellName) {
		w, _ := snap.Well(name)
		fmt.Fprintf(out, "  %-12s %-8s %-4s %-9s %-5s (%d,%d)\n", name, w.Group, w.Phase, w.Role, w.Status, w.I, w.J)
	}
	return nil
}
