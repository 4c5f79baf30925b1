package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"deckpilot/internal/deck"
	"deckpilot/internal/session"
	"deckpilot/internal/transparency"
	"deckpilot/internal/types"
)

// turnView is the JSON shape of a turn printed with --json.
type turnView struct {
	Turn         string                    `json:"turn"`
	Conversation string                    `json:"conversation"`
	Outcome      string                    `json:"outcome"`
	Category     string                    `json:"category"`
	Reason       string                    `json:"reason"`
	Pending      []string                  `json:"pending,omitempty"`
	Intent       types.Intent              `json:"intent"`
	Entities     []types.ExtractedEntity   `json:"entities,omitempty"`
	Assets       []types.ValidatedAsset    `json:"assets,omitempty"`
	Fragment     string                    `json:"fragment,omitempty"`
	Decision     *types.GovernanceDecision `json:"governance,omitempty"`
	Simulation   *types.SimulationResult   `json:"simulation,omitempty"`
	Trace        []session.State           `json:"trace"`
	Checkpoints  []session.Checkpoint      `json:"checkpoints"`
}

func newTurnView(res session.TurnResult) turnView {
	v := turnView{
		Turn:         res.TurnID,
		Conversation: res.ConversationID,
		Outcome:      string(res.Outcome),
		Category:     res.Category.String(),
		Reason:       res.Reason,
		Pending:      res.Pending,
		Intent:       res.Intent,
		Entities:     res.Entities,
		Assets:       res.Assets,
		Decision:     res.Decision,
		Simulation:   res.Result,
		Trace:        res.Trace,
		Checkpoints:  res.Checkpoints,
	}
	if !res.Fragment.IsEmpty() {
		v.Fragment = deck.Render(res.Fragment)
	}
	return v
}

func printTurnJSON(w io.Writer, res session.TurnResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newTurnView(res))
}

// printTurn writes a human-readable account of one turn.
func printTurn(w io.Writer, res session.TurnResult) {
	fmt.Fprintln(w, res.Reason)
	for _, item := range res.Pending {
		fmt.Fprintf(w, "  ? %s\n", item)
	}

	if !res.Intent.IsUnknown() {
		fmt.Fprintf(w, "Intent: %s (%.2f)\n", res.Intent.Kind, res.Intent.Confidence)
	}
	if !res.Fragment.IsEmpty() {
		fmt.Fprintln(w, "Fragment:")
		for _, line := range strings.Split(strings.TrimRight(deck.Render(res.Fragment), "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if d := res.Decision; d != nil {
		fmt.Fprintf(w, "Governance: %s (policy %s)", d.Outcome, d.PolicyVersion)
		if len(d.MatchedTokens) > 0 {
			fmt.Fprintf(w, " governed: %s", strings.Join(d.MatchedTokens, ", "))
		}
		fmt.Fprintln(w)
	}
	if r := res.Result; r != nil {
		fmt.Fprintf(w, "Simulation: converged=%v wall_time=%.2fs\n", r.Converged, r.WallTime)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  ! %s\n", e)
		}
		keys := make([]string, 0, len(r.SummaryMetrics))
		for k := range r.SummaryMetrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-24s %s\n", k, deck.FormatFloat(r.SummaryMetrics[k]))
		}
	}

	if res.Outcome != session.OutcomeCompleted {
		if guide := transparency.RecoveryGuide(res.Category); len(guide) > 0 {
			fmt.Fprintln(w, "\nSuggested next steps:")
			for _, g := range guide {
				fmt.Fprintf(w, "  - %s\n", g)
			}
		}
	}
}
