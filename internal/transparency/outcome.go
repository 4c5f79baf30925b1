package transparency

import (
	"fmt"
	"strings"

	"deckpilot/internal/types"
)

// Category classifies a terminal outcome for user guidance.
type Category int

const (
	// CategoryNone marks a completed turn.
	CategoryNone Category = iota

	// CategoryAmbiguity covers everything answerable with a clarification.
	CategoryAmbiguity

	// CategoryStructural indicates a generator or mapping defect.
	CategoryStructural

	// CategoryPolicy indicates a governance denial.
	CategoryPolicy

	// CategoryBackend indicates a simulator failure or non-convergence.
	CategoryBackend
)

var categoryNames = []string{"none", "ambiguity", "structural", "policy", "backend"}

// Prefix returns the display prefix for this category.
func (c Category) Prefix() string {
	prefixes := []string{"[OK]", "[CLARIFY]", "[STRUCTURAL]", "[POLICY]", "[BACKEND]"}
	if int(c) >= 0 && int(c) < len(prefixes) {
		return prefixes[c]
	}
	return "[ERROR]"
}

// String returns the category name.
func (c Category) String() string {
	if int(c) >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// ParseCategory is the inverse of String.
func ParseCategory(s string) (Category, bool) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), true
		}
	}
	return CategoryNone, false
}

// Recoverable reports whether the conversation can continue by answering.
func (c Category) Recoverable() bool { return c == CategoryAmbiguity }

// Explanation is a classified outcome with remediation.
type Explanation struct {
	Category    Category
	Summary     string
	Reason      string
	Items       []string
	Remediation []string
}

// Line returns the one-line reason carried by a turn result.
func (e Explanation) Line() string {
	if len(e.Items) > 0 {
		return fmt.Sprintf("%s %s: %s", e.Category.Prefix(), e.Reason, strings.Join(e.Items, ", "))
	}
	return e.Category.Prefix() + " " + e.Reason
}

// Format returns a multi-line message with remediation.
func (e Explanation) Format() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", e.Category.Prefix(), e.Summary))
	if e.Reason != "" {
		sb.WriteString(fmt.Sprintf("Details: %s\n", e.Reason))
	}
	for _, item := range e.Items {
		sb.WriteString(fmt.Sprintf("  ? %s\n", item))
	}
	if len(e.Remediation) > 0 {
		sb.WriteString("\nSuggested next steps:\n")
		for _, r := range e.Remediation {
			sb.WriteString(fmt.Sprintf("  - %s\n", r))
		}
	}
	return sb.String()
}

// Completed explains a successful turn.
func Completed(reason string) Explanation {
	return Explanation{Category: CategoryNone, Summary: "Completed", Reason: reason}
}

// FromVerdict explains a halting checkpoint verdict. Proceed yields
// CategoryNone.
func FromVerdict(v types.Verdict) Explanation {
	switch v.Kind {
	case types.VerdictClarify:
		return Explanation{
			Category:    CategoryAmbiguity,
			Summary:     "More information needed",
			Reason:      v.Reason,
			Items:       append([]string(nil), v.Items...),
			Remediation: RecoveryGuide(CategoryAmbiguity),
		}
	case types.VerdictRollback:
		reason := v.Reason
		if v.FailedStage != "" {
			reason = v.FailedStage + ": " + v.Reason
		}
		return Explanation{
			Category:    CategoryStructural,
			Summary:     "Request could not be mapped to a valid deck",
			Reason:      reason,
			Remediation: RecoveryGuide(CategoryStructural),
		}
	default:
		return Completed(v.Reason)
	}
}

// FromDecision explains a governance decision that stops execution.
func FromDecision(d types.GovernanceDecision) Explanation {
	if d.Outcome.MayExecute() {
		return Completed(d.Reason)
	}
	return Explanation{
		Category:    CategoryPolicy,
		Summary:     "Change blocked by governance policy " + d.PolicyVersion,
		Reason:      d.Reason,
		Remediation: RecoveryGuide(CategoryPolicy),
	}
}

// FromSimulation explains a simulation result.
func FromSimulation(r types.SimulationResult) Explanation {
	if r.Converged {
		return Completed(fmt.Sprintf("simulation converged in %.1fs", r.WallTime))
	}
	reason := "simulation did not converge"
	if len(r.Errors) > 0 {
		reason += ": " + r.Errors[0]
		if len(r.Errors) > 1 {
			reason += fmt.Sprintf(" (+%d more)", len(r.Errors)-1)
		}
	}
	return Explanation{
		Category:    CategoryBackend,
		Summary:     "Simulator run failed",
		Reason:      reason,
		Remediation: RecoveryGuide(CategoryBackend),
	}
}

// RecoveryGuide returns remediation steps for a category.
func RecoveryGuide(c Category) []string {
	guides := map[Category][]string{
		CategoryAmbiguity: {
			"Answer with the missing or corrected value",
			"Name wells and groups exactly as in the field model",
			"Say stop to abandon the request",
		},
		CategoryStructural: {
			"Rephrase the request as a new utterance",
			"Check the audit log for the rejected fragment",
		},
		CategoryPolicy: {
			"Ask an approver to review pending requests",
			"Request a policy change if the parameter should not be governed",
		},
		CategoryBackend: {
			"Set simulator.keep_runs and check the run directory for the print file",
			"Increase simulator.timeout for large models",
			"Retry with the mock backend to isolate deck problems",
		},
	}
	if guide, ok := guides[c]; ok {
		return guide
	}
	return nil
}
