package types

import (
	"fmt"
	"strings"
)

// VerdictKind tags a ValidationVerdict.
type VerdictKind string

const (
	VerdictProceed  VerdictKind = "proceed"
	VerdictClarify  VerdictKind = "clarify"
	VerdictRollback VerdictKind = "rollback"
)

// Verdict is the single outcome of a pipeline checkpoint.
// Clarify carries the missing or ambiguous items; Rollback names the failed stage.
type Verdict struct {
	Kind        VerdictKind `json:"kind"`
	Reason      string      `json:"reason,omitempty"`
	Items       []string    `json:"items,omitempty"`
	FailedStage string      `json:"failed_stage,omitempty"`
}

// Proceed is the passing verdict.
func Proceed() Verdict { return Verdict{Kind: VerdictProceed} }

// Clarify asks the caller to supply or disambiguate items.
func Clarify(reason string, items ...string) Verdict {
	return Verdict{Kind: VerdictClarify, Reason: reason, Items: append([]string(nil), items...)}
}

// Rollback abandons the in-flight context.
func Rollback(stage, reason string) Verdict {
	return Verdict{Kind: VerdictRollback, Reason: reason, FailedStage: stage}
}

func (v Verdict) IsProceed() bool  { return v.Kind == VerdictProceed }
func (v Verdict) IsClarify() bool  { return v.Kind == VerdictClarify }
func (v Verdict) IsRollback() bool { return v.Kind == VerdictRollback }

func (v Verdict) String() string {
	switch v.Kind {
	case VerdictClarify:
		return fmt.Sprintf("clarify(%s: %s)", v.Reason, strings.Join(v.Items, ", "))
	case VerdictRollback:
		return fmt.Sprintf("rollback(%s: %s)", v.FailedStage, v.Reason)
	default:
		return string(v.Kind)
	}
}
