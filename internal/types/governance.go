package types

// GovernanceOutcome is the gate's answer for one fragment.
type GovernanceOutcome string

const (
	GovernanceAutoApproved     GovernanceOutcome = "AutoApproved"
	GovernanceRequiresApproval GovernanceOutcome = "RequiresApproval"
	GovernanceDenied           GovernanceOutcome = "Denied"
	// GovernanceApproved resolves a RequiresApproval once a human approves.
	GovernanceApproved GovernanceOutcome = "Approved"
)

// MayExecute reports whether a fragment with this outcome may reach a simulator.
func (o GovernanceOutcome) MayExecute() bool {
	return o == GovernanceAutoApproved || o == GovernanceApproved
}

// GovernanceDecision is computed fresh for every fragment.
type GovernanceDecision struct {
	Outcome       GovernanceOutcome `json:"outcome"`
	MatchedTokens []string          `json:"governed_tokens_matched"`
	PolicyVersion string            `json:"policy_version"`
	Reason        string            `json:"reason,omitempty"`
	ApprovalID    string            `json:"approval_id,omitempty"`
	// Previous holds the outcome this decision resolved, e.g. RequiresApproval.
	Previous GovernanceOutcome `json:"previous,omitempty"`
}
