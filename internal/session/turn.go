// Package session drives one conversation turn through the checkpointed
// pipeline:
//
//	Received → IntentResolved → EntitiesExtracted → AssetsValidated →
//	FragmentGenerated → FragmentValidated → GovernanceDecided → Executed
//
// ending in Completed, Clarifying or RolledBack. A Clarify parks the turn's
// context under the conversation id; the next utterance of that conversation
// is merged into it instead of starting over.
package session

import (
	"context"
	"errors"
	"time"

	"deckpilot/internal/deck"
	"deckpilot/internal/store"
	"deckpilot/internal/transparency"
	"deckpilot/internal/types"
	"deckpilot/internal/world"
)

// ErrConversationBusy is returned when a conversation already has a turn in
// flight and the new utterance is not a STOP.
var ErrConversationBusy = errors.New("conversation has a turn in flight")

// State is one node of the turn state machine.
type State string

const (
	StateReceived          State = "Received"
	StateIntentResolved    State = "IntentResolved"
	StateEntitiesExtracted State = "EntitiesExtracted"
	StateAssetsValidated   State = "AssetsValidated"
	StateFragmentGenerated State = "FragmentGenerated"
	StateFragmentValidated State = "FragmentValidated"
	StateGovernanceDecided State = "GovernanceDecided"
	StateExecuted          State = "Executed"

	// Terminal states
	StateCompleted  State = "Completed"
	StateClarifying State = "Clarifying"
	StateRolledBack State = "RolledBack"
)

// Outcome is the terminal result of a turn.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeClarifying Outcome = "clarifying"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Checkpoint is the verdict issued at one stage boundary.
type Checkpoint struct {
	State   State         `json:"state"`
	Verdict types.Verdict `json:"verdict"`
}

// TurnResult is everything a caller learns from one turn.
type TurnResult struct {
	TurnID         string
	ConversationID string
	Utterance      string

	Outcome  Outcome
	Category transparency.Category
	Reason   string
	// Pending lists what a Clarifying turn waits for.
	Pending []string
	// Resumed is set when the utterance answered a parked clarification.
	Resumed bool

	Intent      types.Intent
	Entities    []types.ExtractedEntity
	Assets      []types.ValidatedAsset
	Fragment    deck.Fragment
	DeckText    string
	Decision    *types.GovernanceDecision
	Result      *types.SimulationResult
	Trace       []State
	Checkpoints []Checkpoint

	StartedAt time.Time
	Duration  time.Duration
}

// FinalState returns the last state of the trace.
func (r TurnResult) FinalState() State {
	if len(r.Trace) == 0 {
		return ""
	}
	return r.Trace[len(r.Trace)-1]
}

// Reached reports whether the turn passed through s.
func (r TurnResult) Reached(s State) bool {
	for _, t := range r.Trace {
		if t == s {
			return true
		}
	}
	return false
}

// Record converts the result into its persisted form.
func (r TurnResult) Record() store.TurnRecord {
	rec := store.TurnRecord{
		ID:             r.TurnID,
		ConversationID: r.ConversationID,
		Utterance:      r.Utterance,
		Intent:         string(r.Intent.Kind),
		Outcome:        string(r.Outcome),
		Category:       r.Category.String(),
		Reason:         r.Reason,
		Decision:       r.Decision,
		Simulation:     r.Result,
		CreatedAt:      r.StartedAt,
	}
	if !r.Fragment.IsEmpty() {
		rec.Fragment = deck.Render(r.Fragment)
	}
	for _, s := range r.Trace {
		rec.Trace = append(rec.Trace, string(s))
	}
	for _, c := range r.Checkpoints {
		rec.Verdicts = append(rec.Verdicts, c.Verdict)
	}
	return rec
}

// Recorder persists finished turns. *store.AuditStore implements it.
type Recorder interface {
	RecordTurn(ctx context.Context, r store.TurnRecord) error
}

// FieldSource hands out the current field model snapshot.
// *world.Registry implements it.
type FieldSource interface {
	Current() *world.Snapshot
}
