package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpilot/internal/types"
)

func newTestStore(t *testing.T) *AuditStore {
	t.Helper()
	s, err := NewAuditStore(filepath.Join(t.TempDir(), "nested", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAuditStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	completed := TurnRecord{
		ID:             "t1",
		ConversationID: "c1",
		Utterance:      "set well PROD-01 rate to 500 bbl per day",
		Intent:         "SET_RATE",
		Outcome:        "completed",
		Category:       "none",
		Reason:         "[OK] simulation converged in 0.0s",
		Fragment:       "SCHEDULE\n",
		Trace:          []string{"Received", "IntentResolved", "Completed"},
		Verdicts:       []types.Verdict{types.Proceed()},
		Decision:       &types.GovernanceDecision{Outcome: types.GovernanceAutoApproved, MatchedTokens: []string{}, PolicyVersion: "2024.1"},
		Simulation:     &types.SimulationResult{Converged: true, SummaryMetrics: map[string]float64{"records": 1}},
		CreatedAt:      at,
	}
	require.NoError(t, s.RecordTurn(ctx, completed))

	clarify := TurnRecord{
		ID:             "t2",
		ConversationID: "c2",
		Utterance:      "tweak the group rate",
		Outcome:        "clarifying",
		Category:       "ambiguity",
		Verdicts:       []types.Verdict{types.Clarify("missing", "group_name")},
	}
	require.NoError(t, s.RecordTurn(ctx, clarify))

	turns, err := s.RecentTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "t2", turns[0].ID)
	assert.Nil(t, turns[0].Decision)
	assert.Nil(t, turns[0].Simulation)
	assert.Equal(t, []string{"group_name"}, turns[0].Verdicts[0].Items)

	got := turns[1]
	assert.True(t, at.Equal(got.CreatedAt))
	assert.Equal(t, completed.Trace, got.Trace)
	require.NotNil(t, got.Decision)
	assert.Equal(t, types.GovernanceAutoApproved, got.Decision.Outcome)
	assert.Equal(t, []string{}, got.Decision.MatchedTokens)
	require.NotNil(t, got.Simulation)
	assert.True(t, got.Simulation.Converged)
	assert.Equal(t, []string{}, got.Simulation.Errors)

	latest, err := s.RecentTurns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "t2", latest[0].ID)

	conv, err := s.ConversationTurns(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "t1", conv[0].ID)
}

func TestAuditStore_DeniedAfterTimeout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.RecordTurn(ctx, TurnRecord{
		ID:             "t1",
		ConversationID: "c1",
		Utterance:      "set the field production ceiling to 20000 bbl per day",
		Outcome:        "rolled_back",
		Category:       "policy",
		Decision: &types.GovernanceDecision{
			Outcome:       types.GovernanceDenied,
			MatchedTokens: []string{"GCONPROD"},
			PolicyVersion: "2024.1",
			ApprovalID:    "a1",
			Previous:      types.GovernanceRequiresApproval,
		},
	}))

	turns, err := s.RecentTurns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	d := turns[0].Decision
	require.NotNil(t, d)
	assert.Equal(t, types.GovernanceDenied, d.Outcome)
	assert.Equal(t, types.GovernanceRequiresApproval, d.Previous)
	assert.Equal(t, []string{"GCONPROD"}, d.MatchedTokens)
	assert.Equal(t, "a1", d.ApprovalID)
}

func TestAuditStore_DuplicateTurn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec := TurnRecord{ID: "dup", ConversationID: "c", Utterance: "x", Outcome: "completed", Category: "none"}
	require.NoError(t, s.RecordTurn(ctx, rec))
	assert.Error(t, s.RecordTurn(ctx, rec))
}

func TestAuditStore_Memory(t *testing.T) {
	s, err := NewAuditStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.RecordTurn(context.Background(), TurnRecord{ID: "m", ConversationID: "c", Utterance: "x", Outcome: "completed", Category: "none"}))
	turns, err := s.RecentTurns(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}
