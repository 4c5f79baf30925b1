package governance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpilot/internal/config"
	"deckpilot/internal/deck"
	"deckpilot/internal/types"
)

func rateFragment() deck.Fragment {
	return deck.NewFragment("SET_RATE PROD-01", []deck.Record{
		deck.NewRecord("WCONPROD", deck.Str("PROD-01"), deck.Str("OPEN"), deck.Str("ORAT"), deck.Float(79.4936)),
	})
}

func fieldLimitFragment() deck.Fragment {
	return deck.NewFragment("SET_FIELD_LIMIT FIELD", []deck.Record{
		deck.NewRecord("GCONPROD", deck.Str("FIELD"), deck.Str("ORAT"), deck.Float(3179.7459)),
	})
}

func policy(channel string, governed ...string) Policy {
	return Policy{Version: "test-1", Governed: governed, Approval: ApprovalPolicy{Channel: channel, Timeout: "1s"}}
}

func TestDecide(t *testing.T) {
	g := NewGate()
	tests := []struct {
		name    string
		frag    deck.Fragment
		policy  Policy
		outcome types.GovernanceOutcome
		tokens  []string
	}{
		{"rate change not governed", rateFragment(), policy("memory", "GCONPROD", "GCONINJE"), types.GovernanceAutoApproved, []string{}},
		{"field limit with channel", fieldLimitFragment(), policy("memory", "GCONPROD"), types.GovernanceRequiresApproval, []string{"GCONPROD"}},
		{"field limit without channel", fieldLimitFragment(), policy("", "GCONPROD"), types.GovernanceDenied, []string{"GCONPROD"}},
		{"explicit none channel", fieldLimitFragment(), policy("none", "GCONPROD"), types.GovernanceDenied, []string{"GCONPROD"}},
		{"glob keyword", fieldLimitFragment(), policy("memory", "GCON*"), types.GovernanceRequiresApproval, []string{"GCONPROD"}},
		{"field pattern touched", rateFragment(), policy("memory", "WCONPROD.ORAT"), types.GovernanceRequiresApproval, []string{"WCONPROD.ORAT"}},
		{"field pattern defaulted", rateFragment(), policy("memory", "WCONPROD.BHP"), types.GovernanceAutoApproved, []string{}},
		{"field glob", rateFragment(), policy("", "WCON*.*RAT"), types.GovernanceDenied, []string{"WCONPROD.ORAT"}},
		{"empty policy", fieldLimitFragment(), policy(""), types.GovernanceAutoApproved, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Decide(tt.frag, tt.policy)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.tokens, d.MatchedTokens)
			assert.Equal(t, "test-1", d.PolicyVersion)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

// Any fragment touching a governed pattern is denied when no channel exists.
func TestDecide_FailSafe(t *testing.T) {
	g := NewGate()
	p := policy("", "*")
	frags := []deck.Fragment{
		rateFragment(),
		fieldLimitFragment(),
		deck.NewFragment("x", []deck.Record{deck.NewRecord("GOPR", deck.Str("NORTH"))}),
		deck.NewFragment("y", []deck.Record{deck.NewRecord("DATES", deck.Int(1), deck.Str("JAN"), deck.Int(2027))}),
	}
	for _, f := range frags {
		d := g.Decide(f, p)
		assert.Equal(t, types.GovernanceDenied, d.Outcome, f.Header())
		assert.False(t, d.Outcome.MayExecute())
	}
}

func TestDecide_FreshPerFragment(t *testing.T) {
	g := NewGate()
	p := policy("memory", "GCONPROD")
	first := g.Decide(fieldLimitFragment(), p)
	second := g.Decide(rateFragment(), p)
	assert.Equal(t, types.GovernanceRequiresApproval, first.Outcome)
	assert.Equal(t, types.GovernanceAutoApproved, second.Outcome)

	p.Governed = nil
	assert.Equal(t, types.GovernanceAutoApproved, g.Decide(fieldLimitFragment(), p).Outcome)
}

func TestDecide_BadPatternDenies(t *testing.T) {
	d := NewGate().Decide(rateFragment(), policy("memory", "WCON["))
	assert.Equal(t, types.GovernanceDenied, d.Outcome)
	assert.Contains(t, d.Reason, "policy evaluation failed")
}

func TestTouches(t *testing.T) {
	var got []string
	for _, f := range Touches(rateFragment()) {
		got = append(got, f.String())
	}
	assert.Equal(t, []string{
		`record_touch("WCONPROD", "").`,
		`record_touch("WCONPROD", "WELL").`,
		`record_touch("WCONPROD", "STATUS").`,
		`record_touch("WCONPROD", "CONTROL").`,
		`record_touch("WCONPROD", "ORAT").`,
	}, got)
}

func TestPolicy(t *testing.T) {
	p := policy("memory", "gconprod", "WELOPEN.STATUS")
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"GCONPROD", "WELOPEN.STATUS"}, p.Expanded())
	assert.True(t, p.HasChannel())
	assert.Equal(t, "1s", p.ApprovalTimeout().String())

	assert.Error(t, Policy{}.Validate())
	assert.Error(t, policy("", "NOPE").Validate())
	assert.Error(t, policy("", "WCONPROD.").Validate())
	assert.Error(t, policy("", "WCONPROD.NOPE").Validate())

	p.Approval.Timeout = "soon"
	assert.Equal(t, "5m0s", p.ApprovalTimeout().String())
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Governance
	p, err := PolicyFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.PolicyVersion, p.Version)
	assert.Equal(t, []string{"GCONINJE", "GCONPROD"}, p.Expanded())

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2025.2\"\ngoverned:\n  - WCONPROD.BHP\napproval:\n  timeout: 10s\n"), 0o644))
	cfg.PolicyPath = path
	p, err = PolicyFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "2025.2", p.Version)
	assert.Equal(t, []string{"WCONPROD.BHP"}, p.Governed)
	assert.Equal(t, cfg.ApprovalChannel, p.Approval.Channel)
	assert.Equal(t, "10s", p.Approval.Timeout)

	cfg.PolicyPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = PolicyFromConfig(cfg)
	assert.Error(t, err)
}
