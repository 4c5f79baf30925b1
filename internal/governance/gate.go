// Package governance decides, per fragment, whether a change may run on its
// own, needs a human approval, or is denied. Policies are evaluated as
// Datalog rules over facts describing what the fragment touches.
package governance

import (
	"fmt"
	"sort"
	"strings"

	"deckpilot/internal/deck"
	"deckpilot/internal/logging"
	"deckpilot/internal/mangle"
	"deckpilot/internal/types"
)

const policyProgram = `
Decl record_touch(Keyword, Field).
Decl governed_keyword(Keyword).
Decl governed_field(Keyword, Field).
Decl governed_hit(Keyword).
Decl governed_field_hit(Keyword, Field).

governed_hit(K) :- record_touch(K, _), governed_keyword(K).
governed_field_hit(K, F) :- record_touch(K, F), governed_field(K, F).
`

// Gate evaluates fragments against a policy. It holds no state between
// calls: every decision is computed from the fragment and policy it is given.
type Gate struct {
	engineConfig mangle.Config
}

// NewGate creates a gate.
func NewGate() *Gate {
	return &Gate{engineConfig: mangle.DefaultConfig()}
}

// Decide computes a fresh decision. Evaluation failures deny.
func (g *Gate) Decide(f deck.Fragment, p Policy) types.GovernanceDecision {
	log := logging.Get(logging.CategoryGovernance)
	decision := types.GovernanceDecision{PolicyVersion: p.Version, MatchedTokens: []string{}}

	tokens, err := g.match(f, p)
	if err != nil {
		log.Errorf("policy %s evaluation failed: %v", p.Version, err)
		decision.Outcome = types.GovernanceDenied
		decision.Reason = "policy evaluation failed: " + err.Error()
		return decision
	}
	decision.MatchedTokens = tokens

	switch {
	case len(tokens) == 0:
		decision.Outcome = types.GovernanceAutoApproved
		decision.Reason = "no governed parameters touched"
	case p.HasChannel():
		decision.Outcome = types.GovernanceRequiresApproval
		decision.Reason = fmt.Sprintf("governed parameters %s need approval via %s", strings.Join(tokens, ", "), p.Approval.Channel)
	default:
		decision.Outcome = types.GovernanceDenied
		decision.Reason = fmt.Sprintf("governed parameters %s and no approval channel configured", strings.Join(tokens, ", "))
	}
	log.Infof("%s: %s (policy %s)", f.Header(), decision.Outcome, p.Version)
	return decision
}

// Touches lists the keyword and keyword.field tokens a fragment sets.
// Defaulted items do not count as touched.
func Touches(f deck.Fragment) []mangle.Fact {
	var facts []mangle.Fact
	for _, rec := range f.Records() {
		facts = append(facts, mangle.Fact{Predicate: "record_touch", Args: []interface{}{rec.Keyword, ""}})
		def, ok := deck.Lookup(rec.Keyword)
		if !ok {
			continue
		}
		for i, it := range rec.Items {
			if i < len(def.Fields) && !it.IsDefault() {
				facts = append(facts, mangle.Fact{Predicate: "record_touch", Args: []interface{}{rec.Keyword, def.Fields[i].Name}})
			}
		}
	}
	return facts
}

func (g *Gate) match(f deck.Fragment, p Policy) ([]string, error) {
	engine := mangle.NewEngine(g.engineConfig)
	if err := engine.LoadSchemaString(policyProgram); err != nil {
		return nil, err
	}

	facts := Touches(f)
	for _, pattern := range p.Governed {
		kws, fields, err := expand(pattern)
		if err != nil {
			return nil, err
		}
		for _, k := range kws {
			facts = append(facts, mangle.Fact{Predicate: "governed_keyword", Args: []interface{}{k}})
		}
		for _, kf := range fields {
			facts = append(facts, mangle.Fact{Predicate: "governed_field", Args: []interface{}{kf.Keyword, kf.Field}})
		}
	}
	if err := engine.AddFacts(facts); err != nil {
		return nil, err
	}
	if err := engine.Evaluate(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	hits, err := engine.GetFacts("governed_hit")
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		seen[fmt.Sprint(h.Args[0])] = true
	}
	fieldHits, err := engine.GetFacts("governed_field_hit")
	if err != nil {
		return nil, err
	}
	for _, h := range fieldHits {
		seen[fmt.Sprintf("%v.%v", h.Args[0], h.Args[1])] = true
	}

	tokens := make([]string, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens, nil
}
