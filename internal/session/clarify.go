package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"deckpilot/internal/deck"
	"deckpilot/internal/types"
)

// parkedContext is a turn suspended by a Clarify, waiting for its answer.
type parkedContext struct {
	text     string
	intent   types.Intent
	entities []types.ExtractedEntity
	// expected roles steer how a bare answer is read
	expected []types.EntityType
	// unresolved marks the parked entities an answer may replace
	unresolved map[types.Span]bool
	items      []string
	parkedAt   time.Time
}

// parking holds at most one parked context per conversation. Entries expire
// after ttl; the least recently parked conversation is evicted at capacity.
type parking struct {
	lru *expirable.LRU[string, *parkedContext]
}

func newParking(size int, ttl time.Duration) *parking {
	if size <= 0 {
		size = 1024
	}
	return &parking{lru: expirable.NewLRU[string, *parkedContext](size, nil, ttl)}
}

func (p *parking) park(convID string, pc *parkedContext) { p.lru.Add(convID, pc) }

func (p *parking) take(convID string) (*parkedContext, bool) {
	pc, ok := p.lru.Get(convID)
	if ok {
		p.lru.Remove(convID)
	}
	return pc, ok
}

func (p *parking) has(convID string) bool { return p.lru.Contains(convID) }

func (p *parking) drop(convID string) bool { return p.lru.Remove(convID) }

func (p *parking) len() int { return p.lru.Len() }

// startsFresh reports whether an answer to an open clarification is really a
// new, complete request for a different intent.
func startsFresh(pc *parkedContext, intent types.Intent, entities []types.ExtractedEntity) bool {
	if intent.IsUnknown() || pc.intent.IsUnknown() || intent.Kind == pc.intent.Kind {
		return false
	}
	return len(deck.MissingRoles(intent.Kind, entities)) == 0
}

// resumedIntent keeps the parked intent unless it was never recognized.
func resumedIntent(pc *parkedContext, answer types.Intent) types.Intent {
	if pc.intent.IsUnknown() && !answer.IsUnknown() {
		return answer
	}
	return pc.intent
}

// mergeEntities folds an answer into the parked entities. When the parked
// turn marked some entities of a type as unresolved, answers of that type
// take their places in order and the resolved ones are kept; surplus answers
// are appended and unanswered marks stay for the next round. A type with no
// marks is replaced wholesale by the answer. Answer spans are shifted past
// the parked text so spans stay unique within the merged context.
func mergeEntities(parked []types.ExtractedEntity, unresolved map[types.Span]bool, answer []types.ExtractedEntity, offset int) []types.ExtractedEntity {
	answers := make(map[types.EntityType][]types.ExtractedEntity)
	var order []types.EntityType
	for _, e := range answer {
		e.Span = types.Span{Start: e.Span.Start + offset, End: e.Span.End + offset}
		if _, ok := answers[e.Name]; !ok {
			order = append(order, e.Name)
		}
		answers[e.Name] = append(answers[e.Name], e)
	}
	marked := make(map[types.EntityType]bool)
	for _, e := range parked {
		if unresolved[e.Span] {
			marked[e.Name] = true
		}
	}

	var out []types.ExtractedEntity
	for _, e := range parked {
		queue, answered := answers[e.Name]
		switch {
		case !answered:
			out = append(out, e)
		case !marked[e.Name]:
			// replaced wholesale below
		case !unresolved[e.Span]:
			out = append(out, e)
		case len(queue) > 0:
			out = append(out, queue[0])
			answers[e.Name] = queue[1:]
		default:
			out = append(out, e)
		}
	}
	for _, name := range order {
		out = append(out, answers[name]...)
	}
	return out
}

// expectedFromQuantities maps out-of-range fields to the roles that feed
// them, so a bare corrected number can answer the clarification.
func expectedFromQuantities(qs []deck.Quantity) []types.EntityType {
	seen := make(map[types.EntityType]bool)
	var out []types.EntityType
	add := func(t types.EntityType) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, q := range qs {
		switch q {
		case deck.QuantityLiquidRate, deck.QuantityGasRate, deck.QuantityInjRate:
			add(types.EntityRateValue)
		case deck.QuantityPressure:
			add(types.EntityPressureValue)
		case deck.QuantityYear, deck.QuantityDay:
			add(types.EntityDate)
		}
	}
	return out
}
