package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deckpilot/internal/deck"
	"deckpilot/internal/governance"
	"deckpilot/internal/governance/approval"
	"deckpilot/internal/logging"
	"deckpilot/internal/perception"
	"deckpilot/internal/simulator"
	"deckpilot/internal/transparency"
	"deckpilot/internal/types"
	"deckpilot/internal/verification"
	"deckpilot/internal/world"
)

// Stage names used in Rollback verdicts.
const (
	stageIntent     = "intent_recognition"
	stageGeneration = "syntax_generation"
	stageGovernance = "governance"
	stageExecution  = "simulation"
)

// Dependencies are the pipeline stages an orchestrator drives.
type Dependencies struct {
	Recognizer *perception.Recognizer
	Extractor  *perception.Extractor
	Assets     *world.AssetValidator
	Fields     FieldSource
	Generator  *deck.Generator
	Validator  *verification.DeckValidator
	Gate       *governance.Gate
	Policy     governance.Policy
	Approvals  approval.Service // nil when the policy has no channel
	Simulator  simulator.Adapter
	Recorder   Recorder // optional
}

// Options tune conversation handling.
type Options struct {
	ClarifyTTL       time.Duration
	MaxParked        int
	SimulatorTimeout time.Duration
	BaseDeck         string
	CaseName         string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ClarifyTTL:       30 * time.Minute,
		MaxParked:        1024,
		SimulatorTimeout: 30 * time.Minute,
	}
}

// Orchestrator runs turns for many conversations. Turns of different
// conversations run concurrently; a conversation runs one turn at a time.
type Orchestrator struct {
	deps Dependencies
	opts Options

	mu       sync.Mutex
	inflight map[string]*turnHandle
	parked   *parking
}

type turnHandle struct {
	id     string
	cancel context.CancelFunc
}

// NewOrchestrator creates an orchestrator over the given stages.
func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	logging.Session("creating orchestrator (simulator=%s, policy=%s)", deps.Simulator.Name(), deps.Policy.Version)
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		inflight: make(map[string]*turnHandle),
		parked:   newParking(opts.MaxParked, opts.ClarifyTTL),
	}
}

// Approvals returns the approval service, nil when approvals are disabled.
func (o *Orchestrator) Approvals() approval.Service { return o.deps.Approvals }

// Policy returns the active governance policy.
func (o *Orchestrator) Policy() governance.Policy { return o.deps.Policy }

// Parked reports whether the conversation waits on a clarification.
func (o *Orchestrator) Parked(convID string) bool { return o.parked.has(convID) }

// Busy reports whether the conversation has a turn in flight.
func (o *Orchestrator) Busy(convID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[convID]
	return ok
}

// Abandon cancels the conversation's in-flight turn and discards any parked
// clarification. It reports whether there was anything to abandon.
func (o *Orchestrator) Abandon(convID string) bool {
	o.mu.Lock()
	h, running := o.inflight[convID]
	o.mu.Unlock()
	if running {
		h.cancel()
	}
	dropped := o.parked.drop(convID)
	if running || dropped {
		logging.Session("conversation %s abandoned (running=%v parked=%v)", convID, running, dropped)
	}
	return running || dropped
}

// Handle runs one utterance of a conversation. A STOP arriving while a turn
// is in flight cancels that turn; any other utterance gets
// ErrConversationBusy. Every other failure is reported in the result.
func (o *Orchestrator) Handle(ctx context.Context, convID string, u types.Utterance) (TurnResult, error) {
	o.mu.Lock()
	if h, busy := o.inflight[convID]; busy {
		o.mu.Unlock()
		if o.deps.Recognizer.Recognize(u).Kind != types.IntentStop {
			return TurnResult{}, ErrConversationBusy
		}
		h.cancel()
		o.parked.drop(convID)
		res := o.stopped(convID, u, "cancelled turn "+h.id)
		o.record(ctx, res)
		return res, nil
	}
	turnCtx, cancel := context.WithCancel(ctx)
	h := &turnHandle{id: uuid.NewString(), cancel: cancel}
	o.inflight[convID] = h
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inflight, convID)
		o.mu.Unlock()
		cancel()
	}()

	res := o.run(turnCtx, h.id, convID, u)
	o.record(ctx, res)
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, res TurnResult) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.RecordTurn(context.WithoutCancel(ctx), res.Record()); err != nil {
		logging.Get(logging.CategorySession).Errorf("failed to record turn %s: %v", res.TurnID, err)
	}
}

func (o *Orchestrator) stopped(convID string, u types.Utterance, what string) TurnResult {
	res := TurnResult{
		TurnID:         uuid.NewString(),
		ConversationID: convID,
		Utterance:      u.Text(),
		Intent:         types.Intent{Kind: types.IntentStop, Confidence: 1},
		StartedAt:      time.Now(),
		Trace:          []State{StateReceived, StateIntentResolved, StateCompleted},
		Checkpoints:    []Checkpoint{{State: StateIntentResolved, Verdict: types.Proceed()}},
		Outcome:        OutcomeCompleted,
		Category:       transparency.CategoryNone,
		Reason:         transparency.Completed("stopped: " + what).Line(),
	}
	logging.AuditWithTurn(convID, res.TurnID).TurnEnd(string(res.Outcome), res.Category.String(), res.Reason, 0)
	return res
}

// turn is the mutable state of one run.
type turn struct {
	ctx   context.Context
	res   *TurnResult
	audit *logging.AuditLogger
	text  string
}

func (t *turn) enter(s State) {
	t.res.Trace = append(t.res.Trace, s)
	logging.SessionDebug("turn %s: %s", t.res.TurnID, s)
}

func (t *turn) check(s State, v types.Verdict) bool {
	t.res.Checkpoints = append(t.res.Checkpoints, Checkpoint{State: s, Verdict: v})
	t.audit.Checkpoint(string(s), string(v.Kind), v.Reason)
	return v.IsProceed()
}

func (o *Orchestrator) run(ctx context.Context, turnID, convID string, u types.Utterance) (res TurnResult) {
	res = TurnResult{
		TurnID:         turnID,
		ConversationID: convID,
		Utterance:      u.Text(),
		StartedAt:      time.Now(),
	}
	t := &turn{ctx: ctx, res: &res, audit: logging.AuditWithTurn(convID, turnID), text: u.Text()}
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		t.audit.TurnEnd(string(res.Outcome), res.Category.String(), res.Reason, res.Duration)
	}()

	t.enter(StateReceived)
	pc, resumed := o.parked.take(convID)
	t.audit.TurnStart(len(u.Text()), resumed)

	if u.IsBlank() {
		if resumed {
			o.parked.park(convID, pc)
		}
		v := types.Clarify("empty utterance", "request")
		t.check(StateReceived, v)
		res.Pending = v.Items
		o.finish(t, StateClarifying, OutcomeClarifying, transparency.FromVerdict(v))
		return res
	}

	// Intent
	intent := o.deps.Recognizer.Recognize(u)
	t.audit.IntentParsed(string(intent.Kind), intent.Confidence, 0)
	if intent.Kind == types.IntentStop {
		res.Intent = intent
		t.enter(StateIntentResolved)
		t.check(StateIntentResolved, types.Proceed())
		what := "nothing to stop"
		if resumed {
			what = "discarded pending clarification"
		}
		o.finish(t, StateCompleted, OutcomeCompleted, transparency.Completed("stopped: "+what))
		return res
	}

	var entities []types.ExtractedEntity
	if resumed {
		fresh := o.deps.Extractor.Extract(u, intent)
		if startsFresh(pc, intent, fresh) {
			logging.Session("conversation %s: %s replaces pending %s", convID, intent.Kind, pc.intent.Kind)
			entities = fresh
		} else {
			res.Resumed = true
			intent = resumedIntent(pc, intent)
			answer := o.deps.Extractor.ExtractWithHints(u, intent, pc.expected)
			entities = mergeEntities(pc.entities, pc.unresolved, answer, len(pc.text)+1)
			t.text = pc.text + " " + u.Text()
		}
	} else {
		entities = o.deps.Extractor.Extract(u, intent)
	}
	res.Intent = intent
	res.Entities = entities

	t.enter(StateIntentResolved)
	if intent.IsUnknown() {
		v := types.Clarify(fmt.Sprintf("request not understood (best match %.2f)", intent.Confidence), "intent")
		t.check(StateIntentResolved, v)
		o.clarify(t, convID, nil, v)
		return res
	}
	t.check(StateIntentResolved, types.Proceed())
	if _, ok := deck.TemplateFor(intent.Kind); !ok {
		o.rollback(t, StateIntentResolved, types.Rollback(stageIntent, fmt.Sprintf("no deck mapping for %s", intent.Kind)))
		return res
	}

	// Entities
	t.enter(StateEntitiesExtracted)
	if missing := deck.MissingRoles(intent.Kind, entities); len(missing) > 0 {
		items := make([]string, len(missing))
		for i, m := range missing {
			items[i] = string(m)
		}
		v := types.Clarify("missing required information", items...)
		t.check(StateEntitiesExtracted, v)
		o.clarify(t, convID, missing, v)
		return res
	}
	t.check(StateEntitiesExtracted, types.Proceed())

	// Assets
	t.enter(StateAssetsValidated)
	model := o.deps.Fields.Current()
	assets := o.validateAssets(intent.Kind, entities, model)
	res.Assets = assets
	if v, expected := assetVerdict(assets); !v.IsProceed() {
		t.check(StateAssetsValidated, v)
		o.clarify(t, convID, expected, v)
		return res
	}
	t.check(StateAssetsValidated, types.Proceed())

	// Fragment
	t.enter(StateFragmentGenerated)
	frag, err := o.deps.Generator.Generate(deck.Request{Intent: intent, Entities: entities, Assets: assets})
	if err != nil {
		o.rollback(t, StateFragmentGenerated, types.Rollback(stageGeneration, err.Error()))
		return res
	}
	res.Fragment = frag
	t.check(StateFragmentGenerated, types.Proceed())

	t.enter(StateFragmentValidated)
	v := o.deps.Validator.Validate(frag)
	switch {
	case v.IsRollback():
		o.rollback(t, StateFragmentValidated, v)
		return res
	case v.IsClarify():
		t.check(StateFragmentValidated, v)
		o.clarify(t, convID, o.plausibilityHints(frag), v)
		return res
	}
	t.check(StateFragmentValidated, v)

	simDeck := simulator.Deck{Base: o.opts.BaseDeck, Fragment: frag, CaseName: o.opts.CaseName}
	text, err := simDeck.Text()
	if err != nil {
		o.rollback(t, StateFragmentValidated, types.Rollback(stageGeneration, err.Error()))
		return res
	}
	res.DeckText = text

	if o.interrupted(t, StateFragmentValidated) {
		return res
	}

	// Governance
	t.enter(StateGovernanceDecided)
	decision := o.govern(ctx, t, frag, text)
	res.Decision = &decision
	t.audit.GovernanceDecision(string(decision.Outcome), decision.PolicyVersion, decision.MatchedTokens)
	if !decision.Outcome.MayExecute() {
		t.check(StateGovernanceDecided, types.Rollback(stageGovernance, decision.Reason))
		o.finish(t, StateRolledBack, OutcomeRolledBack, transparency.FromDecision(decision))
		return res
	}
	t.check(StateGovernanceDecided, types.Proceed())

	if o.interrupted(t, StateGovernanceDecided) {
		return res
	}

	// Execution
	t.enter(StateExecuted)
	result := simulator.Execute(ctx, o.deps.Simulator, simDeck, o.opts.SimulatorTimeout)
	res.Result = &result
	explained := transparency.FromSimulation(result)
	if !result.Converged {
		t.check(StateExecuted, types.Rollback(stageExecution, explained.Reason))
		o.finish(t, StateRolledBack, OutcomeRolledBack, explained)
		return res
	}
	t.check(StateExecuted, types.Proceed())
	o.finish(t, StateCompleted, OutcomeCompleted, explained)
	return res
}

// validateAssets resolves identifier and grid entities. The first value of a
// role the intent declares names a new asset and must not already exist.
func (o *Orchestrator) validateAssets(kind types.IntentKind, entities []types.ExtractedEntity, model *world.Snapshot) []types.ValidatedAsset {
	tmpl, _ := deck.TemplateFor(kind)
	declared := make(map[types.EntityType]bool)
	var out []types.ValidatedAsset
	for _, e := range entities {
		switch {
		case e.Name.IsIdentifier() && tmpl.DeclaresRole(e.Name) && !declared[e.Name]:
			declared[e.Name] = true
			out = append(out, o.deps.Assets.Declare(e, model))
		case e.Name.IsIdentifier():
			out = append(out, o.deps.Assets.Resolve(e, model))
		case e.Name == types.EntityGridLocation:
			out = append(out, o.deps.Assets.Validate([]types.ExtractedEntity{e}, model)...)
		}
	}
	logging.Get(logging.CategoryAssets).Debugf("%d assets checked against field model v%d", len(out), model.Version())
	return out
}

// assetVerdict asks about every asset that did not resolve.
func assetVerdict(assets []types.ValidatedAsset) (types.Verdict, []types.EntityType) {
	var items []string
	var expected []types.EntityType
	seen := make(map[types.EntityType]bool)
	for _, a := range assets {
		if a.Resolved() {
			continue
		}
		item := fmt.Sprintf("%s %s: %s", a.Entity.Name, a.RequestedName, a.Note)
		if a.Status == types.AssetUnknown && len(a.Candidates) > 0 {
			item += " (did you mean " + strings.Join(a.CandidateNames(), ", ") + "?)"
		}
		items = append(items, item)
		if !seen[a.Entity.Name] {
			seen[a.Entity.Name] = true
			expected = append(expected, a.Entity.Name)
		}
	}
	if len(items) == 0 {
		return types.Proceed(), nil
	}
	return types.Clarify("unresolved asset references", items...), expected
}

func (o *Orchestrator) plausibilityHints(frag deck.Fragment) []types.EntityType {
	var qs []deck.Quantity
	for _, viol := range o.deps.Validator.Check(frag).Plausibility {
		def, ok := deck.Lookup(viol.Keyword)
		if !ok {
			continue
		}
		if i := def.FieldIndex(viol.Field); i >= 0 {
			qs = append(qs, def.Fields[i].Quantity)
		}
	}
	return expectedFromQuantities(qs)
}

// govern decides the fragment and, when approval is required, waits for the
// answer. Only this conversation's turn blocks on the wait.
func (o *Orchestrator) govern(ctx context.Context, t *turn, frag deck.Fragment, text string) types.GovernanceDecision {
	decision := o.deps.Gate.Decide(frag, o.deps.Policy)
	if decision.Outcome != types.GovernanceRequiresApproval {
		return decision
	}
	if o.deps.Approvals == nil {
		decision.Previous = decision.Outcome
		decision.Outcome = types.GovernanceDenied
		decision.Reason = "approval required but no approval service is running"
		return decision
	}

	timeout := o.deps.Policy.ApprovalTimeout()
	expires := time.Now().Add(timeout)
	req := &approval.Request{
		ConversationID: t.res.ConversationID,
		TurnID:         t.res.TurnID,
		Action:         frag.Header(),
		Tokens:         decision.MatchedTokens,
		PolicyVersion:  decision.PolicyVersion,
		Deck:           text,
		ExpiresAt:      &expires,
	}
	if err := o.deps.Approvals.RequestApproval(ctx, req); err != nil {
		decision.Previous = decision.Outcome
		decision.Outcome = types.GovernanceDenied
		decision.Reason = "approval request failed: " + err.Error()
		return decision
	}
	decision.ApprovalID = req.ID
	t.audit.Log(logging.AuditEvent{
		EventType: logging.AuditApprovalRequested,
		Target:    req.ID,
		Success:   true,
		Fields:    map[string]interface{}{"tokens": req.Tokens, "timeout": timeout.String()},
		Message:   "approval requested for " + req.Action,
	})

	answer, err := o.deps.Approvals.Await(ctx, req.ID, timeout)
	decision.Previous = types.GovernanceRequiresApproval
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		decision.Outcome = types.GovernanceDenied
		decision.Reason = "approval wait cancelled"
	case err != nil:
		decision.Outcome = types.GovernanceDenied
		decision.Reason = "approval failed: " + err.Error()
	case answer.Approved:
		decision.Outcome = types.GovernanceApproved
		decision.Reason = "approved: " + answer.Reason
	case answer.TimedOut:
		decision.Outcome = types.GovernanceDenied
		decision.Reason = "approval timed out: " + answer.Reason
	default:
		decision.Outcome = types.GovernanceDenied
		decision.Reason = "denied by approver: " + answer.Reason
	}
	t.audit.Log(logging.AuditEvent{
		EventType: logging.AuditApprovalResolved,
		Target:    req.ID,
		Success:   decision.Outcome == types.GovernanceApproved,
		Message:   decision.Reason,
	})
	return decision
}

// interrupted rolls the turn back once its context is done.
func (o *Orchestrator) interrupted(t *turn, at State) bool {
	if t.ctx.Err() == nil {
		return false
	}
	o.rollback(t, at, types.Rollback(stageExecution, "turn cancelled before execution"))
	return true
}

func (o *Orchestrator) clarify(t *turn, convID string, expected []types.EntityType, v types.Verdict) {
	// a stopped turn leaves nothing behind
	if t.ctx.Err() == nil {
		unresolved := make(map[types.Span]bool)
		for _, a := range t.res.Assets {
			if !a.Resolved() {
				unresolved[a.Entity.Span] = true
			}
		}
		o.parked.park(convID, &parkedContext{
			text:       t.text,
			intent:     t.res.Intent,
			entities:   t.res.Entities,
			expected:   expected,
			unresolved: unresolved,
			items:      v.Items,
			parkedAt:   time.Now(),
		})
	}
	t.res.Pending = append([]string(nil), v.Items...)
	o.finish(t, StateClarifying, OutcomeClarifying, transparency.FromVerdict(v))
}

func (o *Orchestrator) rollback(t *turn, at State, v types.Verdict) {
	t.check(at, v)
	logging.Get(logging.CategorySession).Warnf("turn %s rolled back at %s: %s", t.res.TurnID, at, v.Reason)
	o.finish(t, StateRolledBack, OutcomeRolledBack, transparency.FromVerdict(v))
}

func (o *Orchestrator) finish(t *turn, final State, outcome Outcome, e transparency.Explanation) {
	t.enter(final)
	t.res.Outcome = outcome
	t.res.Category = e.Category
	t.res.Reason = e.Line()
}
