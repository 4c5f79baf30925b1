package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Turn lifecycle
	AuditTurnStart AuditEventType = "turn_start"
	AuditTurnEnd   AuditEventType = "turn_end"

	// Pipeline stages
	AuditIntentParsed    AuditEventType = "intent_parsed"
	AuditAssetResolution AuditEventType = "asset_resolution"
	AuditFragmentEmitted AuditEventType = "fragment_emitted"
	AuditCheckpoint      AuditEventType = "checkpoint"

	// Governance
	AuditGovernanceDecision AuditEventType = "governance_decision"
	AuditApprovalRequested  AuditEventType = "approval_requested"
	AuditApprovalResolved   AuditEventType = "approval_resolved"

	// Simulator
	AuditSimulationRun       AuditEventType = "simulation_run"
	AuditSimulationCancelled AuditEventType = "simulation_cancelled"

	// Field model
	AuditFieldModelRefresh AuditEventType = "field_model_refresh"
)

// AuditEvent is one structured audit entry.
type AuditEvent struct {
	EventType      AuditEventType
	ConversationID string
	TurnID         string
	Target         string
	Success        bool
	Duration       time.Duration
	Error          string
	Message        string
	Fields         map[string]interface{}
}

// AuditLogger writes audit events through the audit category logger.
type AuditLogger struct {
	conversationID string
	turnID         string
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithTurn creates an audit logger scoped to one conversation turn.
func AuditWithTurn(conversationID, turnID string) *AuditLogger {
	return &AuditLogger{conversationID: conversationID, turnID: turnID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsCategoryEnabled(CategoryAudit) {
		return
	}
	if event.ConversationID == "" {
		event.ConversationID = a.conversationID
	}
	if event.TurnID == "" {
		event.TurnID = a.turnID
	}

	fields := make([]zap.Field, 0, 8+len(event.Fields))
	fields = append(fields,
		zap.String("event", string(event.EventType)),
		zap.Bool("success", event.Success),
	)
	if event.ConversationID != "" {
		fields = append(fields, zap.String("conversation", event.ConversationID))
	}
	if event.TurnID != "" {
		fields = append(fields, zap.String("turn", event.TurnID))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Duration("duration", event.Duration))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	Base().Named(string(CategoryAudit)).Info(event.Message, fields...)
}

// =============================================================================
// AUDIT LOGGING METHODS
// =============================================================================

// TurnStart logs the arrival of an utterance.
func (a *AuditLogger) TurnStart(inputLen int, resumed bool) {
	a.Log(AuditEvent{
		EventType: AuditTurnStart,
		Success:   true,
		Fields:    map[string]interface{}{"input_len": inputLen, "resumed": resumed},
		Message:   "turn started",
	})
}

// TurnEnd logs the terminal state of a turn.
func (a *AuditLogger) TurnEnd(outcome, category, reason string, d time.Duration) {
	a.Log(AuditEvent{
		EventType: AuditTurnEnd,
		Success:   outcome == "completed",
		Duration:  d,
		Fields:    map[string]interface{}{"outcome": outcome, "category": category},
		Message:   fmt.Sprintf("turn %s: %s", outcome, reason),
	})
}

// IntentParsed logs intent recognition results
func (a *AuditLogger) IntentParsed(kind string, confidence float64, entityCount int) {
	a.Log(AuditEvent{
		EventType: AuditIntentParsed,
		Target:    kind,
		Success:   kind != "UNKNOWN_INTENT",
		Fields: map[string]interface{}{
			"confidence": confidence,
			"entities":   entityCount,
		},
		Message: fmt.Sprintf("intent %s (%.2f)", kind, confidence),
	})
}

// Checkpoint logs one state-machine verdict.
func (a *AuditLogger) Checkpoint(state, verdict, reason string) {
	a.Log(AuditEvent{
		EventType: AuditCheckpoint,
		Target:    state,
		Success:   verdict == "proceed",
		Fields:    map[string]interface{}{"verdict": verdict},
		Message:   reason,
	})
}

// GovernanceDecision logs a policy gate outcome
func (a *AuditLogger) GovernanceDecision(outcome, policyVersion string, tokens []string) {
	a.Log(AuditEvent{
		EventType: AuditGovernanceDecision,
		Target:    outcome,
		Success:   outcome == "AutoApproved" || outcome == "Approved",
		Fields: map[string]interface{}{
			"policy_version": policyVersion,
			"tokens":         tokens,
		},
		Message: fmt.Sprintf("governance %s (policy %s)", outcome, policyVersion),
	})
}

// SimulationRun logs a simulator invocation
func (a *AuditLogger) SimulationRun(backend string, converged bool, errCount int, d time.Duration) {
	a.Log(AuditEvent{
		EventType: AuditSimulationRun,
		Target:    backend,
		Success:   converged,
		Duration:  d,
		Fields:    map[string]interface{}{"errors": errCount},
		Message:   fmt.Sprintf("simulation on %s converged=%v", backend, converged),
	})
}
