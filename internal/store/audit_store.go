// Package store persists the audit trail of conversation turns and their
// governance decisions in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// TurnRecord is one persisted turn.
type TurnRecord struct {
	ID             string
	ConversationID string
	Utterance      string
	Intent         string
	Outcome        string
	Category       string
	Reason         string
	Fragment       string
	Trace          []string
	Verdicts       []types.Verdict
	Decision       *types.GovernanceDecision
	Simulation     *types.SimulationResult
	CreatedAt      time.Time
}

// AuditStore is the SQLite-backed turn log.
type AuditStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewAuditStore opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory store.
func NewAuditStore(path string) (*AuditStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s := &AuditStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Get(logging.CategoryStore).Debugf("audit store opened at %s", path)
	return s, nil
}

func (s *AuditStore) initialize() error {
	turnsTable := `
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		utterance TEXT NOT NULL,
		intent TEXT,
		outcome TEXT NOT NULL,
		category TEXT NOT NULL,
		reason TEXT,
		fragment TEXT,
		trace_json TEXT,
		verdicts_json TEXT,
		simulation_json TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id);
	`

	decisionsTable := `
	CREATE TABLE IF NOT EXISTS governance_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL REFERENCES turns(id),
		outcome TEXT NOT NULL,
		policy_version TEXT,
		tokens_json TEXT,
		reason TEXT,
		approval_id TEXT,
		previous TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_turn ON governance_decisions(turn_id);
	`

	for _, table := range []string{turnsTable, decisionsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// RecordTurn writes a turn and its governance decision, if any, atomically.
func (s *AuditStore) RecordTurn(ctx context.Context, r TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	created := r.CreatedAt.UTC().Format(time.RFC3339Nano)
	traceJSON, _ := json.Marshal(r.Trace)
	verdictsJSON, _ := json.Marshal(r.Verdicts)
	var simJSON sql.NullString
	if r.Simulation != nil {
		data, err := json.Marshal(r.Simulation.Normalize())
		if err != nil {
			return fmt.Errorf("failed to encode simulation result: %w", err)
		}
		simJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, utterance, intent, outcome, category, reason, fragment,
		 trace_json, verdicts_json, simulation_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ConversationID, r.Utterance, r.Intent, r.Outcome, r.Category, r.Reason, r.Fragment,
		string(traceJSON), string(verdictsJSON), simJSON, created,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("failed to store turn %s: %v", r.ID, err)
		return fmt.Errorf("failed to store turn: %w", err)
	}

	if d := r.Decision; d != nil && d.Outcome != "" {
		tokensJSON, _ := json.Marshal(d.MatchedTokens)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO governance_decisions (turn_id, outcome, policy_version, tokens_json, reason, approval_id, previous, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, string(d.Outcome), d.PolicyVersion, string(tokensJSON), d.Reason, d.ApprovalID, string(d.Previous), created,
		)
		if err != nil {
			return fmt.Errorf("failed to store governance decision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	logging.Get(logging.CategoryStore).Debugf("turn %s stored: %s/%s", r.ID, r.Outcome, r.Category)
	return nil
}

// RecentTurns returns the newest turns first.
func (s *AuditStore) RecentTurns(ctx context.Context, limit int) ([]TurnRecord, error) {
	return s.queryTurns(ctx, "", limit)
}

// ConversationTurns returns the newest turns of one conversation first.
func (s *AuditStore) ConversationTurns(ctx context.Context, conversationID string, limit int) ([]TurnRecord, error) {
	return s.queryTurns(ctx, conversationID, limit)
}

func (s *AuditStore) queryTurns(ctx context.Context, conversationID string, limit int) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT t.id, t.conversation_id, t.utterance, t.intent, t.outcome, t.category, t.reason, t.fragment,
		t.trace_json, t.verdicts_json, t.simulation_json, t.created_at,
		d.outcome, d.policy_version, d.tokens_json, d.reason, d.approval_id, d.previous
		FROM turns t LEFT JOIN governance_decisions d ON d.turn_id = t.id`
	var args []interface{}
	if conversationID != "" {
		query += ` WHERE t.conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY t.rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var r TurnRecord
		var intent, reason, fragment, traceJSON, verdictsJSON, simJSON sql.NullString
		var dOutcome, dVersion, dTokens, dReason, dApproval, dPrevious sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Utterance, &intent, &r.Outcome, &r.Category, &reason, &fragment,
			&traceJSON, &verdictsJSON, &simJSON, &created,
			&dOutcome, &dVersion, &dTokens, &dReason, &dApproval, &dPrevious); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		r.Intent, r.Reason, r.Fragment = intent.String, reason.String, fragment.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		if traceJSON.Valid {
			_ = json.Unmarshal([]byte(traceJSON.String), &r.Trace)
		}
		if verdictsJSON.Valid {
			_ = json.Unmarshal([]byte(verdictsJSON.String), &r.Verdicts)
		}
		if simJSON.Valid {
			var sim types.SimulationResult
			if err := json.Unmarshal([]byte(simJSON.String), &sim); err == nil {
				r.Simulation = &sim
			}
		}
		if dOutcome.Valid {
			d := &types.GovernanceDecision{
				Outcome:       types.GovernanceOutcome(dOutcome.String),
				PolicyVersion: dVersion.String,
				Reason:        dReason.String,
				ApprovalID:    dApproval.String,
				Previous:      types.GovernanceOutcome(dPrevious.String),
			}
			_ = json.Unmarshal([]byte(dTokens.String), &d.MatchedTokens)
			r.Decision = d
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
