// Package approval carries governed changes to a human and their answers back.
package approval

import (
	"time"
)

// Event is published on the service queue for every request and decision.
type Event struct {
	Topic   string
	Data    interface{}
	Headers map[string]string `json:"headers,omitempty"`
}

const (
	TopicRequestCreated  = "request.created"
	TopicRequestExpired  = "request.expired"
	TopicDecisionCreated = "decision.created"
)

// Request asks for approval of one governed fragment.
type Request struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	TurnID         string     `json:"turnId"`
	Action         string     `json:"action"` // fragment header
	Tokens         []string   `json:"tokens"`
	PolicyVersion  string     `json:"policyVersion"`
	Deck           string     `json:"deck,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// Decision is the answer to a request. TimedOut marks a denial by expiry.
type Decision struct {
	ID        string    `json:"id"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	TimedOut  bool      `json:"timedOut,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
