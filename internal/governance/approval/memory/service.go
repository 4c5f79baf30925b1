// Package memory is an in-process approval service.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appr "deckpilot/internal/governance/approval"
	"deckpilot/internal/logging"
)

// DefaultRetention is how long a decision nobody awaited stays collectable.
const DefaultRetention = 10 * time.Minute

type decidedEntry struct {
	ch chan *appr.Decision
	at time.Time
}

type service struct {
	mu        sync.Mutex
	pending   map[string]*appr.Request
	waiters   map[string]chan *appr.Decision
	decided   map[string]decidedEntry
	retention time.Duration
	events    *eventQueue
	now       func() time.Time
}

// New creates an empty service.
func New() appr.Service {
	return &service{
		pending:   map[string]*appr.Request{},
		waiters:   map[string]chan *appr.Decision{},
		decided:   map[string]decidedEntry{},
		retention: DefaultRetention,
		events:    newEventQueue(128),
		now:       time.Now,
	}
}

func (s *service) RequestApproval(ctx context.Context, r *appr.Request) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.mu.Lock()
	if _, dup := s.pending[r.ID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("approval request %s already pending", r.ID)
	}
	s.pending[r.ID] = r
	s.waiters[r.ID] = make(chan *appr.Decision, 1)
	s.mu.Unlock()

	logging.Governance("approval %s requested for %s (%v)", r.ID, r.Action, r.Tokens)
	s.publish(ctx, &appr.Event{Topic: appr.TopicRequestCreated, Data: r})
	return nil
}

func (s *service) ListPending(ctx context.Context) ([]*appr.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*appr.Request, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *service) Decide(ctx context.Context, id string, approved bool, reason string) (*appr.Decision, error) {
	d := &appr.Decision{ID: id, Approved: approved, Reason: reason, DecidedAt: s.now()}
	if !s.resolve(id, d) {
		return nil, fmt.Errorf("%w: %s", appr.ErrNotFound, id)
	}
	logging.Governance("approval %s decided: approved=%v", id, approved)
	s.publish(ctx, &appr.Event{Topic: appr.TopicDecisionCreated, Data: d})
	return d, nil
}

func (s *service) Await(ctx context.Context, id string, timeout time.Duration) (*appr.Decision, error) {
	s.mu.Lock()
	s.evictLocked()
	ch, ok := s.waiters[id]
	if !ok {
		var e decidedEntry
		e, ok = s.decided[id]
		ch = e.ch
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", appr.ErrNotFound, id)
	}
	defer func() {
		s.mu.Lock()
		delete(s.decided, id)
		s.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case d := <-ch:
		return d, nil
	case <-timer.C:
		d := &appr.Decision{ID: id, Approved: false, TimedOut: true, Reason: fmt.Sprintf("no answer within %s", timeout), DecidedAt: s.now()}
		if s.resolve(id, d) {
			logging.Governance("approval %s expired after %s", id, timeout)
			s.publish(ctx, &appr.Event{Topic: appr.TopicRequestExpired, Data: d})
		}
		return <-ch, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		delete(s.waiters, id)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// resolve removes a pending request and hands d to its waiter. The decision
// stays collectable by Await until read or until the retention passes.
func (s *service) resolve(id string, d *appr.Decision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	ch, ok := s.waiters[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	delete(s.waiters, id)
	s.decided[id] = decidedEntry{ch: ch, at: s.now()}
	ch <- d
	return true
}

// evictLocked drops decisions older than the retention. s.mu must be held.
func (s *service) evictLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, e := range s.decided {
		if e.at.Before(cutoff) {
			delete(s.decided, id)
		}
	}
}

func (s *service) publish(ctx context.Context, e *appr.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		logging.Get(logging.CategoryGovernance).Debugf("dropped %s event: %v", e.Topic, err)
	}
}

func (s *service) Queue() appr.Queue[appr.Event] { return s.events }

// ---------------- queue ----------------

type eventQueue struct {
	ch chan *appr.Event
}

func newEventQueue(size int) *eventQueue { return &eventQueue{ch: make(chan *appr.Event, size)} }

// Publish never blocks; a full queue drops the event.
func (q *eventQueue) Publish(ctx context.Context, e *appr.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return appr.ErrQueueFull
	}
}

func (q *eventQueue) Consume(ctx context.Context) (appr.Message[appr.Event], error) {
	select {
	case e := <-q.ch:
		return &eventMsg{e: e}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type eventMsg struct{ e *appr.Event }

func (m *eventMsg) T() *appr.Event       { return m.e }
func (m *eventMsg) Ack() error           { return nil }
func (m *eventMsg) Nack(err error) error { return nil }

var _ appr.Queue[appr.Event] = (*eventQueue)(nil)
