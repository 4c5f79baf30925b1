package approval

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown or already decided requests.
var ErrNotFound = errors.New("approval request not found")

// Service solicits and records approvals.
type Service interface {
	RequestApproval(ctx context.Context, r *Request) error
	ListPending(ctx context.Context) ([]*Request, error)
	Decide(ctx context.Context, id string, approved bool, reason string) (*Decision, error)
	// Await blocks until the request is decided, the timeout elapses (a
	// timed-out denial) or ctx is done (an error).
	Await(ctx context.Context, id string, timeout time.Duration) (*Decision, error)
	Queue() Queue[Event]
}
