package approval

import (
	"context"
	"errors"
)

// ErrQueueFull is returned when an event cannot be queued without blocking.
var ErrQueueFull = errors.New("event queue full")

type Message[T any] interface {
	T() *T
	Ack() error
	Nack(error) error
}

type Queue[T any] interface {
	Publish(ctx context.Context, t *T) error
	Consume(ctx context.Context) (Message[T], error)
}
