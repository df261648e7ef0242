package queue

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

// ErrClosed is returned when publishing to a queue that is shutting down.
var ErrClosed = errors.New("queue closed")

// Publisher hands a job reference to the worker side.
type Publisher interface {
	Publish(ctx context.Context, msg entity.QueueMessage) error
}

// Handler processes one delivered job reference. Delivery is at-least-once, so
// handlers must tolerate seeing the same job more than once.
type Handler func(ctx context.Context, msg entity.QueueMessage) error
