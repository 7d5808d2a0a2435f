package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/foliomail/internal/models"
)

// TaskQueue is the at-least-once delivery mechanism between the dispatcher
// and the workers. Delivery guarantees are the queue's responsibility: a
// message may be delivered more than once or after delay, and consumers must
// tolerate both.
type TaskQueue interface {
	// Enqueue adds a message to the queue.
	Enqueue(ctx context.Context, msg models.QueueMessage) error

	// Receive pulls the next visible message. Returns models.ErrNoMessage
	// when the queue is empty, otherwise the message and an ack function to
	// call once processing has finished.
	Receive(ctx context.Context) (*models.QueueMessage, func() error, error)

	// Extend extends the visibility timeout for a long-running task.
	Extend(ctx context.Context, messageID string, duration time.Duration) error

	// Close closes the queue.
	Close() error
}

// TaskHandler processes one received queue message. Returning an error leaves
// the message to the queue's redelivery policy; returning nil acks it.
type TaskHandler func(ctx context.Context, msg *models.QueueMessage) error

// WorkerPool manages concurrent task processing against a TaskQueue.
type WorkerPool interface {
	RegisterHandler(taskType string, handler TaskHandler)
	Start() error
	Stop() error
}
