package models

import (
	"encoding/json"
	"errors"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// TaskTypeNewsletter routes a per-portfolio newsletter task to its handler.
const TaskTypeNewsletter = "newsletter"

// QueueMessage is the envelope stored in the queue.
// Keep it simple - just enough to route the task.
type QueueMessage struct {
	ID      string          `json:"id"`      // Assigned by the queue at enqueue
	Type    string          `json:"type"`    // Task type for handler routing
	Payload json.RawMessage `json:"payload"` // Task-specific data (passed through)
}

// TaskPayload is one portfolio's unit of work, serialized by the dispatcher
// and deserialized by the worker. Timestamp is the sole freshness signal: the
// queue may deliver a payload more than once or late, and carries no
// idempotency key beyond the message ID it assigns itself.
type TaskPayload struct {
	Email     string              `json:"email" validate:"required,email"`
	Tickers   map[string][]string `json:"tickers" validate:"required,min=1"`
	Stories   string              `json:"stories" validate:"required"`
	Timestamp int64               `json:"timestamp" validate:"required,gt=0"` // epoch-millis at dispatch
}

// TickerList flattens the account->symbols mapping into the ordered,
// duplicate-free enrichment list. Account names are sorted for a stable
// flattening order (JSON maps do not preserve insertion order across the
// queue round-trip); symbol order within an account is preserved.
func (t *TaskPayload) TickerList() []string {
	return FlattenHoldings(t.Tickers)
}

// ToJSON serializes the payload for the queue envelope.
func (t *TaskPayload) ToJSON() (json.RawMessage, error) {
	return json.Marshal(t)
}

// TaskPayloadFromJSON deserializes a queue envelope payload.
func TaskPayloadFromJSON(data json.RawMessage) (*TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
