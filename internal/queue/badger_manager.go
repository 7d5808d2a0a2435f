package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
)

// storedMessage wraps a task message with the delivery bookkeeping that
// at-least-once semantics require.
type storedMessage struct {
	Message      models.QueueMessage `json:"message"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// BadgerManager implements a persistent task queue using BadgerDB.
// Messages become invisible for the visibility timeout once received; they
// are redelivered if not acknowledged in time, and dropped once they exceed
// the max receive count.
type BadgerManager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	logger            arbor.ILogger
}

// Compile-time assertion
var _ interfaces.TaskQueue = (*BadgerManager)(nil)

// NewBadgerManager creates a new Badger-backed queue manager
func NewBadgerManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int, logger arbor.ILogger) (*BadgerManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &BadgerManager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		logger:            logger,
	}, nil
}

// Enqueue adds a message to the queue, immediately visible to workers.
// An ID is assigned if the message does not carry one.
func (m *BadgerManager) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	now := time.Now()
	stored := storedMessage{
		Message:      msg,
		EnqueuedAt:   now,
		VisibleAt:    now,
		ReceiveCount: 0,
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	// Message data lives at queue:{name}:msg:{id}; a separate visibility
	// index at queue:{name}:index:{visibleAt}:{id} keeps ready messages
	// scannable in delivery order without reading every value.
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(stored.VisibleAt, msg.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	m.logger.Debug().
		Str("message_id", msg.ID).
		Str("type", msg.Type).
		Str("queue", m.queueName).
		Msg("Message enqueued")

	return nil
}

// Receive pulls the next visible message from the queue. The returned ack
// function removes the message permanently; an unacked message is redelivered
// after the visibility timeout elapses. Returns models.ErrNoMessage when no
// message is ready.
func (m *BadgerManager) Receive(ctx context.Context) (*models.QueueMessage, func() error, error) {
	var stored storedMessage
	var msgID string

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false
		var oldIndexKey []byte

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue // Skip malformed keys
			}

			if ts.After(now) {
				// Index keys sort by timestamp, so nothing later is ready either
				break
			}

			msgItem, err := txn.Get(m.msgKey(id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Orphaned index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := msgItem.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			if stored.ReceiveCount >= m.maxReceive {
				// Poison pill: drop rather than redeliver forever
				m.logger.Warn().
					Str("message_id", id).
					Int("receive_count", stored.ReceiveCount).
					Msg("Message exceeded max receives, dropping")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(m.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return models.ErrNoMessage
		}

		// Claim: bump receive count and push visibility out
		stored.ReceiveCount++
		stored.VisibleAt = time.Now().Add(m.visibilityTimeout)

		newData, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(m.indexKey(stored.VisibleAt, msgID), []byte{})
	})
	if err != nil {
		return nil, nil, err
	}

	ack := func() error {
		return m.delete(msgID)
	}

	return &stored.Message, ack, nil
}

// Extend pushes out the visibility timeout for an in-flight message, used by
// handlers whose work outlives the default timeout.
func (m *BadgerManager) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(messageID))
		if err != nil {
			return fmt.Errorf("failed to extend message %s: %w", messageID, err)
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		oldVisibleAt := stored.VisibleAt
		stored.VisibleAt = time.Now().Add(duration)

		newData, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(messageID), newData); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(oldVisibleAt, messageID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(m.indexKey(stored.VisibleAt, messageID), []byte{})
	})
}

// Close closes the queue manager. The database itself is owned by the
// storage layer, so this is a no-op.
func (m *BadgerManager) Close() error {
	return nil
}

// delete removes a message and its index entry
func (m *BadgerManager) delete(messageID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(messageID)
		item, err := txn.Get(msgKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil // Already deleted
			}
			return err
		}

		var stored storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(stored.VisibleAt, messageID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Delete(msgKey)
	})
}

// ----- Key Helpers -----

func (m *BadgerManager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *BadgerManager) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so lexicographic order matches numeric order
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *BadgerManager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", m.queueName)
	suffix := string(key[len(prefix):])

	// Suffix is "{20-digit-ts}:{id}"
	if len(suffix) < 22 {
		return time.Time{}, "", fmt.Errorf("invalid index key: %s", key)
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}
