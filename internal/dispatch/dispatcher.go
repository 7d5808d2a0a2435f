package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
)

// ErrEmptyBatch is returned when a dispatch is attempted with no input
// emails. The caller must report this upstream rather than silently
// succeeding.
var ErrEmptyBatch = errors.New("email batch is empty")

// Dispatcher fans a batch of newsletter emails out into one queued task per
// portfolio. Fire-and-forget: the contract ends at successful enqueue, the
// dispatcher never observes worker completion.
type Dispatcher struct {
	queue  interfaces.TaskQueue
	store  interfaces.PortfolioStore
	logger arbor.ILogger
}

// NewDispatcher creates a dispatcher over the task queue and portfolio store.
func NewDispatcher(queue interfaces.TaskQueue, store interfaces.PortfolioStore, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		store:  store,
		logger: logger,
	}
}

// Dispatch builds one task per tracked portfolio from the email batch and
// enqueues them all. Every task carries the full tagged concatenation of all
// email bodies and the current epoch-millis timestamp as its freshness
// signal. Returns the number of tasks enqueued.
func (d *Dispatcher) Dispatch(ctx context.Context, emails []models.EmailMessage) (int, error) {
	if len(emails) == 0 {
		return 0, ErrEmptyBatch
	}

	portfolios, err := d.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load portfolios: %w", err)
	}

	if len(portfolios) == 0 {
		d.logger.Warn().Msg("No portfolios tracked, nothing to dispatch")
		return 0, nil
	}

	stories := models.CombineStories(emails)
	now := time.Now().UnixMilli()

	enqueued := 0
	for _, portfolio := range portfolios {
		payload := models.TaskPayload{
			Email:     portfolio.Email,
			Tickers:   portfolio.TickersByAccount(),
			Stories:   stories,
			Timestamp: now,
		}

		data, err := payload.ToJSON()
		if err != nil {
			return enqueued, fmt.Errorf("failed to serialize task for %s: %w", portfolio.Email, err)
		}

		msg := models.QueueMessage{
			Type:    models.TaskTypeNewsletter,
			Payload: data,
		}

		if err := d.queue.Enqueue(ctx, msg); err != nil {
			return enqueued, fmt.Errorf("failed to enqueue task for %s: %w", portfolio.Email, err)
		}
		enqueued++

		d.logger.Debug().
			Str("email", portfolio.Email).
			Int("tickers", len(payload.TickerList())).
			Msg("Newsletter task enqueued")
	}

	d.logger.Info().
		Int("emails", len(emails)).
		Int("tasks", enqueued).
		Msg("Email batch dispatched")

	return enqueued, nil
}
