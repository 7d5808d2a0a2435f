package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
)

// WorkerPool manages a pool of workers that poll the task queue and
// dispatch messages to the handler registered for their task type.
type WorkerPool struct {
	queue        interfaces.TaskQueue
	pollInterval time.Duration
	concurrency  int
	handlers     map[string]interfaces.TaskHandler
	mu           sync.RWMutex
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// Compile-time assertion
var _ interfaces.WorkerPool = (*WorkerPool)(nil)

// NewWorkerPool creates a new worker pool over the given queue.
func NewWorkerPool(queue interfaces.TaskQueue, cfg *common.QueueConfig, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &WorkerPool{
		queue:        queue,
		pollInterval: cfg.PollIntervalDuration(),
		concurrency:  concurrency,
		handlers:     make(map[string]interfaces.TaskHandler),
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterHandler registers a handler for a task type.
func (wp *WorkerPool) RegisterHandler(taskType string, handler interfaces.TaskHandler) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.handlers[taskType] = handler
	wp.logger.Debug().
		Str("task_type", taskType).
		Msg("Task handler registered")
}

// Start starts the worker goroutines.
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Dur("poll_interval", wp.pollInterval).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight handlers.
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	wp.wg.Wait()
	return nil
}

// worker is the main poll loop for a single worker.
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	// Stagger worker starts to reduce database lock contention by spreading
	// workers evenly across the poll interval
	staggerDelay := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(staggerDelay):
		}
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Dur("stagger_delay", staggerDelay).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil {
				if !errors.Is(err, models.ErrNoMessage) {
					wp.logger.Warn().
						Err(err).
						Int("worker_id", workerID).
						Msg("Error processing message")
				}
			}
		}
	}
}

// processMessage receives and processes a single message. Handler errors
// leave the message unacked so the queue redelivers it after the visibility
// timeout; poison pills are capped by the queue's max receive count.
func (wp *WorkerPool) processMessage(workerID int) error {
	msg, ack, err := wp.queue.Receive(wp.ctx)
	if err != nil {
		return err
	}

	wp.mu.RLock()
	handler, exists := wp.handlers[msg.Type]
	wp.mu.RUnlock()

	if !exists {
		wp.logger.Error().
			Str("type", msg.Type).
			Str("message_id", msg.ID).
			Msg("No handler registered for task type")
		// Unknown types can never succeed, drop them
		if ackErr := ack(); ackErr != nil {
			wp.logger.Warn().Err(ackErr).Msg("Failed to delete unhandled message")
		}
		return fmt.Errorf("no handler for task type: %s", msg.Type)
	}

	wp.logger.Debug().
		Str("message_id", msg.ID).
		Str("type", msg.Type).
		Int("worker_id", workerID).
		Msg("Processing message")

	startTime := time.Now()
	handlerErr := handler(wp.ctx, msg)
	duration := time.Since(startTime)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Str("message_id", msg.ID).
			Str("type", msg.Type).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Task handler failed, message left for redelivery")
		return handlerErr
	}

	wp.logger.Info().
		Str("message_id", msg.ID).
		Str("type", msg.Type).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Task completed")

	if err := ack(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("Failed to delete message after successful processing")
		return err
	}

	return nil
}
