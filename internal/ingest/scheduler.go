package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/dispatch"
	"github.com/ternarybob/foliomail/internal/imap"
)

// Scheduler sweeps the newsletter mailbox on a cron schedule: unread
// newsletters are fetched over IMAP, sanitized, and dispatched as one task
// per portfolio.
type Scheduler struct {
	imap       *imap.Service
	sanitizer  *Sanitizer
	dispatcher *dispatch.Dispatcher
	config     *common.IngestConfig
	cron       *cron.Cron
	logger     arbor.ILogger
}

// NewScheduler creates the mailbox sweep scheduler.
func NewScheduler(imapSvc *imap.Service, sanitizer *Sanitizer, dispatcher *dispatch.Dispatcher, config *common.IngestConfig, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		imap:       imapSvc,
		sanitizer:  sanitizer,
		dispatcher: dispatcher,
		config:     config,
		cron:       cron.New(),
		logger:     logger,
	}
}

// Start begins the scheduled mailbox sweep.
func (s *Scheduler) Start() error {
	if !s.imap.IsConfigured() {
		s.logger.Warn().Msg("IMAP not configured, mailbox sweep disabled")
		return nil
	}

	schedule := s.config.Schedule
	if schedule == "" {
		// Default: hourly
		schedule = "0 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Mailbox sweep scheduler started")

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Mailbox sweep scheduler stopped")
}

// RunNow triggers an immediate sweep.
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate mailbox sweep")
	go s.runSweep()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.logger.Info().Msg("Starting mailbox sweep")

	emails, messageIDs, err := s.imap.FetchUnreadEmails(ctx, s.config.SubjectFilter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Mailbox sweep failed to fetch emails")
		return
	}

	if len(emails) == 0 {
		s.logger.Debug().Msg("Mailbox sweep found no new newsletters")
		return
	}

	emails = s.sanitizer.SanitizeBatch(emails)

	tasks, err := s.dispatcher.Dispatch(ctx, emails)
	if err != nil && !errors.Is(err, dispatch.ErrEmptyBatch) {
		s.logger.Error().Err(err).Msg("Mailbox sweep failed to dispatch")
		return
	}

	if s.config.MarkSeen {
		if err := s.imap.MarkAsRead(ctx, messageIDs); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mark swept messages as read")
		}
	}

	s.logger.Info().
		Int("emails", len(emails)).
		Int("tasks", tasks).
		Msg("Mailbox sweep completed")
}
