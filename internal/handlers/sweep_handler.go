package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/ingest"
)

// SweepHandler triggers the IMAP mailbox sweep outside its cron schedule
type SweepHandler struct {
	scheduler *ingest.Scheduler
	logger    arbor.ILogger
}

// NewSweepHandler creates a new SweepHandler
func NewSweepHandler(scheduler *ingest.Scheduler, logger arbor.ILogger) *SweepHandler {
	return &SweepHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// TriggerHandler handles POST /api/ingest/sweep. The sweep runs in the
// background; the response only confirms it was started.
func (h *SweepHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	h.logger.Info().Msg("Mailbox sweep triggered via API")
	go h.scheduler.RunNow()

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "Mailbox sweep started",
	})
}
