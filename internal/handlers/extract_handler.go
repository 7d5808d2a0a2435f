package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/dispatch"
	"github.com/ternarybob/foliomail/internal/ingest"
	"github.com/ternarybob/foliomail/internal/models"
)

// ExtractHandler accepts raw newsletter batches over HTTP and hands them to
// the dispatcher. This is the push-style ingestion path; the IMAP sweep is
// the scheduled one.
type ExtractHandler struct {
	sanitizer  *ingest.Sanitizer
	dispatcher *dispatch.Dispatcher
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewExtractHandler creates a new ExtractHandler
func NewExtractHandler(sanitizer *ingest.Sanitizer, dispatcher *dispatch.Dispatcher, logger arbor.ILogger) *ExtractHandler {
	return &ExtractHandler{
		sanitizer:  sanitizer,
		dispatcher: dispatcher,
		validate:   validator.New(),
		logger:     logger,
	}
}

// ExtractHandler handles POST /extract. The body is {"emails": [...]}; each
// email is sanitized and the batch is fanned out as one task per portfolio.
// Dispatch is fire-and-forget, so a successful response means queued, not
// delivered.
func (h *ExtractHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode extract request")
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Extract request failed validation")
		WriteError(w, http.StatusBadRequest, "Request must contain a non-empty emails array")
		return
	}

	emails := h.sanitizer.SanitizeBatch(req.Emails)

	processed, err := h.dispatcher.Dispatch(r.Context(), emails)
	if err != nil {
		if errors.Is(err, dispatch.ErrEmptyBatch) {
			WriteError(w, http.StatusBadRequest, "Email batch is empty")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to dispatch email batch")
		WriteError(w, http.StatusInternalServerError, "Failed to queue email batch")
		return
	}

	h.logger.Info().
		Int("emails", len(emails)).
		Int("processed", processed).
		Msg("Email batch queued")

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":    "queued",
		"processed": processed,
	})
}
