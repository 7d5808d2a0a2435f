package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/enrich"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
)

// NewsletterWorker consumes newsletter tasks from the queue: it validates the
// payload, applies the staleness filter, runs the enrichment pipeline,
// aggregates the results and hands the compiled newsletter to rendering and
// delivery.
//
// Malformed and stale tasks are dropped with a success ack so the queue does
// not redeliver them. Render and delivery failures are absorbed the same way:
// logged and acked, never retried through the queue, so a flaky SMTP hop
// cannot produce duplicate newsletters.
type NewsletterWorker struct {
	client    *enrich.Client
	scheduler *enrich.Scheduler
	renderer  interfaces.Renderer
	mailer    interfaces.Mailer
	config    *common.EnrichConfig
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewNewsletterWorker creates the worker over its collaborators.
func NewNewsletterWorker(
	client *enrich.Client,
	scheduler *enrich.Scheduler,
	renderer interfaces.Renderer,
	mailer interfaces.Mailer,
	config *common.EnrichConfig,
	logger arbor.ILogger,
) *NewsletterWorker {
	return &NewsletterWorker{
		client:    client,
		scheduler: scheduler,
		renderer:  renderer,
		mailer:    mailer,
		config:    config,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Handle is the queue callback for newsletter tasks. It satisfies
// interfaces.TaskHandler via method value.
func (w *NewsletterWorker) Handle(ctx context.Context, msg *models.QueueMessage) error {
	payload, err := models.TaskPayloadFromJSON(msg.Payload)
	if err != nil {
		// Malformed payloads can never succeed, ack to stop redelivery
		w.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("Dropping task with malformed payload")
		return nil
	}

	if err := w.validate.Struct(payload); err != nil {
		w.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Str("email", payload.Email).
			Msg("Dropping task with incomplete payload")
		return nil
	}

	staleness := common.CheckTaskStaleness(payload.Timestamp, time.Now(), w.config.MaxTaskAgeDuration())
	if staleness.IsStale {
		w.logger.Info().
			Str("message_id", msg.ID).
			Str("email", payload.Email).
			Dur("age", staleness.Age).
			Msg("Skipping stale task")
		return nil
	}

	tickers := payload.TickerList()
	if len(tickers) == 0 {
		w.logger.Warn().
			Str("message_id", msg.ID).
			Str("email", payload.Email).
			Msg("Dropping task with no tickers")
		return nil
	}

	w.logger.Info().
		Str("message_id", msg.ID).
		Str("email", payload.Email).
		Int("tickers", len(tickers)).
		Str("mode", w.config.Mode).
		Msg("Processing newsletter task")

	var pdfBytes []byte
	var subject string
	var renderErr error

	switch w.config.Mode {
	case enrich.ModeCompiled:
		newsletter, outcome := w.client.EnrichCompiled(ctx, tickers, payload.Stories)
		w.logOutcome(payload.Email, "compiled", outcome)

		subject = newsletter.Title
		pdfBytes, renderErr = w.renderer.RenderNewsletter(newsletter)

	default:
		// per_ticker
		results := w.scheduler.Run(ctx, tickers, payload.Stories)
		for _, result := range results {
			w.logOutcome(payload.Email, result.Ticker, result.Outcome)
		}

		sections := enrich.Sections(results)
		subject = w.config.NewsletterTitle
		pdfBytes, renderErr = w.renderer.RenderSections(w.config.NewsletterTitle, sections)
	}

	if renderErr != nil {
		w.logger.Error().
			Err(renderErr).
			Str("email", payload.Email).
			Msg("Newsletter rendering failed, delivery skipped")
		return nil
	}

	if subject == "" {
		subject = w.config.NewsletterTitle
	}

	if err := w.deliver(ctx, payload.Email, subject, pdfBytes); err != nil {
		w.logger.Error().
			Err(err).
			Str("email", payload.Email).
			Msg("Newsletter delivery failed")
		return nil
	}

	w.logger.Info().
		Str("email", payload.Email).
		Str("subject", subject).
		Int("pdf_bytes", len(pdfBytes)).
		Msg("Newsletter delivered")

	return nil
}

// deliver emails the rendered newsletter, as a PDF attachment when
// configured, otherwise as a plain notification.
func (w *NewsletterWorker) deliver(ctx context.Context, to, subject string, pdfBytes []byte) error {
	body := fmt.Sprintf("Your personalized newsletter %q is attached.", subject)

	if w.config.AttachPDF {
		return w.mailer.SendEmailWithAttachments(ctx, to, subject, body, []interfaces.Attachment{
			{
				Filename:    "newsletter.pdf",
				ContentType: "application/pdf",
				Content:     pdfBytes,
			},
		})
	}

	return w.mailer.SendEmail(ctx, to, subject, body)
}

func (w *NewsletterWorker) logOutcome(email, target string, outcome enrich.Outcome) {
	switch outcome.Status {
	case enrich.StatusFailed:
		w.logger.Warn().
			Str("email", email).
			Str("target", target).
			Str("reason", outcome.Reason).
			Msg("Enrichment failed, fallback content used")
	case enrich.StatusNotFound:
		w.logger.Debug().
			Str("email", email).
			Str("target", target).
			Msg("No relevant stories found")
	default:
		w.logger.Debug().
			Str("email", email).
			Str("target", target).
			Msg("Relevant stories found")
	}
}
