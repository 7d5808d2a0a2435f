package interfaces

import (
	"context"

	"github.com/ternarybob/foliomail/internal/models"
)

// Renderer turns a compiled newsletter into a paginated visual document.
type Renderer interface {
	// RenderNewsletter renders the compiled newsletter to PDF bytes. An
	// empty-body newsletter renders a "no relevant stories" document, not
	// an error.
	RenderNewsletter(newsletter *models.CompiledNewsletter) ([]byte, error)

	// RenderSections renders per-ticker sections to PDF bytes.
	RenderSections(title string, sections []models.TickerSection) ([]byte, error)
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string // Filename for the attachment
	ContentType string // MIME type (e.g., "application/pdf")
	Content     []byte // Raw content bytes
}

// Mailer is the outbound email transport.
type Mailer interface {
	// SendEmail sends a plain text email.
	SendEmail(ctx context.Context, to, subject, body string) error

	// SendEmailWithAttachments sends an email with file attachments.
	SendEmailWithAttachments(ctx context.Context, to, subject, body string, attachments []Attachment) error
}
