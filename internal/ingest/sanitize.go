package ingest

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/models"
)

// Sanitizer normalizes raw newsletter bodies before enrichment. HTML
// newsletters are stripped of script/style noise and converted to markdown
// so the enrichment prompt carries readable text instead of markup.
type Sanitizer struct {
	logger arbor.ILogger
}

// NewSanitizer creates a sanitizer.
func NewSanitizer(logger arbor.ILogger) *Sanitizer {
	return &Sanitizer{logger: logger}
}

// SanitizeBatch normalizes every email body in place and returns the batch.
func (s *Sanitizer) SanitizeBatch(emails []models.EmailMessage) []models.EmailMessage {
	for i := range emails {
		emails[i].Body = s.Sanitize(emails[i].Body)
	}
	return emails
}

// Sanitize converts an HTML body to markdown text. Plain text bodies pass
// through unchanged.
func (s *Sanitizer) Sanitize(body string) string {
	if !looksLikeHTML(body) {
		return strings.TrimSpace(body)
	}

	cleaned := stripNoise(body, s.logger)

	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(cleaned)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, keeping raw body")
		return strings.TrimSpace(body)
	}

	trimmed := strings.TrimSpace(converted)
	if trimmed == "" {
		s.logger.Warn().
			Int("html_length", len(body)).
			Msg("HTML to markdown conversion produced empty output, keeping raw body")
		return strings.TrimSpace(body)
	}

	return trimmed
}

// stripNoise removes script, style and head elements that carry no
// newsletter content.
func stripNoise(html string, logger arbor.ILogger) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to parse HTML body, skipping noise removal")
		return html
	}

	doc.Find("script, style, head, noscript").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return html
	}
	return cleaned
}

// looksLikeHTML is a cheap check for markup in a newsletter body.
func looksLikeHTML(body string) bool {
	lowered := strings.ToLower(body)
	return strings.Contains(lowered, "<html") ||
		strings.Contains(lowered, "<body") ||
		strings.Contains(lowered, "<div") ||
		strings.Contains(lowered, "<table") ||
		strings.Contains(lowered, "<p>")
}
