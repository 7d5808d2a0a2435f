package models

import (
	"fmt"
	"strings"
	"time"
)

// EmailMessage is one raw newsletter email. Immutable once ingested; owned by
// the batch for the duration of one dispatch run.
type EmailMessage struct {
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	From    string    `json:"from" validate:"required"`
	Body    string    `json:"body" validate:"required"`
}

// IngestRequest is the shape accepted at the ingestion boundary.
type IngestRequest struct {
	Emails []EmailMessage `json:"emails" validate:"required,min=1,dive"`
}

// CombineStories concatenates email bodies into the single stories blob handed
// to enrichment. Each story is tagged with its author so the model can cite
// the original source.
func CombineStories(emails []EmailMessage) string {
	var sb strings.Builder
	for i, email := range emails {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("Author: %s\n", email.From))
		sb.WriteString(fmt.Sprintf("Story: %s", email.Body))
	}
	return sb.String()
}
