// -----------------------------------------------------------------------
// IMAP Service - newsletter mailbox reader
// -----------------------------------------------------------------------

package imap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/models"
)

// Service reads newsletter emails from the configured IMAP mailbox.
type Service struct {
	config *common.IMAPConfig
	logger arbor.ILogger
}

// NewService creates a new IMAP service from the config struct.
func NewService(config *common.IMAPConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
	}
}

// IsConfigured checks if IMAP is configured with the minimum required
// settings.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Username != "" && s.config.Password != ""
}

func (s *Service) mailbox() string {
	if s.config.Mailbox != "" {
		return s.config.Mailbox
	}
	return "INBOX"
}

func (s *Service) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var c *client.Client
	var err error
	if s.config.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(s.config.Username, s.config.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	return c, nil
}

// FetchUnreadEmails fetches unread newsletter emails, optionally filtered by
// subject substring (case-insensitive). HTML-only messages keep their HTML
// body; the ingest layer normalizes it before enrichment.
func (s *Service) FetchUnreadEmails(ctx context.Context, subjectFilter string) ([]models.EmailMessage, []uint32, error) {
	if !s.IsConfigured() {
		return nil, nil, fmt.Errorf("IMAP not configured")
	}

	c, err := s.connect()
	if err != nil {
		return nil, nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(s.mailbox(), false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select %s: %w", s.mailbox(), err)
	}

	if mbox.Messages == 0 {
		s.logger.Debug().Str("mailbox", s.mailbox()).Msg("No messages in mailbox")
		return []models.EmailMessage{}, nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search for unseen messages: %w", err)
	}

	if len(seqNums) == 0 {
		s.logger.Debug().Msg("No unseen messages")
		return []models.EmailMessage{}, nil, nil
	}

	s.logger.Debug().Int("count", len(seqNums)).Msg("Found unseen messages")

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	messages := make(chan *imap.Message, len(seqNums))
	section := &imap.BodySectionName{}

	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, section.FetchItem()}, messages)
	}()

	var emails []models.EmailMessage
	var fetchedIDs []uint32
	for msg := range messages {
		if msg == nil {
			continue
		}

		subject := msg.Envelope.Subject
		if subjectFilter != "" && !strings.Contains(strings.ToLower(subject), strings.ToLower(subjectFilter)) {
			continue
		}

		body, err := s.parseMessageBody(msg, section)
		if err != nil {
			s.logger.Warn().Err(err).Int64("seq", int64(msg.SeqNum)).Msg("Failed to parse message body")
			continue
		}

		from := ""
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}

		emails = append(emails, models.EmailMessage{
			Subject: subject,
			Date:    msg.Envelope.Date,
			From:    from,
			Body:    body,
		})
		fetchedIDs = append(fetchedIDs, msg.SeqNum)
	}

	if err := <-done; err != nil {
		return nil, nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return emails, fetchedIDs, nil
}

// MarkAsRead flags the given messages as seen so the next sweep skips them.
func (s *Service) MarkAsRead(ctx context.Context, messageIDs []uint32) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if !s.IsConfigured() {
		return fmt.Errorf("IMAP not configured")
	}

	c, err := s.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(s.mailbox(), false); err != nil {
		return fmt.Errorf("failed to select %s: %w", s.mailbox(), err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(messageIDs...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	if err := c.Store(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark messages as read: %w", err)
	}

	s.logger.Debug().Int("count", len(messageIDs)).Msg("Marked messages as read")
	return nil
}

// parseMessageBody extracts the text body from an IMAP message, preferring
// text/plain and falling back to text/html.
func (s *Service) parseMessageBody(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("nil message")
	}

	r := msg.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}

	var plainBody, htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read body: %w", err)
			}
			if strings.HasPrefix(contentType, "text/plain") {
				plainBody = string(b)
			} else if strings.HasPrefix(contentType, "text/html") {
				htmlBody = string(b)
			}
		}
	}

	if plainBody != "" {
		return strings.TrimSpace(plainBody), nil
	}
	return strings.TrimSpace(htmlBody), nil
}
