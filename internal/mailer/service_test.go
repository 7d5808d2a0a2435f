package mailer

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/foliomail/internal/common"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config common.MailerConfig
		want   bool
	}{
		{
			name: "fully configured",
			config: common.MailerConfig{
				Host: "smtp.gmail.com", Username: "u", Password: "p", From: "f@example.com",
			},
			want: true,
		},
		{
			name:   "empty",
			config: common.MailerConfig{},
			want:   false,
		},
		{
			name: "missing password",
			config: common.MailerConfig{
				Host: "smtp.gmail.com", Username: "u", From: "f@example.com",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&tt.config, common.GetLogger())
			assert.Equal(t, tt.want, svc.IsConfigured())
		})
	}
}

func TestSendEmailUnconfigured(t *testing.T) {
	svc := NewService(&common.MailerConfig{}, common.GetLogger())
	err := svc.SendEmail(context.Background(), "to@example.com", "subject", "body")
	assert.Error(t, err)
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	content := strings.Repeat("newsletter content ", 20)
	encoded := encodeBase64WithLineBreaks(content)

	for _, line := range strings.Split(encoded, "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\r\n", ""))
	assert.NoError(t, err)
	assert.Equal(t, content, string(decoded))
}

func TestGenerateBoundaryUnique(t *testing.T) {
	assert.NotEqual(t, generateBoundary(), generateBoundary())
}
