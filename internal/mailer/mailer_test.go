package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailerLogsInsteadOfSending(t *testing.T) {
	var buf bytes.Buffer
	m := LogMailer{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := m.Send(context.Background(), Message{
		To:      "donor@example.com",
		Subject: "Your Blood Donation Certificate",
		Attachments: []Attachment{
			{Filename: "Donation_Certificate.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "donor@example.com")
	assert.Contains(t, buf.String(), `"attachments":1`)
}

func TestSMTPMailerRejectsEmptyRecipient(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 2525, From: "bank@example.com"})
	err := m.Send(context.Background(), Message{Subject: "x"})
	assert.Error(t, err)
}
