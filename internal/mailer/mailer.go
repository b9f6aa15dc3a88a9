// Package mailer sends transactional mail. Delivery failures never abort the
// operation that triggered them; callers log and continue.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"ballotbox/internal/platform/config"
)

// Sender delivers a message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// SMTP sends mail through a plain SMTP relay.
type SMTP struct {
	cfg config.SMTPConfig
}

func NewSMTP(cfg config.SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

func (m *SMTP) Send(_ context.Context, recipient, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	msg := []byte("From: " + m.cfg.From + "\r\n" +
		"To: " + recipient + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return nil
}

// Noop discards all mail. Used in development and tests.
type Noop struct{}

func (Noop) Send(context.Context, string, string, string) error { return nil }
