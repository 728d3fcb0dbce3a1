package pubflow

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer delivers notification mail over a plain SMTP relay.
type SMTPMailer struct {
	Addr string    // host:port of the relay
	Auth smtp.Auth // optional
}

// NewSMTPMailer creates a mailer for the given relay address.
func NewSMTPMailer(addr string, auth smtp.Auth) *SMTPMailer {
	return &SMTPMailer{Addr: addr, Auth: auth}
}

// Send delivers a single plain-text message. The context is honored only
// between messages; smtp itself has no cancellation support.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body, from string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(m.Addr, m.Auth, from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
