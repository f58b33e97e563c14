// Package mailer sends plain-text notification mail.
package mailer

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// ErrNoRecipients is returned when a message has an empty recipient
// list.
var ErrNoRecipients = errors.New("no recipients")

// Message is a plain-text mail.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(msg Message) error
}

// Config holds SMTP configuration.
type Config struct {
	Host string
	Port int
	From string
	// Optional auth; unauthenticated relays leave these empty.
	Username string
	Password string
}

// SMTPSender delivers mail over a plain SMTP connection.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers the message to all recipients in one SMTP session.
func (s *SMTPSender) Send(msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
