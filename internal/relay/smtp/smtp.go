// Package smtp implements a Relay that submits messages to an SMTP
// submission server, such as the SES SMTP interface.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// SMTPRelayConfig holds the configuration for creating an SMTPRelay.
type SMTPRelayConfig struct {
	// Addr is the host:port of the submission server.
	Addr string
	// Username and Password enable AUTH PLAIN when both are set.
	Username string
	Password string
}

// sendMailFunc matches gosmtp.SendMail.
type sendMailFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTPRelay submits raw messages with MAIL FROM / RCPT TO / DATA. STARTTLS
// is used whenever the server offers it.
type SMTPRelay struct {
	addr     string
	auth     sasl.Client
	sendMail sendMailFunc
}

// New creates a new SMTPRelay with the given configuration.
func New(cfg SMTPRelayConfig) *SMTPRelay {
	var auth sasl.Client
	if cfg.Username != "" && cfg.Password != "" {
		auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}
	return &SMTPRelay{
		addr:     cfg.Addr,
		auth:     auth,
		sendMail: gosmtp.SendMail,
	}
}

// SendRaw submits raw with the addresses of from and to as the envelope.
// Both may be full mailbox forms such as "Name <user@example.com>". SMTP
// servers do not return a message ID, so the returned ID is always empty.
func (s *SMTPRelay) SendRaw(ctx context.Context, from, to string, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	envFrom, err := envelopeAddress(from)
	if err != nil {
		return "", fmt.Errorf("invalid sender: %w", err)
	}
	envTo, err := envelopeAddress(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}

	if err := s.sendMail(s.addr, s.auth, envFrom, []string{envTo}, bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("SMTP submission to %s failed: %w", s.addr, err)
	}
	return "", nil
}

// Name returns the relay name.
func (s *SMTPRelay) Name() string {
	return "smtp"
}

func envelopeAddress(v string) (string, error) {
	addr, err := mail.ParseAddress(v)
	if err != nil {
		return "", fmt.Errorf("failed to parse address %q: %w", v, err)
	}
	return addr.Address, nil
}
