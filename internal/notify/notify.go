// Package notify builds the diagnostic email sent when a forwarded message
// cannot be submitted to the relay.
package notify

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/ses-forwarder/internal/message"
)

// Subject is the fixed subject of every error notification.
const Subject = "Email forwarding error"

// BuildErrorMessage returns a plain-text message addressed with the From and
// To of the attempted message. The body names the original sender (its
// Reply-To), the original subject and the failure detail.
func BuildErrorMessage(attempted *message.Message, failureDetail string) (*message.Message, error) {
	var h mail.Header
	h.Set(message.HeaderFrom, attempted.Get(message.HeaderFrom))
	h.Set(message.HeaderTo, attempted.Get(message.HeaderTo))
	h.SetSubject(Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create error message: %w", err)
	}
	if _, err := io.WriteString(w, errorText(attempted, failureDetail)); err != nil {
		return nil, fmt.Errorf("failed to write error message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish error message: %w", err)
	}

	return message.Parse(buf.Bytes())
}

func errorText(attempted *message.Message, failureDetail string) string {
	var b strings.Builder

	b.WriteString("There was an error forwarding an email to SES.\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Original Sender: %s\r\n", attempted.Get(message.HeaderReplyTo))
	fmt.Fprintf(&b, "Original Subject: %s\r\n", originalSubject(attempted))
	b.WriteString("\r\n")
	b.WriteString("Error:\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.TrimSpace(failureDetail))
	b.WriteString("\r\n")

	return b.String()
}

// originalSubject returns the decoded Subject of attempted, or the raw value
// if it holds a malformed encoded-word or an unknown charset.
func originalSubject(attempted *message.Message) string {
	h := mail.Header{Header: gomessage.Header{Header: attempted.Header}}
	subject, err := h.Subject()
	if err != nil {
		return attempted.Get(message.HeaderSubject)
	}
	return subject
}
