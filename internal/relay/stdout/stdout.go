// Package stdout implements a Relay that prints messages to standard output
// instead of delivering them. It is used for dry runs.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/ses-forwarder/internal/message"
)

// Relay prints a summary of each submitted message.
type Relay struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Relay that writes to os.Stdout.
func New() *Relay {
	return &Relay{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Relay that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Relay {
	return &Relay{writer: w}
}

// SendRaw prints the envelope, the message headers and the body size.
// Messages that cannot be parsed are still reported with their size.
func (r *Relay) SendRaw(_ context.Context, from, to string, raw []byte) (string, error) {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "Envelope-From: %s\n", from)
	fmt.Fprintf(&b, "Envelope-To: %s\n", to)

	if msg, err := message.Parse(raw); err == nil {
		for _, key := range msg.Keys() {
			fmt.Fprintf(&b, "%s: %s\n", key, msg.Get(key))
		}
		fmt.Fprintf(&b, "Body: %s\n", formatSize(len(msg.Body)))
	} else {
		fmt.Fprintf(&b, "Unparsed message: %s\n", formatSize(len(raw)))
	}

	b.WriteString("========================================\n")

	if _, err := fmt.Fprint(r.writer, b.String()); err != nil {
		return "", fmt.Errorf("failed to write message summary: %w", err)
	}
	return "", nil
}

// Name returns the relay name.
func (r *Relay) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
