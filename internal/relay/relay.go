// Package relay defines the interface for outbound mail relays.
package relay

import "context"

// Relay submits fully formed raw messages for delivery.
// Each relay handles the actual transport to the target service
// (e.g., SES, Microsoft Graph, an SMTP submission server).
type Relay interface {
	// SendRaw submits raw as a message from the given sender to the given
	// recipient. It returns the relay's message ID, which may be empty if
	// the relay does not report one.
	SendRaw(ctx context.Context, from, to string, raw []byte) (string, error)

	// Name returns the human-readable name of this relay.
	Name() string
}
