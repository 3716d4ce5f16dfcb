// Package store defines the interface for retrieving stored inbound messages.
package store

import "context"

// Store returns the raw bytes of an inbound message by its SES message ID.
// Implementations map the ID to their own key layout.
type Store interface {
	// Get fetches the raw message. It returns an error if the message is
	// missing or the backend is unreachable.
	Get(ctx context.Context, messageID string) ([]byte, error)

	// Name returns the human-readable name of this store.
	Name() string
}
