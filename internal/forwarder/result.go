package forwarder

// Outcome is the terminal state of one forwarding attempt.
type Outcome int

const (
	// OutcomeFailed means the attempt failed and nothing was delivered.
	OutcomeFailed Outcome = iota
	// OutcomeForwarded means the rewritten message was accepted by the relay.
	OutcomeForwarded
	// OutcomeNotified means the relay rejected the message and an error
	// notification was delivered in its place.
	OutcomeNotified
	// OutcomeRejected means a verdict failed and the message was dropped.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeNotified:
		return "notified"
	case OutcomeRejected:
		return "rejected"
	default:
		return "failed"
	}
}

// Result describes one forwarding attempt. Recipient is empty for a
// rejected message since no recipient was attempted.
type Result struct {
	Recipient      string
	MessageID      string
	Outcome        Outcome
	RelayMessageID string
	Err            error
}
