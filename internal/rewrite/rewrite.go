// Package rewrite computes the header set of a forwarded message.
//
// ComputeHeaders is a pure function of its arguments: it reads no
// configuration or environment and keeps no state between calls.
package rewrite

import "github.com/shineum/ses-forwarder/internal/message"

// RoutingConfig is the fixed forwarding route for one invocation.
type RoutingConfig struct {
	// SenderOverride, if non-empty, is used as From on every forwarded
	// message. Otherwise the SES recipient address is used.
	SenderOverride string

	// Recipient is the single destination every message is forwarded to.
	Recipient string
}

// ComputeHeaders returns the headers a forwarded copy of msg carries.
//
// The allow-listed headers are copied verbatim when present. To is always
// cfg.Recipient; the original To is never echoed. From is the sender
// override or effectiveRecipient. Reply-To is the original Reply-To, or the
// original From when Reply-To is missing or empty.
func ComputeHeaders(cfg RoutingConfig, effectiveRecipient string, msg *message.Message) message.HeaderSet {
	hs := make(message.HeaderSet, len(message.PreservedHeaders)+3)

	for _, name := range message.PreservedHeaders {
		if msg.Has(name) {
			hs[name] = msg.Get(name)
		}
	}

	hs[message.HeaderTo] = cfg.Recipient

	if cfg.SenderOverride != "" {
		hs[message.HeaderFrom] = cfg.SenderOverride
	} else {
		hs[message.HeaderFrom] = effectiveRecipient
	}

	if replyTo := msg.Get(message.HeaderReplyTo); replyTo != "" {
		hs[message.HeaderReplyTo] = replyTo
	} else {
		hs[message.HeaderReplyTo] = msg.Get(message.HeaderFrom)
	}

	return hs
}
