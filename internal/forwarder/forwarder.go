// Package forwarder handles SES receipt events: it gates each message on its
// verdicts, rewrites its headers for the fixed forwarding route, submits it
// through the relay and falls back to an error notification when the relay
// rejects it.
package forwarder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/shineum/ses-forwarder/internal/message"
	"github.com/shineum/ses-forwarder/internal/notify"
	"github.com/shineum/ses-forwarder/internal/relay"
	"github.com/shineum/ses-forwarder/internal/rewrite"
	"github.com/shineum/ses-forwarder/internal/store"
	"github.com/shineum/ses-forwarder/internal/verdict"
)

// largeBodySize is the size of the body injected by Options.LargeBody. It
// exceeds the SES raw message limit.
const largeBodySize = 20000000

var (
	// ErrInvalidEvent is returned when the trigger event lacks a message ID
	// or recipients.
	ErrInvalidEvent = errors.New("invalid SES event")

	// ErrFetchFailed is returned when the stored message cannot be read.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrSubmissionFailed marks a relay rejection of the forwarded message.
	// It is recovered by sending an error notification and only surfaces in
	// Result.Err.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrNotificationFailed is returned when the error notification itself
	// could not be submitted.
	ErrNotificationFailed = errors.New("notification failed")
)

// Options configures a Dispatcher.
type Options struct {
	Routing rewrite.RoutingConfig

	// LargeBody replaces the forwarded body with a 20 MB text body after the
	// headers are applied, to exercise the error notification path.
	LargeBody bool

	// LogBody logs each serialized forwarded message at info level.
	LogBody bool
}

// Dispatcher forwards the messages named by SES events. It holds no state
// between events; one Dispatcher serves every invocation of the process.
type Dispatcher struct {
	store store.Store
	relay relay.Relay
	opts  Options
}

// New creates a Dispatcher reading from s and submitting through r.
func New(s store.Store, r relay.Relay, opts Options) *Dispatcher {
	return &Dispatcher{store: s, relay: r, opts: opts}
}

// HandleEvent is the Lambda entry point. It returns nil when every
// recipient was forwarded or notified, or the message was rejected.
func (d *Dispatcher) HandleEvent(ctx context.Context, event events.SimpleEmailEvent) error {
	_, err := d.Handle(ctx, event)
	return err
}

// Handle processes every record of event and returns one Result per
// forwarding attempt, or a single rejected Result for a gated record.
// Errors of individual attempts are joined; an attempt failing never stops
// the attempts that follow it.
func (d *Dispatcher) Handle(ctx context.Context, event events.SimpleEmailEvent) ([]Result, error) {
	slog.Info("received event", "input_event", event)

	if len(event.Records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrInvalidEvent)
	}

	var (
		results []Result
		errs    []error
	)
	for i := range event.Records {
		res, err := d.handleRecord(ctx, &event.Records[i])
		results = append(results, res...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return results, errors.Join(errs...)
}

func (d *Dispatcher) handleRecord(ctx context.Context, rec *events.SimpleEmailRecord) ([]Result, error) {
	messageID := rec.SES.Mail.MessageID
	if messageID == "" {
		return nil, fmt.Errorf("%w: missing messageId", ErrInvalidEvent)
	}
	slog.Debug("handling record", "message_id", messageID)

	// A failing verdict rejects the message for every recipient.
	if verdict.IsRejected(verdict.FromReceipt(rec.SES.Receipt)) {
		slog.Error("rejecting spam message", "message_id", messageID)
		return []Result{{MessageID: messageID, Outcome: OutcomeRejected}}, nil
	}

	recipients := rec.SES.Receipt.Recipients
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: message %s has no recipients", ErrInvalidEvent, messageID)
	}

	results := make([]Result, 0, len(recipients))
	var errs []error
	for _, recipient := range recipients {
		res, err := d.ForwardOne(ctx, recipient, messageID)
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return results, errors.Join(errs...)
}

// ForwardOne fetches the message, rewrites its headers for recipient and
// submits it. If the relay rejects the message an error notification is
// submitted instead and the returned error is nil; Result.Err then carries
// the rejection. Fetch, parse and notification failures are returned.
func (d *Dispatcher) ForwardOne(ctx context.Context, recipient, messageID string) (Result, error) {
	res := Result{Recipient: recipient, MessageID: messageID, Outcome: OutcomeFailed}

	raw, err := d.store.Get(ctx, messageID)
	if err != nil {
		res.Err = fmt.Errorf("%w: message %s from %s: %w", ErrFetchFailed, messageID, d.store.Name(), err)
		return res, res.Err
	}

	msg, err := message.Parse(raw)
	if err != nil {
		res.Err = fmt.Errorf("message %s: %w", messageID, err)
		return res, res.Err
	}
	slog.Debug("fetched message", "message_id", messageID, "size", len(raw), "headers", msg.Keys())

	headers := rewrite.ComputeHeaders(d.opts.Routing, recipient, msg)
	message.ApplyHeaders(msg, headers)

	if d.opts.LargeBody {
		slog.Info("setting a huge body", "message_id", messageID)
		replaceWithLargeBody(msg)
	}

	out, err := message.Serialize(msg)
	if err != nil {
		res.Err = fmt.Errorf("message %s: %w", messageID, err)
		return res, res.Err
	}
	if d.opts.LogBody {
		slog.Info("forwarded message", "message_id", messageID, "email_body", string(out))
	}

	from, to := headers[message.HeaderFrom], headers[message.HeaderTo]
	relayID, err := d.relay.SendRaw(ctx, from, to, out)
	if err == nil {
		slog.Info("forwarded email",
			"message_id", messageID,
			"recipient", recipient,
			"relay", d.relay.Name(),
			"relay_message_id", relayID,
		)
		res.Outcome = OutcomeForwarded
		res.RelayMessageID = relayID
		return res, nil
	}

	submitErr := fmt.Errorf("%w: message %s via %s: %w", ErrSubmissionFailed, messageID, d.relay.Name(), err)
	slog.Error("error sending forwarded email",
		"message_id", messageID,
		"recipient", recipient,
		"size", len(out),
		"error", err,
	)

	relayID, err = d.sendErrorNotification(ctx, msg, failureDetail(d.relay.Name(), len(out), err))
	if err != nil {
		res.Err = fmt.Errorf("%w: message %s: %w (after %v)", ErrNotificationFailed, messageID, err, submitErr)
		return res, res.Err
	}

	slog.Warn("sent error notification",
		"message_id", messageID,
		"recipient", recipient,
		"relay_message_id", relayID,
	)
	res.Outcome = OutcomeNotified
	res.RelayMessageID = relayID
	res.Err = submitErr
	return res, nil
}

func (d *Dispatcher) sendErrorNotification(ctx context.Context, attempted *message.Message, detail string) (string, error) {
	notice, err := notify.BuildErrorMessage(attempted, detail)
	if err != nil {
		return "", err
	}
	out, err := message.Serialize(notice)
	if err != nil {
		return "", err
	}
	return d.relay.SendRaw(ctx, notice.Get(message.HeaderFrom), notice.Get(message.HeaderTo), out)
}

func failureDetail(relayName string, size int, err error) string {
	return fmt.Sprintf("Relay: %s\r\nMessage size: %d bytes\r\n\r\n%v", relayName, size, err)
}

// replaceWithLargeBody swaps the content of msg for a single oversized
// text/plain part. Routing headers are kept.
func replaceWithLargeBody(msg *message.Message) {
	msg.Header.Del(message.HeaderContentDisposition)
	msg.Header.Set(message.HeaderContentType, "text/plain; charset=utf-8")
	msg.Header.Set(message.HeaderContentTransferEncoding, "7bit")
	msg.Body = bytes.Repeat([]byte("x"), largeBodySize)
}
