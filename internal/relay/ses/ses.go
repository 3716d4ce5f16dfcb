// Package ses implements a Relay that submits raw messages via AWS SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
)

// SESRelay submits messages through the SES v2 SendEmail API using raw
// content, so the message bytes are delivered exactly as built.
// @MX:ANCHOR: [AUTO] External system integration point for AWS SES
// @MX:REASON: All forwarded and error messages flow through this relay when SES is configured
type SESRelay struct {
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SESRelay using a client built from awsCfg.
func New(awsCfg aws.Config) *SESRelay {
	return NewWithClient(sesv2.NewFromConfig(awsCfg))
}

// NewWithClient creates a SESRelay with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *SESRelay {
	return &SESRelay{client: client}
}

// SendRaw submits raw with from as the envelope sender and to as the only
// destination. The relay does not retry; the SDK's own retryer handles
// throttling and connection errors before an error is returned.
func (s *SESRelay) SendRaw(ctx context.Context, from, to string, raw []byte) (string, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: raw,
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			slog.Warn("SES API error",
				"code", apiErr.ErrorCode(),
				"message", apiErr.ErrorMessage(),
				"size", len(raw),
			)
		}
		return "", fmt.Errorf("SES SendEmail failed: %w", err)
	}

	return aws.ToString(out.MessageId), nil
}

// Name returns the relay name.
func (s *SESRelay) Name() string {
	return "ses"
}
