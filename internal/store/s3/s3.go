// Package s3 implements a Store that reads messages SES wrote to an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3StoreConfig holds the configuration for creating an S3Store.
type S3StoreConfig struct {
	Bucket string
	// Prefix is the object key prefix SES writes under. Leading and
	// trailing slashes are ignored.
	Prefix string
}

// GetObjectAPI is the interface for the S3 GetObject operation.
// Used for testing with mock implementations.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// S3Store fetches raw inbound messages from S3.
type S3Store struct {
	bucket string
	prefix string
	client GetObjectAPI
}

// New creates an S3Store using a client built from awsCfg.
func New(awsCfg aws.Config, cfg S3StoreConfig) *S3Store {
	return NewWithClient(cfg, awss3.NewFromConfig(awsCfg))
}

// NewWithClient creates an S3Store with a custom client, used for testing.
func NewWithClient(cfg S3StoreConfig, client GetObjectAPI) *S3Store {
	return &S3Store{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		client: client,
	}
}

// Get reads the object stored for messageID.
func (s *S3Store) Get(ctx context.Context, messageID string) ([]byte, error) {
	key := s.ObjectKey(messageID)

	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}

	return raw, nil
}

// ObjectKey returns the key SES uses for messageID: "prefix/messageID", or
// just messageID when no prefix is configured.
func (s *S3Store) ObjectKey(messageID string) string {
	if s.prefix == "" {
		return messageID
	}
	return s.prefix + "/" + messageID
}

// Name returns the store name.
func (s *S3Store) Name() string {
	return "s3"
}
