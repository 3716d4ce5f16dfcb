package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements GetObjectAPI for testing.
type mockS3Client struct {
	getFn     func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	callCount int
	lastInput *awss3.GetObjectInput
}

func (m *mockS3Client) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.getFn != nil {
		return m.getFn(ctx, params, optFns...)
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("Subject: hi\r\n\r\nbody"))}, nil
}

func TestName(t *testing.T) {
	t.Parallel()
	s := NewWithClient(S3StoreConfig{Bucket: "mail"}, &mockS3Client{})
	if got := s.Name(); got != "s3" {
		t.Errorf("Name(): got %q, want %q", got, "s3")
	}
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "abc123"},
		{prefix: "inbound", want: "inbound/abc123"},
		{prefix: "/inbound/", want: "inbound/abc123"},
		{prefix: "mail/inbound", want: "mail/inbound/abc123"},
	}

	for _, tt := range tests {
		s := NewWithClient(S3StoreConfig{Bucket: "mail", Prefix: tt.prefix}, &mockS3Client{})
		if got := s.ObjectKey("abc123"); got != tt.want {
			t.Errorf("ObjectKey with prefix %q: got %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	mock := &mockS3Client{}
	s := NewWithClient(S3StoreConfig{Bucket: "mail-bucket", Prefix: "inbound"}, mock)

	raw, err := s.Get(context.Background(), "o3vrnil0e2ic28trm7dfhrc2v0clambda4nbp0g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := string(raw); got != "Subject: hi\r\n\r\nbody" {
		t.Errorf("raw: got %q", got)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
	if got := *mock.lastInput.Bucket; got != "mail-bucket" {
		t.Errorf("Bucket: got %q, want %q", got, "mail-bucket")
	}
	if got := *mock.lastInput.Key; got != "inbound/o3vrnil0e2ic28trm7dfhrc2v0clambda4nbp0g1" {
		t.Errorf("Key: got %q", got)
	}
}

func TestGet_MissingKey(t *testing.T) {
	t.Parallel()

	mock := &mockS3Client{
		getFn: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return nil, &types.NoSuchKey{}
		},
	}
	s := NewWithClient(S3StoreConfig{Bucket: "mail-bucket"}, mock)

	_, err := s.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var nsk *types.NoSuchKey
	if !errors.As(err, &nsk) {
		t.Errorf("expected wrapped NoSuchKey, got %v", err)
	}
	if !strings.Contains(err.Error(), "s3://mail-bucket/missing") {
		t.Errorf("error should name the object: %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestGet_ReadError(t *testing.T) {
	t.Parallel()

	mock := &mockS3Client{
		getFn: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return &awss3.GetObjectOutput{Body: io.NopCloser(failingReader{})}, nil
		},
	}
	s := NewWithClient(S3StoreConfig{Bucket: "mail-bucket"}, mock)

	if _, err := s.Get(context.Background(), "id"); err == nil {
		t.Fatal("expected error, got nil")
	}
}
