package message

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
)

// ErrMalformedMessage is returned when raw bytes cannot be read as an
// internet message.
var ErrMalformedMessage = errors.New("malformed message")

// Parse parses a raw RFC 5322 message. The header block is decoded into
// fields and everything after the blank separator line is kept verbatim as
// the body. The MIME tree is walked once to reject structurally broken
// multipart messages; content is never decoded into the result.
func Parse(raw []byte) (*Message, error) {
	br := bufio.NewReader(bytes.NewReader(raw))

	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrMalformedMessage, err)
	}
	if h.Len() == 0 {
		return nil, fmt.Errorf("%w: no header fields", ErrMalformedMessage)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrMalformedMessage, err)
	}

	msg := &Message{Header: h, Body: body}
	if err := validateStructure(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	return msg, nil
}

// Serialize writes msg back to raw bytes: the header block, the blank
// separator line and the body exactly as held.
func Serialize(msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(msg.Body) + 1024)

	if err := textproto.WriteHeader(&buf, msg.Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	buf.Write(msg.Body)

	return buf.Bytes(), nil
}

// validateStructure checks multipart boundaries and walks every part so a
// truncated or mis-delimited MIME tree is reported instead of forwarded.
// Unknown charsets and transfer encodings are tolerated because content is
// never decoded.
func validateStructure(msg *Message) error {
	mh := gomessage.Header{Header: msg.Header}
	mediaType, params, err := mh.ContentType()
	if err != nil {
		if mh.Get(HeaderContentType) == "" {
			return nil
		}
		return fmt.Errorf("invalid content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil
	}
	if params["boundary"] == "" {
		return fmt.Errorf("multipart message missing boundary")
	}

	entity, err := gomessage.New(mh, bytes.NewReader(msg.Body))
	if err != nil && !tolerable(err) {
		return fmt.Errorf("failed to read entity: %w", err)
	}

	return entity.Walk(func(_ []int, _ *gomessage.Entity, err error) error {
		if err != nil && !tolerable(err) {
			return fmt.Errorf("failed to read part: %w", err)
		}
		return nil
	})
}

func tolerable(err error) bool {
	return gomessage.IsUnknownCharset(err) || gomessage.IsUnknownEncoding(err)
}
