package rewrite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shineum/ses-forwarder/internal/message"
)

func parseFixture(t *testing.T, name string) *message.Message {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	msg, err := message.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return msg
}

func TestComputeHeaders_MultipleRecipients(t *testing.T) {
	t.Parallel()

	msg := parseFixture(t, "multiple_recipients.eml")
	if got := len(strings.Split(msg.Get("To"), ",")); got != 3 {
		t.Fatalf("fixture To: got %d addresses, want 3", got)
	}

	cfg := RoutingConfig{SenderOverride: "", Recipient: "someone@secret.com"}
	hs := ComputeHeaders(cfg, "code@coder.dev", msg)

	if got := hs["To"]; got != "someone@secret.com" {
		t.Errorf("To: got %q, want %q", got, "someone@secret.com")
	}
	if got := hs["From"]; got != "code@coder.dev" {
		t.Errorf("From: got %q, want %q", got, "code@coder.dev")
	}
	if got := hs["Subject"]; got != "test 3 addresses" {
		t.Errorf("Subject: got %q, want %q", got, "test 3 addresses")
	}
	if got := hs["Reply-To"]; got != "Alpha Sigma <user@users.com>" {
		t.Errorf("Reply-To: got %q, want %q", got, "Alpha Sigma <user@users.com>")
	}
	if _, ok := hs["Content-Disposition"]; ok {
		t.Error("Content-Disposition should not be present")
	}
}

func TestComputeHeaders_SenderOverride(t *testing.T) {
	t.Parallel()

	msg := parseFixture(t, "multiple_recipients.eml")
	cfg := RoutingConfig{SenderOverride: "fixed@coder.dev", Recipient: "someone@secret.com"}
	hs := ComputeHeaders(cfg, "code@coder.dev", msg)

	if got := hs["To"]; got != "someone@secret.com" {
		t.Errorf("To: got %q, want %q", got, "someone@secret.com")
	}
	if got := hs["From"]; got != "fixed@coder.dev" {
		t.Errorf("From: got %q, want %q", got, "fixed@coder.dev")
	}
}

func TestComputeHeaders_ReplyTo(t *testing.T) {
	t.Parallel()

	msg := parseFixture(t, "reply_to.eml")
	cfg := RoutingConfig{Recipient: "someone@secret.com"}
	hs := ComputeHeaders(cfg, "code@coder.dev", msg)

	if got := hs["Subject"]; got != "test reply-to" {
		t.Errorf("Subject: got %q, want %q", got, "test reply-to")
	}
	if got := hs["Reply-To"]; got != "My Alias <alias@alias.com>" {
		t.Errorf("Reply-To: got %q, want %q", got, "My Alias <alias@alias.com>")
	}

	message.ApplyHeaders(msg, hs)

	if got := msg.Get("From"); got != "code@coder.dev" {
		t.Errorf("applied From: got %q, want %q", got, "code@coder.dev")
	}
	if got := msg.Get("To"); got != "someone@secret.com" {
		t.Errorf("applied To: got %q, want %q", got, "someone@secret.com")
	}
	if got := msg.Get("Subject"); got != "test reply-to" {
		t.Errorf("applied Subject: got %q, want %q", got, "test reply-to")
	}
	if got := msg.Get("Reply-To"); got != "My Alias <alias@alias.com>" {
		t.Errorf("applied Reply-To: got %q, want %q", got, "My Alias <alias@alias.com>")
	}
}

func TestComputeHeaders_PreservedHeaders(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"MIME-Version: 1.0",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=\"x.pdf\"",
		"Content-Transfer-Encoding: base64",
		"Date: Thu, 16 Apr 2026 09:30:00 +0200",
		"Subject: =?UTF-8?B?w6ljaG8=?=",
		"From: a@example.com",
		"To: b@example.com",
		"Cc: c@example.com",
		"X-Mailer: something",
		"",
		"JVBERi0=",
	}, "\r\n")
	msg, err := message.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hs := ComputeHeaders(RoutingConfig{Recipient: "dest@example.net"}, "alias@example.com", msg)

	want := map[string]string{
		"MIME-Version":              "1.0",
		"Content-Type":              "application/pdf",
		"Content-Disposition":       "attachment; filename=\"x.pdf\"",
		"Content-Transfer-Encoding": "base64",
		"Date":                      "Thu, 16 Apr 2026 09:30:00 +0200",
		"Subject":                   "=?UTF-8?B?w6ljaG8=?=",
		"To":                        "dest@example.net",
		"From":                      "alias@example.com",
		"Reply-To":                  "a@example.com",
	}
	if len(hs) != len(want) {
		t.Errorf("len: got %d, want %d (%v)", len(hs), len(want), hs)
	}
	for k, v := range want {
		if hs[k] != v {
			t.Errorf("%s: got %q, want %q", k, hs[k], v)
		}
	}
	for _, k := range []string{"Cc", "X-Mailer"} {
		if _, ok := hs[k]; ok {
			t.Errorf("%s should not be carried over", k)
		}
	}
}

func TestComputeHeaders_EmptyReplyToFallsBackToFrom(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"From: Real Sender <real@example.org>",
		"Reply-To: ",
		"To: x@example.com",
		"",
		"hi",
	}, "\r\n")
	msg, err := message.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hs := ComputeHeaders(RoutingConfig{Recipient: "dest@example.net"}, "alias@example.com", msg)
	if got := hs["Reply-To"]; got != "Real Sender <real@example.org>" {
		t.Errorf("Reply-To: got %q, want %q", got, "Real Sender <real@example.org>")
	}
}

func TestComputeHeaders_IgnoresForgedToAndFrom(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"From: attacker@evil.example",
		"From: second@evil.example",
		"To: victim@example.com",
		"To: other@evil.example",
		"Subject: forged",
		"",
		"body",
	}, "\r\n")
	msg, err := message.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hs := ComputeHeaders(RoutingConfig{Recipient: "dest@example.net"}, "alias@example.com", msg)
	message.ApplyHeaders(msg, hs)

	out, err := message.Serialize(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(out)
	if strings.Count(s, "\nTo: ") != 1 {
		t.Errorf("expected exactly one To header:\n%s", s)
	}
	if strings.Count(s, "\nFrom: ") != 1 {
		t.Errorf("expected exactly one From header:\n%s", s)
	}
	if strings.Contains(s, "victim@example.com") || strings.Contains(s, "other@evil.example") {
		t.Errorf("original To leaked:\n%s", s)
	}
	if got := msg.Get("From"); got != "alias@example.com" {
		t.Errorf("From: got %q, want %q", got, "alias@example.com")
	}
}

func TestComputeHeaders_Deterministic(t *testing.T) {
	t.Parallel()

	msg := parseFixture(t, "reply_to.eml")
	cfg := RoutingConfig{SenderOverride: "fixed@coder.dev", Recipient: "someone@secret.com"}

	first := ComputeHeaders(cfg, "code@coder.dev", msg)
	for i := 0; i < 10; i++ {
		next := ComputeHeaders(cfg, "code@coder.dev", msg)
		if len(next) != len(first) {
			t.Fatalf("run %d: len %d, want %d", i, len(next), len(first))
		}
		for k, v := range first {
			if next[k] != v {
				t.Errorf("run %d: %s got %q, want %q", i, k, next[k], v)
			}
		}
	}
}
