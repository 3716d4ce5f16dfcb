// Package message defines the stored mail model used by the forwarder and
// the codec that converts it to and from raw RFC 5322 bytes.
package message

import (
	"sort"
	"strings"

	"github.com/emersion/go-message/textproto"
)

// Header names the forwarder reads or writes.
const (
	HeaderMIMEVersion             = "MIME-Version"
	HeaderContentType             = "Content-Type"
	HeaderContentDisposition      = "Content-Disposition"
	HeaderContentTransferEncoding = "Content-Transfer-Encoding"
	HeaderDate                    = "Date"
	HeaderSubject                 = "Subject"
	HeaderTo                      = "To"
	HeaderFrom                    = "From"
	HeaderReplyTo                 = "Reply-To"
)

// PreservedHeaders is the allow-list of headers copied unchanged onto a
// forwarded message, in the order they are written.
var PreservedHeaders = []string{
	HeaderMIMEVersion,
	HeaderContentType,
	HeaderContentDisposition,
	HeaderContentTransferEncoding,
	HeaderDate,
	HeaderSubject,
}

// routingHeaders follow the preserved headers when a HeaderSet is applied.
var routingHeaders = []string{HeaderTo, HeaderFrom, HeaderReplyTo}

// Message is a parsed mail message. Header holds every header field of the
// top-level entity; Body is the raw payload after the header block and is
// never decoded or modified by the codec.
type Message struct {
	Header textproto.Header
	Body   []byte
}

// Get returns the unfolded value of the first field named key, or "" if the
// field is absent. Names are matched case-insensitively.
func (m *Message) Get(key string) string {
	return unfold(m.Header.Get(key))
}

// Has reports whether a field named key is present.
func (m *Message) Has(key string) bool {
	return m.Header.Has(key)
}

// Keys returns the distinct header names present on the message in the
// order they appear.
func (m *Message) Keys() []string {
	var keys []string
	seen := make(map[string]bool)
	fields := m.Header.Fields()
	for fields.Next() {
		k := fields.Key()
		canonical := strings.ToLower(k)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		keys = append(keys, k)
	}
	return keys
}

// HeaderSet maps header names to the values a forwarded message carries.
// It is produced by the rewriter and consumed once by ApplyHeaders.
type HeaderSet map[string]string

// Order returns the names in hs in the order ApplyHeaders writes them:
// preserved headers first, then To, From, Reply-To, then any other names
// sorted alphabetically.
func (hs HeaderSet) Order() []string {
	order := make([]string, 0, len(hs))
	known := make(map[string]bool, len(PreservedHeaders)+len(routingHeaders))
	for _, group := range [][]string{PreservedHeaders, routingHeaders} {
		for _, name := range group {
			known[name] = true
			if _, ok := hs[name]; ok {
				order = append(order, name)
			}
		}
	}

	var extra []string
	for name := range hs {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	return append(order, extra...)
}

// ApplyHeaders removes every header field from msg and replaces them with
// the entries of hs in the order given by hs.Order. The body is untouched.
func ApplyHeaders(msg *Message, hs HeaderSet) {
	var h textproto.Header

	// AddRaw prepends, so fields are inserted last to first. Raw fields keep
	// the spelling of the name (MIME-Version, not Mime-Version).
	order := hs.Order()
	for i := len(order) - 1; i >= 0; i-- {
		h.AddRaw([]byte(order[i] + ": " + hs[order[i]] + "\r\n"))
	}

	msg.Header = h
}

// unfold joins folded header lines back into a single line.
func unfold(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	return strings.NewReplacer("\r\n", "", "\n", "").Replace(v)
}
