// Package verdict decides whether an inbound message is forwarded based on
// the spam, virus and authentication verdicts attached by SES.
package verdict

import (
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

// Tracked verdict names, as they appear in the SES receipt.
const (
	Spam  = "spamVerdict"
	Virus = "virusVerdict"
	SPF   = "spfVerdict"
	DKIM  = "dkimVerdict"
	DMARC = "dmarcVerdict"
)

// StatusFail is the only status that rejects a message.
const StatusFail = "FAIL"

// Tracked lists the verdicts consulted by IsRejected.
var Tracked = []string{Spam, Virus, SPF, DKIM, DMARC}

// Set maps a verdict name to its status string.
type Set map[string]string

// FromReceipt extracts the tracked verdicts from an SES receipt. Verdicts
// the receipt does not carry are left out of the set.
func FromReceipt(r events.SimpleEmailReceipt) Set {
	s := Set{}
	for name, status := range map[string]string{
		Spam:  r.SpamVerdict.Status,
		Virus: r.VirusVerdict.Status,
		SPF:   r.SPFVerdict.Status,
		DKIM:  r.DKIMVerdict.Status,
		DMARC: r.DMARCVerdict.Status,
	} {
		if status != "" {
			s[name] = status
		}
	}
	return s
}

// IsRejected reports whether any tracked verdict has status FAIL. Missing
// verdicts count as a pass.
func IsRejected(s Set) bool {
	rejected := false
	for _, name := range Tracked {
		status, ok := s[name]
		if !ok {
			continue
		}
		slog.Debug("verdict", "verdict", name, "status", status)
		if status == StatusFail {
			rejected = true
		}
	}
	return rejected
}
