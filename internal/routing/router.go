// Package routing classifies a lead by available contact channel and formats
// approved messages for the matching delivery path. Routing itself is pure;
// dispatch to the queue or CRM happens in the delivery package.
package routing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"leadpilot/internal/generation"
	"leadpilot/internal/lead"
	"leadpilot/internal/logging"
)

// ErrInsufficientContactInfo means the lead has neither a valid email
// address nor a professional-network URL. Non-retryable.
var ErrInsufficientContactInfo = errors.New("lead has no usable contact channel")

// Channel identifies the selected delivery path.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelManual Channel = "manual"
)

// Placeholder tokens used in manual-delivery text so a human operator can
// mass-personalize before sending.
const (
	PlaceholderFirstName = "{{FIRST_NAME}}"
	PlaceholderCompany   = "{{COMPANY}}"
)

// EmailMessage is one queue-ready email.
type EmailMessage struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Step      string `json:"step"`
}

// ManualDelivery is the combined, placeholder-substituted text for a human
// operated channel.
type ManualDelivery struct {
	NetworkURL string `json:"network_url"`
	Text       string `json:"text"`
}

// Directive is the routing outcome for one run. Exactly one of Emails or
// Manual is set, matching Channel.
type Directive struct {
	Channel Channel         `json:"channel"`
	Emails  []EmailMessage  `json:"emails,omitempty"`
	Manual  *ManualDelivery `json:"manual,omitempty"`
}

// Route selects the delivery channel for a set of approved messages.
// A valid email address always wins over a professional-network URL.
func Route(msgs []generation.Message, lc lead.Context) (Directive, error) {
	if len(msgs) == 0 {
		return Directive{}, fmt.Errorf("no approved messages to route for lead %s", lc.ID)
	}

	switch {
	case lc.HasValidEmail():
		emails := make([]EmailMessage, 0, len(msgs))
		for _, m := range msgs {
			emails = append(emails, EmailMessage{
				Recipient: lc.Email,
				Subject:   m.Subject,
				Body:      m.Body,
				Step:      m.Step,
			})
		}
		logging.Router("Routed lead=%s channel=email messages=%d", lc.ID, len(emails))
		return Directive{Channel: ChannelEmail, Emails: emails}, nil

	case lc.HasNetworkURL():
		md := &ManualDelivery{
			NetworkURL: lc.NetworkURL,
			Text:       formatManual(msgs, lc),
		}
		logging.Router("Routed lead=%s channel=manual messages=%d", lc.ID, len(msgs))
		return Directive{Channel: ChannelManual, Manual: md}, nil

	default:
		return Directive{}, fmt.Errorf("%w: lead %s", ErrInsufficientContactInfo, lc.ID)
	}
}

// formatManual concatenates all approved messages under uppercase step labels
// and swaps the lead's first name and company for reusable placeholders.
func formatManual(msgs []generation.Message, lc lead.Context) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("=== ")
		sb.WriteString(strings.ToUpper(m.Step))
		sb.WriteString(" ===\n")
		if m.Subject != "" {
			sb.WriteString("Subject: ")
			sb.WriteString(m.Subject)
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.Body)
	}

	text := sb.String()
	if first := lc.FirstName(); first != "" {
		text = replaceInsensitive(text, first, PlaceholderFirstName)
	}
	if lc.Company != "" {
		text = replaceInsensitive(text, lc.Company, PlaceholderCompany)
	}
	return text
}

// replaceInsensitive replaces every case-insensitive occurrence of old.
// Matching runs on the original string; lowercasing a copy first is unsafe
// because case conversion can change byte offsets for non-ASCII runes.
func replaceInsensitive(text, old, repl string) string {
	if old == "" {
		return text
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(old))
	return re.ReplaceAllLiteralString(text, repl)
}
