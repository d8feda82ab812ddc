package gmail

import (
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

const (
	// LabelUnread is the system label Gmail puts on unread messages.
	LabelUnread = "UNREAD"

	defaultSubject = "(No Subject)"
	defaultSender  = "Unknown"
)

// Message is the subset of a Gmail message the ingestion pipeline works with.
type Message struct {
	ID         string
	ThreadID   string
	From       string
	Subject    string
	ReceivedAt time.Time
	Unread     bool
	Snippet    string
	LabelIDs   []string

	payload *gmail.MessagePart
}

// NewMessage converts a message fetched in "full" format.
func NewMessage(m *gmail.Message) *Message {
	msg := &Message{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		From:     HeaderValue(m, "From"),
		Subject:  HeaderValue(m, "Subject"),
		Snippet:  m.Snippet,
		LabelIDs: m.LabelIds,
		payload:  m.Payload,
	}
	if msg.ThreadID == "" {
		msg.ThreadID = m.Id
	}
	if msg.From == "" {
		msg.From = defaultSender
	}
	if msg.Subject == "" {
		msg.Subject = defaultSubject
	}
	if m.InternalDate > 0 {
		msg.ReceivedAt = time.UnixMilli(m.InternalDate).UTC()
	}
	for _, id := range m.LabelIds {
		if id == LabelUnread {
			msg.Unread = true
			break
		}
	}
	return msg
}

// Body extracts the message text. See ExtractBody.
func (m *Message) Body() string {
	return ExtractBody(m.payload, m.Snippet)
}

// HeaderValue extracts a header value from a Gmail message.
// Header names are matched case-insensitively.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}
