package models

import (
	"strconv"
	"time"
)

// Message is one chat message, normalized from the chat service's wire format.
type Message struct {
	Text         string       `json:"text"`
	AuthorID     string       `json:"author_id"`
	AuthorName   string       `json:"author_name"`
	Channel      string       `json:"channel"`
	ChannelID    string       `json:"channel_id"`
	Timestamp    string       `json:"ts"`
	ThreadRootTS string       `json:"thread_ts,omitempty"`
	IsReply      bool         `json:"is_reply"`
	ReplyCount   int          `json:"reply_count"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file shared with a message.
type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"type"`
	Size     int64  `json:"size"`
}

// ThreadID returns the root timestamp of the message's thread. Roots are their own thread.
func (m *Message) ThreadID() string {
	if m.ThreadRootTS != "" {
		return m.ThreadRootTS
	}
	return m.Timestamp
}

// Key identifies the message across channels; Slack timestamps are only
// unique within one channel.
func (m *Message) Key() string {
	return m.ChannelID + ":" + m.Timestamp
}

// ThreadKey identifies the message's thread across channels.
func (m *Message) ThreadKey() string {
	return m.ChannelID + ":" + m.ThreadID()
}

// Seconds returns the timestamp as seconds since the epoch, or 0 if it does not parse.
func (m *Message) Seconds() float64 {
	return ParseTS(m.Timestamp)
}

// Time returns the message time in UTC.
func (m *Message) Time() time.Time {
	return TSTime(m.Timestamp)
}

// ParseTS parses a "seconds.micros" timestamp string. Malformed input yields 0.
func ParseTS(ts string) float64 {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return f
}

// TSTime converts a "seconds.micros" timestamp string to a UTC time.
func TSTime(ts string) time.Time {
	f := ParseTS(ts)
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// FormatTS renders t in the chat service's "seconds.micros" form.
func FormatTS(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + strconv.FormatInt(int64(t.Nanosecond()/1000)+1000000, 10)[1:]
}
