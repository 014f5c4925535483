package article

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/knowledgehub/internal/models"
)

const (
	kindMessage = "Message"
	kindReply   = "Thread Reply"

	unknownSender = "Unknown"

	prefixText        = "Message: "
	prefixAttachJSON  = "_attachments_json: "
	prefixAttachments = "Attachments: "
	prefixHash        = "_msg_hash: "

	entrySeparator = "\n\n"
)

var headerRe = regexp.MustCompile(`^--- (Message|Thread Reply) from (.*) on (.*) ---$`)

// Entry is one message as recorded in an article's raw text.
type Entry struct {
	IsReply     bool
	Sender      string
	DateLabel   string
	Text        string
	Attachments []models.Attachment
	Hash        string
}

// NewEntry builds the entry for msg with the given content hash.
func NewEntry(msg models.Message, hash string) Entry {
	sender := msg.AuthorName
	if sender == "" {
		sender = unknownSender
	}
	return Entry{
		IsReply:     msg.IsReply,
		Sender:      sender,
		DateLabel:   DateLabel(msg.Time()),
		Text:        msg.Text,
		Attachments: msg.Attachments,
		Hash:        hash,
	}
}

// DateLabel renders t as "14 Nov.".
func DateLabel(t time.Time) string {
	return t.Format("2 Jan") + "."
}

// StorageDate renders t as YYYY-MM-DD in UTC.
func StorageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// EncodeEntry renders e in the raw text entry format.
func EncodeEntry(e Entry) string {
	kind := kindMessage
	if e.IsReply {
		kind = kindReply
	}
	sender := e.Sender
	if sender == "" {
		sender = unknownSender
	}

	lines := []string{
		"--- " + kind + " from " + sender + " on " + e.DateLabel + " ---",
		prefixText + e.Text,
	}
	if len(e.Attachments) > 0 {
		data, err := json.Marshal(e.Attachments)
		if err == nil {
			lines = append(lines, prefixAttachJSON+string(data))
		}
		refs := make([]string, len(e.Attachments))
		for i, att := range e.Attachments {
			refs[i] = att.Name + ": " + att.URL
		}
		lines = append(lines, prefixAttachments+strings.Join(refs, "; "))
	}
	lines = append(lines, prefixHash+e.Hash)
	return strings.Join(lines, "\n")
}

// DecodeEntries parses every entry in raw. Text outside entries is ignored.
func DecodeEntries(raw string) []Entry {
	var out []Entry
	var cur *Entry
	inText := false

	for _, line := range strings.Split(raw, "\n") {
		if m := headerRe.FindStringSubmatch(line); m != nil {
			cur = &Entry{IsReply: m[1] == kindReply, Sender: m[2], DateLabel: m[3]}
			inText = false
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, prefixHash):
			cur.Hash = strings.TrimPrefix(line, prefixHash)
			out = append(out, *cur)
			cur = nil
		case strings.HasPrefix(line, prefixAttachJSON):
			inText = false
			var atts []models.Attachment
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, prefixAttachJSON)), &atts); err == nil {
				cur.Attachments = atts
			}
		case strings.HasPrefix(line, prefixAttachments):
			inText = false
		case strings.HasPrefix(line, prefixText) && !inText:
			cur.Text = strings.TrimPrefix(line, prefixText)
			inText = true
		case inText:
			cur.Text += "\n" + line
		}
	}
	return out
}

// HasEntry reports whether raw already records a message with hash.
func HasEntry(raw, hash string) bool {
	return strings.Contains(raw, prefixHash+hash)
}
