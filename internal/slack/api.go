// Package slack fetches channel history and thread replies from the Slack Web API.
package slack

import (
	"context"
)

// API is the subset of the Slack Web API the fetcher uses.
type API interface {
	ListChannels(ctx context.Context) ([]Channel, error)
	History(ctx context.Context, channelID, oldest string) ([]RawMessage, error)
	Replies(ctx context.Context, channelID, threadTS string) ([]RawMessage, error)
	UserInfo(ctx context.Context, userID string) (*User, error)
}

// Channel is a conversation as listed by conversations.list.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsArchived bool   `json:"is_archived"`
}

// RawMessage is a channel or thread message from conversations.history and conversations.replies.
type RawMessage struct {
	Type       string `json:"type"`
	User       string `json:"user"`
	Text       string `json:"text"`
	TS         string `json:"ts"`
	ThreadTS   string `json:"thread_ts,omitempty"`
	ReplyCount int    `json:"reply_count,omitempty"`
	BotID      string `json:"bot_id,omitempty"`
	SubType    string `json:"subtype,omitempty"`
	Files      []File `json:"files,omitempty"`
}

// File is a shared file attached to a message.
type File struct {
	Name       string `json:"name"`
	URLPrivate string `json:"url_private"`
	Permalink  string `json:"permalink"`
	URL        string `json:"url"`
	MimeType   string `json:"mimetype"`
	Size       int64  `json:"size"`
}

// Link returns the best available URL for the file.
func (f File) Link() string {
	switch {
	case f.URLPrivate != "":
		return f.URLPrivate
	case f.Permalink != "":
		return f.Permalink
	}
	return f.URL
}

// User is the users.info payload.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Profile  struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
	} `json:"profile"`
}

// DisplayName prefers the real name, then the profile display name, then the handle.
func (u *User) DisplayName() string {
	switch {
	case u.RealName != "":
		return u.RealName
	case u.Profile.DisplayName != "":
		return u.Profile.DisplayName
	}
	return u.Name
}

// APIError is an ok=false response from the Web API.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return "slack " + e.Method + ": " + e.Code
}
