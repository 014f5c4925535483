// Package models defines core data structures for messages, articles, and wiki pages.
package models

import "time"

// Article sources.
const (
	SourceChat = "slack"
	SourceWiki = "confluence"
)

// Article is a topic-keyed knowledge record. RawText is an append-only log of entries.
type Article struct {
	ID          string    `json:"id" db:"id"`
	Source      string    `json:"source" db:"source"`
	Summary     string    `json:"summary" db:"summary"`
	Topics      []string  `json:"topics" db:"topics"`
	Decisions   []string  `json:"decisions" db:"decisions"`
	KeyPoints   []string  `json:"key_points" db:"key_points"`
	ActionItems []string  `json:"action_items" db:"action_items"`
	FAQs        []string  `json:"faqs" db:"faqs"`
	Date        string    `json:"date" db:"date"`
	Project     string    `json:"project" db:"project"`
	SenderName  string    `json:"sender_name" db:"sender_name"`
	RawText     string    `json:"raw_text" db:"raw_text"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Topic returns the first topic, or "" when the article has none.
func (a *Article) Topic() string {
	if len(a.Topics) == 0 {
		return ""
	}
	return a.Topics[0]
}

// ArticlePatch lists the fields an update may change. Nil fields are left alone.
type ArticlePatch struct {
	Summary     *string   `json:"summary,omitempty"`
	RawText     *string   `json:"raw_text,omitempty"`
	Decisions   *[]string `json:"decisions,omitempty"`
	KeyPoints   *[]string `json:"key_points,omitempty"`
	ActionItems *[]string `json:"action_items,omitempty"`
	Date        *string   `json:"date,omitempty"`
	SenderName  *string   `json:"sender_name,omitempty"`
	Project     *string   `json:"project,omitempty"`
}

// Apply copies the non-nil patch fields onto a.
func (p *ArticlePatch) Apply(a *Article) {
	if p.Summary != nil {
		a.Summary = *p.Summary
	}
	if p.RawText != nil {
		a.RawText = *p.RawText
	}
	if p.Decisions != nil {
		a.Decisions = *p.Decisions
	}
	if p.KeyPoints != nil {
		a.KeyPoints = *p.KeyPoints
	}
	if p.ActionItems != nil {
		a.ActionItems = *p.ActionItems
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.SenderName != nil {
		a.SenderName = *p.SenderName
	}
	if p.Project != nil {
		a.Project = *p.Project
	}
}

// ArticleFilter narrows article listings.
type ArticleFilter struct {
	Source  string `json:"source,omitempty"`
	Project string `json:"project,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}
