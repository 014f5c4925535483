// Package article consolidates chat messages into topic-keyed articles.
package article

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/storage"
	"github.com/hyperjump/knowledgehub/internal/summarize"
	"github.com/hyperjump/knowledgehub/internal/textnorm"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// ErrEmptyTopic is returned when a keyword reduces to an empty topic.
var ErrEmptyTopic = errors.New("keyword produced an empty topic")

// previewWords is the length of the fallback summary for new articles.
const previewWords = 3

// Result is the outcome of consolidating one message.
type Result int

const (
	ResultDuplicate Result = iota
	ResultUpdated
	ResultInserted
)

func (r Result) String() string {
	switch r {
	case ResultDuplicate:
		return "duplicate"
	case ResultUpdated:
		return "updated"
	case ResultInserted:
		return "inserted"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Adapter finds, appends to and creates chat articles in a store.
type Adapter struct {
	store  storage.Store
	source string
	logger *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = utils.OrNop(l) }
}

// WithSource overrides the article source label (default models.SourceChat).
func WithSource(source string) Option {
	return func(a *Adapter) {
		if source != "" {
			a.source = source
		}
	}
}

// New returns an Adapter over store.
func New(store storage.Store, opts ...Option) *Adapter {
	a := &Adapter{store: store, source: models.SourceChat, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Topic singularizes keyword into its article topic. When singularization
// yields nothing the trimmed keyword is used.
func Topic(keyword string) (string, error) {
	kw := strings.TrimSpace(keyword)
	topic := strings.TrimSpace(textnorm.Singularize(kw))
	if topic == "" {
		topic = kw
	}
	if topic == "" {
		return "", ErrEmptyTopic
	}
	return topic, nil
}

// Title capitalizes each word of topic.
func Title(topic string) string {
	words := strings.Fields(topic)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Find returns the article for keyword's topic, or nil when there is none.
// The first match wins when the store holds several.
func (a *Adapter) Find(ctx context.Context, keyword string) (*models.Article, error) {
	topic, err := Topic(keyword)
	if err != nil {
		return nil, err
	}
	found, err := a.store.FindByTopic(ctx, a.source, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to find article for %q: %w", topic, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// Append adds msg to art unless art already records it. On success art.RawText
// holds the new text.
func (a *Adapter) Append(ctx context.Context, art *models.Article, msg models.Message) (Result, error) {
	hash := textnorm.ContentHash(msg.Text)
	if HasEntry(art.RawText, hash) {
		a.logger.Debug("message already recorded",
			zap.String("topic", art.Topic()), zap.String("ts", msg.Timestamp))
		return ResultDuplicate, nil
	}

	entry := EncodeEntry(NewEntry(msg, hash))
	updated := entry
	if art.RawText != "" {
		updated = art.RawText + entrySeparator + entry
	}
	if err := a.store.UpdateArticle(ctx, art.ID, models.ArticlePatch{RawText: &updated}); err != nil {
		return 0, fmt.Errorf("failed to append to article %s: %w", art.ID, err)
	}
	art.RawText = updated

	a.logger.Info("appended message to article",
		zap.String("topic", art.Topic()),
		zap.Bool("reply", msg.IsReply),
		zap.String("ts", msg.Timestamp))
	return ResultUpdated, nil
}

// Create inserts a new article for keyword seeded with msg. When summary is
// non-nil it provides the summary fields; otherwise a short preview of msg is used.
// If another writer created the topic first, msg is appended to that article instead.
func (a *Adapter) Create(ctx context.Context, keyword string, msg models.Message, summary *models.Summary) (*models.Article, Result, error) {
	topic, err := Topic(keyword)
	if err != nil {
		return nil, 0, err
	}

	hash := textnorm.ContentHash(msg.Text)
	sender := msg.AuthorName
	if sender == "" {
		sender = unknownSender
	}
	art := &models.Article{
		Source:      a.source,
		Topics:      []string{topic},
		Decisions:   []string{},
		KeyPoints:   []string{},
		ActionItems: []string{},
		FAQs:        []string{},
		Date:        StorageDate(msg.Time()),
		Project:     msg.Channel,
		SenderName:  sender,
		RawText:     EncodeEntry(NewEntry(msg, hash)),
	}
	if summary != nil {
		art.Summary = summarize.FormatMarkdown(summary)
		art.Decisions = nonNil(summary.Decisions)
		art.KeyPoints = nonNil(summary.KeyPoints)
		art.ActionItems = nonNil(summary.ActionItems)
	} else {
		art.Summary = textnorm.Preview(msg.Text, previewWords)
		if art.Summary == "" {
			art.Summary = "Slack messages about " + topic
		}
	}

	err = a.store.InsertArticle(ctx, art)
	if errors.Is(err, storage.ErrDuplicateTopic) {
		a.logger.Warn("topic created concurrently, appending instead", zap.String("topic", topic))
		existing, ferr := a.Find(ctx, topic)
		if ferr != nil {
			return nil, 0, ferr
		}
		if existing == nil {
			return nil, 0, err
		}
		res, aerr := a.Append(ctx, existing, msg)
		return existing, res, aerr
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create article for %q: %w", topic, err)
	}

	a.logger.Info("created article",
		zap.String("title", Title(topic)),
		zap.String("id", art.ID),
		zap.Bool("ai_summary", summary != nil))
	return art, ResultInserted, nil
}

// RefreshSummary replaces art's summary with s. List fields are only
// overwritten when s provides entries for them.
func (a *Adapter) RefreshSummary(ctx context.Context, art *models.Article, s *models.Summary) error {
	text := summarize.FormatMarkdown(s)
	patch := models.ArticlePatch{Summary: &text}
	if len(s.Decisions) > 0 {
		patch.Decisions = &s.Decisions
	}
	if len(s.KeyPoints) > 0 {
		patch.KeyPoints = &s.KeyPoints
	}
	if len(s.ActionItems) > 0 {
		patch.ActionItems = &s.ActionItems
	}
	if err := a.store.UpdateArticle(ctx, art.ID, patch); err != nil {
		return fmt.Errorf("failed to refresh summary of article %s: %w", art.ID, err)
	}
	patch.Apply(art)
	return nil
}

func nonNil(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
