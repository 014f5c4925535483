package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/knowledgehub/internal/article"
	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/storage"
	"github.com/hyperjump/knowledgehub/internal/summarize"
)

type staticDocs []string

func (d staticDocs) Documents(context.Context) ([]string, error) { return d, nil }

type failingDocs struct{}

func (failingDocs) Documents(context.Context) ([]string, error) { return nil, errors.New("offline") }

type fakeSource struct {
	messages []models.Message
	err      error
	calls    int
	since    time.Time
}

func (f *fakeSource) Fetch(_ context.Context, since time.Time) ([]models.Message, error) {
	f.calls++
	f.since = since
	return f.messages, f.err
}

type fakeCompleter struct {
	calls int
	err   error
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf(`{"summary":"summary %d","key_points":["point"],"decisions":[],"action_items":[]}`, f.calls), nil
}

type downStore struct {
	storage.Store
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "kh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func msg(ts, root, text string) models.Message {
	return models.Message{
		Text:         text,
		AuthorID:     "U1",
		AuthorName:   "Alice",
		Channel:      "dev",
		ChannelID:    "C1",
		Timestamp:    ts,
		ThreadRootTS: root,
		IsReply:      root != "" && root != ts,
	}
}

var docs = staticDocs{"# Topics\n- Checkout flow\n- Login\n"}

func scenario() []models.Message {
	return []models.Message{
		msg("1700000000.000100", "", "The *checkout flow* is broken"),
		msg("1700000001.000100", "1700000000.000100", "checkout flow fixed now"),
		msg("1700000002.000100", "", "login page is down"),
		msg("1700000003.000100", "", "lunch anyone?"),
	}
}

func newExtractor(src MessageSource, store storage.Store, opts ...Option) *Extractor {
	base := []Option{WithDocuments(docs), WithSeedTerms([]string{})}
	return New(src, store, append(base, opts...)...)
}

func TestRunConsolidatesMessages(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{messages: scenario()}
	e := newExtractor(src, store, WithClock(func() time.Time { return now }), WithHoursBack(48))

	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, 4, r.Scanned)
	assert.Equal(t, 2, r.Inserted)
	assert.Equal(t, 1, r.Repeated)
	assert.Equal(t, 1, r.Unmatched)
	assert.Equal(t, 2, r.Keywords)
	assert.Equal(t, 3, r.Threads)
	assert.Equal(t, r.Scanned, r.Accounted())
	assert.Equal(t, now.Add(-48*time.Hour), src.since)

	arts, err := store.FindByTopic(ctx, models.SourceChat, "checkout flow")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	a := arts[0]
	assert.Equal(t, []string{"checkout flow"}, a.Topics)
	assert.Equal(t, "The *checkout flow*...", a.Summary)
	assert.Equal(t, "dev", a.Project)
	assert.Equal(t, "2023-11-14", a.Date)
	assert.Contains(t, a.RawText, "--- Message from Alice on 14 Nov. ---")
	assert.NotContains(t, a.RawText, "fixed now", "the reply shares the thread and keyword")
}

func TestRunMergesSameKeywordAcrossThreads(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := &fakeSource{messages: []models.Message{
		msg("1700000000.000100", "", "checkout flow times out on submit"),
		msg("1700000050.000100", "", "seeing checkout flow errors again"),
	}}
	e := newExtractor(src, store)

	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Inserted)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 0, r.Repeated)
	assert.Equal(t, 2, r.Threads)

	arts, err := store.FindByTopic(ctx, models.SourceChat, "checkout flow")
	require.NoError(t, err)
	require.Len(t, arts, 1)

	entries := article.DecodeEntries(arts[0].RawText)
	require.Len(t, entries, 2)
	assert.Equal(t, "checkout flow times out on submit", entries[0].Text)
	assert.Equal(t, "seeing checkout flow errors again", entries[1].Text)
	assert.False(t, entries[0].IsReply)
	assert.False(t, entries[1].IsReply)
}

func TestRunSingleMessageEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := &fakeSource{messages: []models.Message{
		msg("100", "", "Posting the release notes for v2"),
	}}
	e := New(src, store, WithDocuments(staticDocs{}), WithSeedTerms([]string{"release notes"}))

	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, 1, r.Keywords)
	assert.Equal(t, 1, r.Inserted)
	assert.Equal(t, 0, r.Updated)
	assert.Equal(t, 0, r.Errors)

	arts, err := store.ListArticles(ctx, models.ArticleFilter{Source: models.SourceChat})
	require.NoError(t, err)
	require.Len(t, arts, 1)
	a := arts[0]
	assert.Equal(t, []string{"release note"}, a.Topics)
	assert.Equal(t, "1970-01-01", a.Date)
	assert.Contains(t, a.RawText, "_msg_hash: ")

	entries := article.DecodeEntries(a.RawText)
	require.Len(t, entries, 1)
	assert.Equal(t, "Posting the release notes for v2", entries[0].Text)
	assert.Equal(t, "Alice", entries[0].Sender)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := &fakeSource{messages: scenario()}
	e := newExtractor(src, store)

	_, err := e.Run(ctx)
	require.NoError(t, err)
	before, err := store.ListArticles(ctx, models.ArticleFilter{})
	require.NoError(t, err)

	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, r.Inserted)
	assert.Zero(t, r.Updated)
	assert.Equal(t, 2, r.Duplicates)

	after, err := store.ListArticles(ctx, models.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, after, len(before))
	raw := map[string]string{}
	for _, a := range before {
		raw[a.ID] = a.RawText
	}
	for _, a := range after {
		assert.Equal(t, raw[a.ID], a.RawText)
	}
}

func TestRunAppendsNewMessagesToExistingTopic(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := &fakeSource{messages: scenario()[:1]}
	e := newExtractor(src, store)
	_, err := e.Run(ctx)
	require.NoError(t, err)

	src.messages = []models.Message{msg("1700000100.000100", "", "Checkout   FLOW needs a retry button")}
	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)

	arts, err := store.FindByTopic(ctx, models.SourceChat, "checkout flow")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Contains(t, arts[0].RawText, "needs a retry button")
	assert.Equal(t, 2, strings.Count(arts[0].RawText, "_msg_hash: "))
}

func TestRunWithSummaries(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &fakeCompleter{}
	src := &fakeSource{messages: scenario()[:2]}
	e := newExtractor(src, store, WithSummarizer(summarize.New(c)))

	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Inserted)
	assert.Equal(t, 1, r.Summarized)

	arts, err := store.FindByTopic(ctx, models.SourceChat, "checkout flow")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Contains(t, arts[0].Summary, "## Summary\nsummary 1")
	assert.Equal(t, []string{"point"}, arts[0].KeyPoints)

	src.messages = []models.Message{msg("1700000200.000100", "", "checkout flow regression again")}
	r, err = e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 1, r.Summarized)

	got, err := store.GetArticle(ctx, arts[0].ID)
	require.NoError(t, err)
	assert.Contains(t, got.Summary, "summary 2")
}

func TestRunRefreshDisabled(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &fakeCompleter{}
	src := &fakeSource{messages: scenario()[:1]}
	e := newExtractor(src, store, WithSummarizer(summarize.New(c)), WithRefreshOnAppend(false))
	_, err := e.Run(ctx)
	require.NoError(t, err)

	src.messages = []models.Message{msg("1700000200.000100", "", "checkout flow again")}
	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Zero(t, r.Summarized)
	assert.Equal(t, 1, c.calls)
}

func TestRunSummarizerFailureFallsBackToPreview(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &fakeCompleter{err: errors.New("timeout")}
	src := &fakeSource{messages: scenario()[2:3]}
	e := newExtractor(src, store, WithSummarizer(summarize.New(c)))

	r, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Inserted)
	assert.Zero(t, r.Summarized)

	arts, err := store.FindByTopic(ctx, models.SourceChat, "login")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "login page is...", arts[0].Summary)
}

func TestRunEmptyVocabulary(t *testing.T) {
	src := &fakeSource{messages: scenario()}
	e := New(src, newStore(t), WithSeedTerms([]string{}), WithDocuments(failingDocs{}))
	r, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Zero(t, r.Scanned)
	assert.Zero(t, src.calls, "no fetch without keywords")
}

func TestRunNoMessages(t *testing.T) {
	r, err := newExtractor(&fakeSource{}, newStore(t)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Zero(t, r.Scanned)
}

func TestRunStoreUnavailable(t *testing.T) {
	src := &fakeSource{messages: scenario()}
	r, err := newExtractor(src, downStore{}).Run(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, r.Success)
	assert.Zero(t, src.calls)
}

func TestRunSourceUnavailable(t *testing.T) {
	src := &fakeSource{err: errors.New("invalid_auth")}
	r, err := newExtractor(src, newStore(t)).Run(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.False(t, r.Success)
}

func TestVocabularyUsesDefaultSeeds(t *testing.T) {
	e := New(&fakeSource{}, newStore(t), WithDocuments(failingDocs{}))
	v := e.Vocabulary(context.Background())
	assert.NotEmpty(t, v)
}
