// Package extractor runs one pass of keyword-driven message consolidation:
// build the vocabulary, fetch recent messages, and fold every matched
// message into its topic's article.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/article"
	"github.com/hyperjump/knowledgehub/internal/keyword"
	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/storage"
	"github.com/hyperjump/knowledgehub/internal/summarize"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

var (
	// ErrSourceUnavailable is returned when messages cannot be fetched at all.
	ErrSourceUnavailable = errors.New("message source unavailable")
	// ErrStoreUnavailable is returned when the knowledge store cannot be reached.
	ErrStoreUnavailable = storage.ErrUnavailable
)

// DefaultHoursBack is the lookback window when none is configured.
const DefaultHoursBack = 24

// MessageSource returns chat messages posted after since.
type MessageSource interface {
	Fetch(ctx context.Context, since time.Time) ([]models.Message, error)
}

// DocumentSource yields documentation texts for the vocabulary.
type DocumentSource interface {
	Documents(ctx context.Context) ([]string, error)
}

// Extractor wires the vocabulary, message source, store and summarizer together.
type Extractor struct {
	messages        MessageSource
	store           storage.Store
	articles        *article.Adapter
	docs            []DocumentSource
	seeds           []string
	summarizer      *summarize.Summarizer
	hoursBack       int
	refreshOnAppend bool
	source          string
	now             func() time.Time
	logger          *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = utils.OrNop(l) }
}

// WithDocuments adds vocabulary document sources.
func WithDocuments(sources ...DocumentSource) Option {
	return func(e *Extractor) { e.docs = append(e.docs, sources...) }
}

// WithSeedTerms replaces the built-in seed terms. An empty, non-nil list
// disables seeding.
func WithSeedTerms(seeds []string) Option {
	return func(e *Extractor) { e.seeds = seeds }
}

// WithSummarizer enables AI summaries.
func WithSummarizer(s *summarize.Summarizer) Option {
	return func(e *Extractor) { e.summarizer = s }
}

// WithHoursBack sets the lookback window.
func WithHoursBack(h int) Option {
	return func(e *Extractor) {
		if h > 0 {
			e.hoursBack = h
		}
	}
}

// WithRefreshOnAppend controls whether appends regenerate the summary.
func WithRefreshOnAppend(on bool) Option {
	return func(e *Extractor) { e.refreshOnAppend = on }
}

// WithSource sets the source label of created articles.
func WithSource(source string) Option {
	return func(e *Extractor) {
		if source != "" {
			e.source = source
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New returns an Extractor reading from messages and writing to store.
func New(messages MessageSource, store storage.Store, opts ...Option) *Extractor {
	e := &Extractor{
		messages:        messages,
		store:           store,
		hoursBack:       DefaultHoursBack,
		refreshOnAppend: true,
		source:          models.SourceChat,
		now:             time.Now,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.articles = article.New(store, article.WithLogger(e.logger), article.WithSource(e.source))
	return e
}

// Vocabulary builds the keyword set from every document source plus the
// seed terms. A failing source is logged and skipped.
func (e *Extractor) Vocabulary(ctx context.Context) keyword.Vocabulary {
	var docs []string
	for _, src := range e.docs {
		d, err := src.Documents(ctx)
		if err != nil {
			e.logger.Warn("documentation source unavailable", zap.Error(err))
			continue
		}
		docs = append(docs, d...)
	}
	return keyword.BuildVocabulary(docs, e.seeds)
}

// Run performs one extraction pass. Per-message failures are counted in the
// report; an error is returned only when the store or the message source is
// unavailable, in which case Report.Success is false.
func (e *Extractor) Run(ctx context.Context) (*Report, error) {
	r := e.newRun()
	err := r.execute(ctx)
	r.report.Duration = time.Since(r.report.StartedAt)
	r.report.Success = err == nil
	recordRun(r.report)

	fields := []zap.Field{
		zap.Int("scanned", r.report.Scanned),
		zap.Int("inserted", r.report.Inserted),
		zap.Int("updated", r.report.Updated),
		zap.Int("duplicates", r.report.Duplicates),
		zap.Int("repeated", r.report.Repeated),
		zap.Int("unmatched", r.report.Unmatched),
		zap.Int("errors", r.report.Errors),
		zap.Int("summarized", r.report.Summarized),
		zap.Duration("duration", r.report.Duration),
	}
	if err != nil {
		e.logger.Error("extraction run failed", append(fields, zap.Error(err))...)
		return r.report, err
	}
	e.logger.Info("extraction run finished", fields...)
	return r.report, nil
}

func (e *Extractor) since() time.Time {
	return e.now().Add(-time.Duration(e.hoursBack) * time.Hour)
}

func (e *Extractor) summarizeEnabled() bool {
	return e.summarizer.Enabled()
}

func wrapFatal(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}
