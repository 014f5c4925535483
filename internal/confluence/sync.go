package confluence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/article"
	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/storage"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// ErrSourceUnavailable is returned when the wiki cannot be listed.
var ErrSourceUnavailable = errors.New("wiki source unavailable")

// PageSource yields the pages of a wiki space.
type PageSource interface {
	FetchPages(ctx context.Context, spaceKey string, limit int) ([]models.WikiPage, error)
}

// SyncReport counts what one sync did with each page.
type SyncReport struct {
	Processed int           `json:"processed"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
}

// Syncer upserts wiki pages into the store, one article per page.
type Syncer struct {
	pages    PageSource
	store    storage.Store
	spaceKey string
	limit    int
	logger   *zap.Logger
}

// SyncOption configures a Syncer.
type SyncOption func(*Syncer)

// WithSyncLogger sets the logger.
func WithSyncLogger(l *zap.Logger) SyncOption {
	return func(s *Syncer) { s.logger = utils.OrNop(l) }
}

// WithLimit caps how many pages one sync fetches.
func WithLimit(n int) SyncOption {
	return func(s *Syncer) { s.limit = n }
}

// NewSyncer returns a Syncer for spaceKey.
func NewSyncer(pages PageSource, store storage.Store, spaceKey string, opts ...SyncOption) *Syncer {
	s := &Syncer{
		pages:    pages,
		store:    store,
		spaceKey: spaceKey,
		limit:    MaxPageSize,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches the space and inserts new pages, updates changed ones and
// skips pages whose stored version is current. Per-page failures are counted
// and logged; only an unreachable wiki or store fails the sync.
func (s *Syncer) Sync(ctx context.Context) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{}
	finish := func(err error) (*SyncReport, error) {
		report.Duration = time.Since(start)
		report.Success = err == nil
		return report, err
	}

	if err := s.store.Ping(ctx); err != nil {
		return finish(fmt.Errorf("%w: %v", storage.ErrUnavailable, err))
	}
	pages, err := s.pages.FetchPages(ctx, s.spaceKey, s.limit)
	if err != nil {
		return finish(fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}
	if len(pages) == 0 {
		s.logger.Warn("no pages found in wiki space", zap.String("space", s.spaceKey))
		return finish(nil)
	}

	existing, err := s.store.ListArticles(ctx, models.ArticleFilter{Source: models.SourceWiki})
	if err != nil {
		return finish(fmt.Errorf("%w: %v", storage.ErrUnavailable, err))
	}

	for _, p := range pages {
		if ctx.Err() != nil {
			return finish(ctx.Err())
		}
		report.Processed++
		if err := s.syncPage(ctx, p, existing, report); err != nil {
			report.Errors++
			s.logger.Warn("failed to sync page", zap.String("page_id", p.ID), zap.String("title", p.Title), zap.Error(err))
		}
	}

	s.logger.Info("wiki sync finished",
		zap.String("space", s.spaceKey),
		zap.Int("processed", report.Processed),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))
	return finish(nil)
}

func (s *Syncer) syncPage(ctx context.Context, p models.WikiPage, existing []*models.Article, report *SyncReport) error {
	if p.ID == "" {
		return errors.New("page has no id")
	}
	raw := EncodeHeader(Header{URL: p.URL, PageID: p.ID, Version: p.Version}, p.Body)
	date := article.StorageDate(p.UpdatedAt)

	if a, h := findPage(existing, p.ID); a != nil {
		if h.PageID != "" && h.Version == p.Version && p.Version > 0 {
			report.Skipped++
			return nil
		}
		patch := models.ArticlePatch{
			Summary:    &p.Title,
			Date:       &date,
			SenderName: &p.Author,
			RawText:    &raw,
		}
		if err := s.store.UpdateArticle(ctx, a.ID, patch); err != nil {
			return err
		}
		patch.Apply(a)
		report.Updated++
		s.logger.Debug("updated wiki article", zap.String("title", p.Title), zap.Int("version", p.Version))
		return nil
	}

	a := &models.Article{
		Source:     models.SourceWiki,
		Summary:    p.Title,
		Topics:     []string{},
		Date:       date,
		Project:    s.spaceKey,
		SenderName: p.Author,
		RawText:    raw,
	}
	if err := s.store.InsertArticle(ctx, a); err != nil {
		return err
	}
	report.Inserted++
	s.logger.Debug("inserted wiki article", zap.String("title", p.Title), zap.String("excerpt", p.Excerpt))
	return nil
}

func findPage(articles []*models.Article, id string) (*models.Article, Header) {
	for _, a := range articles {
		h, _, ok := DecodeHeader(a.RawText)
		if ok && h.matchesPage(id) {
			return a, h
		}
	}
	return nil, Header{}
}
