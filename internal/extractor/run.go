package extractor

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/article"
	"github.com/hyperjump/knowledgehub/internal/keyword"
	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/thread"
)

// run is the state of one extraction pass. It is discarded when the pass ends.
type run struct {
	*Extractor
	matcher   *keyword.Matcher
	groups    thread.Groups
	processed map[string]bool
	report    *Report
}

func (e *Extractor) newRun() *run {
	return &run{
		Extractor: e,
		processed: make(map[string]bool),
		report:    &Report{StartedAt: e.now()},
	}
}

func (r *run) execute(ctx context.Context) error {
	vocab := r.Vocabulary(ctx)
	r.report.Keywords = len(vocab)
	if len(vocab) == 0 {
		r.logger.Warn("vocabulary is empty, nothing to match")
		return nil
	}
	r.matcher = keyword.NewMatcher(vocab)
	r.logger.Info("vocabulary loaded", zap.Int("keywords", len(vocab)))

	if err := r.store.Ping(ctx); err != nil {
		return wrapFatal(ErrStoreUnavailable, err)
	}

	messages, err := r.messages.Fetch(ctx, r.since())
	if err != nil {
		return wrapFatal(ErrSourceUnavailable, err)
	}
	if len(messages) == 0 {
		r.logger.Warn("no messages to process")
		return nil
	}

	r.groups = thread.Group(messages)
	r.report.Threads = len(r.groups)
	r.logger.Info("grouped messages into threads",
		zap.Int("messages", len(messages)), zap.Int("threads", len(r.groups)))

	for _, m := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.process(ctx, m)
	}
	return nil
}

func (r *run) process(ctx context.Context, m models.Message) {
	r.report.Scanned++

	match, ok := r.matcher.FindMatches(m.Text)
	if !ok {
		r.report.Unmatched++
		return
	}

	key := m.ThreadKey() + ":" + match.Best
	if r.processed[key] {
		r.report.Repeated++
		return
	}
	r.processed[key] = true

	existing, err := r.articles.Find(ctx, match.Best)
	if err != nil {
		r.fail(m, match.Best, err)
		return
	}
	if existing != nil {
		r.appendTo(ctx, existing, m, match.Best)
		return
	}
	r.create(ctx, m, match.Best)
}

func (r *run) appendTo(ctx context.Context, a *models.Article, m models.Message, kw string) {
	res, err := r.articles.Append(ctx, a, m)
	if err != nil {
		r.fail(m, kw, err)
		return
	}
	r.count(res)
	if res == article.ResultUpdated {
		r.refresh(ctx, a, m, kw)
	}
}

func (r *run) create(ctx context.Context, m models.Message, kw string) {
	var summary *models.Summary
	if r.summarizeEnabled() {
		if summary = r.summarizer.Summarize(ctx, r.groups.For(m), kw); summary != nil {
			r.report.Summarized++
		}
	}
	a, res, err := r.articles.Create(ctx, kw, m, summary)
	if err != nil {
		r.fail(m, kw, err)
		return
	}
	r.count(res)
	if res == article.ResultUpdated {
		r.refresh(ctx, a, m, kw)
	}
}

// refresh regenerates the summary of a after m was appended to it.
func (r *run) refresh(ctx context.Context, a *models.Article, m models.Message, kw string) {
	if !r.refreshOnAppend || !r.summarizeEnabled() {
		return
	}
	s := r.summarizer.Summarize(ctx, r.groups.For(m), kw)
	if s == nil {
		return
	}
	r.report.Summarized++
	if err := r.articles.RefreshSummary(ctx, a, s); err != nil {
		r.logger.Warn("failed to refresh summary", zap.String("article", a.ID), zap.Error(err))
	}
}

func (r *run) count(res article.Result) {
	switch res {
	case article.ResultInserted:
		r.report.Inserted++
	case article.ResultUpdated:
		r.report.Updated++
	case article.ResultDuplicate:
		r.report.Duplicates++
	}
}

func (r *run) fail(m models.Message, kw string, err error) {
	r.report.Errors++
	r.logger.Warn("failed to consolidate message",
		zap.String("keyword", kw),
		zap.String("channel", m.Channel),
		zap.String("ts", m.Timestamp),
		zap.Error(err))
}
