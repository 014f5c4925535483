package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/knowledgehub/internal/config"
	"github.com/hyperjump/knowledgehub/internal/confluence"
	"github.com/hyperjump/knowledgehub/internal/docsource"
	"github.com/hyperjump/knowledgehub/internal/extractor"
	"github.com/hyperjump/knowledgehub/internal/slack"
	"github.com/hyperjump/knowledgehub/internal/storage"
	"github.com/hyperjump/knowledgehub/internal/summarize"
	"github.com/hyperjump/knowledgehub/pkg/utils"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Store     storage.Store
	Extractor *extractor.Extractor
	// Wiki is nil when no wiki credentials are configured.
	Wiki *confluence.Syncer
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func retryPolicy(cfg *config.Config) utils.RetryPolicy {
	p := utils.DefaultRetryPolicy
	p.MaxRetries = cfg.HTTP.MaxRetries
	return p
}

func httpClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second}
}

// openStore opens the configured backend.
func openStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSupabase:
		store, err := storage.NewSupabaseStore(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey,
			storage.WithTable(cfg.Store.Table),
			storage.WithHTTPClient(httpClient(cfg)),
			storage.WithRetryPolicy(retryPolicy(cfg)),
			storage.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(cfg.Store.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newSummarizer returns a disabled Summarizer when no API key is set.
func newSummarizer(cfg *config.Config, logger *zap.Logger) *summarize.Summarizer {
	var completer summarize.Completer
	if cfg.Summarizer.APIKey != "" {
		completer = summarize.NewOpenAIClient(cfg.Summarizer.APIKey,
			summarize.WithBaseURL(cfg.Summarizer.BaseURL),
			summarize.WithModel(cfg.Summarizer.Model),
			summarize.WithTimeout(time.Duration(cfg.Summarizer.TimeoutSeconds)*time.Second),
			summarize.WithSampling(cfg.Summarizer.Temperature, cfg.Summarizer.MaxTokens),
			summarize.WithClientRetry(retryPolicy(cfg)),
			summarize.WithClientLogger(logger),
		)
	}
	return summarize.New(completer, summarize.WithLogger(logger))
}

// newWikiClient returns nil unless the wiki URL and space key are configured.
func newWikiClient(cfg *config.Config, logger *zap.Logger) *confluence.Client {
	c := cfg.Confluence
	if c.URL == "" || c.SpaceKey == "" {
		return nil
	}
	return confluence.NewClient(c.URL, c.Email, c.APIToken,
		confluence.WithHTTPClient(httpClient(cfg)),
		confluence.WithRetryPolicy(retryPolicy(cfg)),
		confluence.WithLogger(logger),
	)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	api := slack.NewClient(cfg.Slack.BotToken,
		slack.WithPageSize(cfg.Slack.HistoryLimit),
		slack.WithRateLimit(cfg.Slack.RatePerSecond),
		slack.WithHTTPClient(httpClient(cfg)),
		slack.WithRetryPolicy(retryPolicy(cfg)),
		slack.WithLogger(logger),
	)
	fetcher := slack.NewFetcher(api,
		slack.WithChannels(cfg.Slack.IncludeChannels),
		slack.WithFetcherLogger(logger),
	)

	docs := []extractor.DocumentSource{
		&docsource.Files{Reader: docsource.NewReader(docsource.WithLogger(logger)), Paths: cfg.Vocabulary.Sources},
	}
	wikiClient := newWikiClient(cfg, logger)
	if cfg.Vocabulary.IncludeWiki && wikiClient != nil {
		docs = append(docs, &confluence.SpaceDocuments{
			Pages:    wikiClient,
			SpaceKey: cfg.Confluence.SpaceKey,
			Limit:    cfg.Confluence.Limit,
		})
	}

	ext := extractor.New(fetcher, store,
		extractor.WithLogger(logger),
		extractor.WithDocuments(docs...),
		extractor.WithSeedTerms(cfg.Vocabulary.SeedTerms),
		extractor.WithSummarizer(newSummarizer(cfg, logger)),
		extractor.WithHoursBack(cfg.Extraction.HoursBack),
		extractor.WithRefreshOnAppend(cfg.Summarizer.RefreshOnAppendOrDefault()),
		extractor.WithSource(cfg.Extraction.SourceLabel),
	)

	components := &Components{Store: store, Extractor: ext}
	if wikiClient != nil {
		components.Wiki = confluence.NewSyncer(wikiClient, store, cfg.Confluence.SpaceKey,
			confluence.WithSyncLogger(logger),
			confluence.WithLimit(cfg.Confluence.Limit),
		)
	}
	return components, nil
}
