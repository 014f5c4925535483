// Package main is the knowledgehub CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/knowledgehub/internal/cli"
	"github.com/hyperjump/knowledgehub/internal/config"
	"github.com/hyperjump/knowledgehub/internal/export"
	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/server"
	"github.com/hyperjump/knowledgehub/internal/storage"
	"github.com/hyperjump/knowledgehub/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/knowledgehub/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "extract":
		runExtract()
	case "wiki":
		runWiki()
	case "serve", "server":
		runServe()
	case "export":
		runExport()
	case "vocab":
		runVocab()
	case "list":
		runList()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("knowledgehub version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand that touches the store.
type commonFlags struct {
	configPath *string
	debug      *bool
	jsonOut    *bool
	noColor    *bool
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, &commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		jsonOut:    fs.Bool("json", false, "print machine-readable JSON"),
		noColor:    fs.Bool("no-color", false, "disable colored output"),
	}
}

func (f *commonFlags) format() cli.OutputFormat {
	if *f.jsonOut {
		return cli.OutputJSON
	}
	return cli.OutputText
}

// setup loads and validates config for cmd and builds the logger.
// Any failure here is a fatal configuration error.
func setup(f *commonFlags, cmd string) (*config.Config, *zap.Logger) {
	cli.InitColors(*f.noColor)
	cfg, resolved, err := loadConfig(*f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg, cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *f.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger
}

func runExtract() {
	fs, common := newFlagSet("extract")
	hours := fs.Int("hours", 0, "lookback window in hours (default from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(common, config.CmdExtract)
	defer logger.Sync()
	if *hours > 0 {
		cfg.Extraction.HoursBack = *hours
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := components.Extractor.Run(ctx)
	if err := cli.WriteReport(os.Stdout, report, common.format()); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", runErr)
		os.Exit(1)
	}
}

func runWiki() {
	fs, common := newFlagSet("wiki")
	limit := fs.Int("limit", 0, "maximum pages to sync (default from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(common, config.CmdWiki)
	defer logger.Sync()
	if *limit > 0 {
		cfg.Confluence.Limit = *limit
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, syncErr := components.Wiki.Sync(ctx)
	if err := cli.WriteSyncReport(os.Stdout, report, common.format()); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
	}
	if syncErr != nil {
		fmt.Fprintf(os.Stderr, "Wiki sync failed: %v\n", syncErr)
		os.Exit(1)
	}
}

func runServe() {
	fs, common := newFlagSet("serve")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(common, config.CmdServe)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	opts := []server.Option{}
	if cfg.Store.Backend == config.BackendSQLite {
		opts = append(opts, server.WithDatabasePath(cfg.Store.DatabasePath))
	}
	if components.Wiki != nil {
		opts = append(opts, server.WithWikiSyncer(components.Wiki))
	}
	srv := server.NewServer(components.Store, components.Extractor, &cfg.Server, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runExport() {
	fs, common := newFlagSet("export")
	formatName := fs.String("format", "csv", "export format: csv, xlsx or pdf")
	out := fs.String("out", "", "output file (default knowledge-export.<format>)")
	source := fs.String("source", "", "only export articles from this source (slack or confluence)")
	project := fs.String("project", "", "only export articles of this project")
	limit := fs.Int("limit", 0, "maximum articles to export (0 = all)")
	_ = fs.Parse(os.Args[2:])

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	cfg, logger := setup(common, config.CmdStore)
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	articles, err := store.ListArticles(context.Background(), models.ArticleFilter{
		Source:  *source,
		Project: *project,
		Limit:   *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}

	path := *out
	if path == "" {
		path = export.Filename("", format)
	}
	if err := writeExport(path, format, articles); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d articles to %s\n", len(articles), path)
}

// writeExport writes articles to path; a partially written file is removed.
func writeExport(path string, format export.Format, articles []*models.Article) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.Write(f, format, articles); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func runVocab() {
	fs, common := newFlagSet("vocab")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(common, "")
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	vocab := components.Extractor.Vocabulary(context.Background())
	if err := cli.WriteVocabulary(os.Stdout, vocab.Sorted(), common.format()); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runList() {
	fs, common := newFlagSet("list")
	source := fs.String("source", "", "only list articles from this source (slack or confluence)")
	project := fs.String("project", "", "only list articles of this project")
	limit := fs.Int("limit", 20, "maximum articles to list")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(common, config.CmdStore)
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	articles, err := store.ListArticles(context.Background(), models.ArticleFilter{
		Source:  *source,
		Project: *project,
		Limit:   *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteArticles(os.Stdout, articles, common.format()); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the subset of GET /api/v1/status the CLI reads.
type statusResponse struct {
	Articles       map[string]int64 `json:"articles"`
	DiskUsageBytes int64            `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs, common := newFlagSet("status")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		cli.InitColors(*common.noColor)
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status := &cli.Status{Backend: "server", Location: *serverURL, Articles: res.Articles, DiskBytes: res.DiskUsageBytes}
		if err := cli.WriteStatus(os.Stdout, status, common.format()); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, logger := setup(common, config.CmdStore)
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	status, err := storeStatus(context.Background(), cfg, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, common.format()); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// storeStatus counts articles per source and, for SQLite, the database size.
func storeStatus(ctx context.Context, cfg *config.Config, store storage.Store) (*cli.Status, error) {
	status := &cli.Status{Backend: cfg.Store.Backend, Articles: map[string]int64{}}
	for _, src := range []string{"", models.SourceChat, models.SourceWiki} {
		n, err := store.CountArticles(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("count %q articles: %w", src, err)
		}
		key := src
		if key == "" {
			key = "total"
		}
		status.Articles[key] = n
	}
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		status.Location = cfg.Store.DatabasePath
		if size, err := storage.DatabaseFileBytes(cfg.Store.DatabasePath); err == nil {
			status.DiskBytes = size
		}
	case config.BackendSupabase:
		status.Location = strings.TrimRight(cfg.Store.SupabaseURL, "/") + "/rest/v1/" + cfg.Store.Table
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", defaultConfigPath, "where to write the starter config")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeStarterConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote starter config to %s\n", *path)
}

// writeStarterConfig saves a defaulted config at path. An existing file is
// kept unless force is set.
func writeStarterConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Vocabulary.Sources = []string{"./docs/README.md"}
	return config.Save(path, cfg)
}

func printUsage() {
	fmt.Println(`knowledgehub - Consolidate chat discussions into a keyword knowledge base

Usage:
  knowledgehub extract [flags]    Run one extraction pass over recent chat messages
  knowledgehub wiki [flags]       Sync wiki pages into the knowledge store
  knowledgehub serve [flags]      Start the HTTP server
  knowledgehub export [flags]     Export articles to CSV or XLSX
  knowledgehub vocab [flags]      Print the keyword vocabulary
  knowledgehub list [flags]       List the most recently updated articles
  knowledgehub status [flags]     Show article counts and store location
  knowledgehub init [flags]       Write a starter config file
  knowledgehub version            Show version
  knowledgehub help               Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/knowledgehub/config.yaml)
  --debug            Enable debug logging
  --json             Print JSON instead of text
  --no-color         Disable colored output

Extract Flags:
  --hours int        Lookback window in hours (default from config, 24)

Wiki Flags:
  --limit int        Maximum pages to sync (default from config, 50)

Export Flags:
  --format string    csv, xlsx or pdf (default: csv)
  --out string       Output file (default: knowledge-export.<format>)
  --source string    Only articles from slack or confluence
  --project string   Only articles of this project
  --limit int        Maximum articles (default: all)

List Flags:
  --source string    Only articles from slack or confluence
  --project string   Only articles of this project
  --limit int        Maximum articles (default: 20)

Status Flags:
  --server string    Server URL; empty reads the store directly

Init Flags:
  --force            Overwrite an existing config file

Environment:
  SLACK_BOT_TOKEN, INCLUDE_CHANNELS, EXTRACTION_HOURS_BACK, SUPABASE_URL,
  SUPABASE_ANON_KEY, OPENAI_API_KEY, OPENAI_MODEL, CONFLUENCE_URL,
  CONFLUENCE_EMAIL, CONFLUENCE_API_TOKEN, CONFLUENCE_SPACE_KEY,
  CONFLUENCE_LIMIT, KNOWLEDGEHUB_DEBUG override the config file.

Examples:
  knowledgehub init --config ./config.yaml
  knowledgehub extract
  knowledgehub extract --hours 72 --json
  knowledgehub wiki
  knowledgehub export --format xlsx --source slack
  knowledgehub serve
  knowledgehub status --server http://localhost:8080`)
}
