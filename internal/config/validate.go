package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is returned by Validate when a command lacks a required setting.
var ErrMissingCredential = errors.New("missing required credential")

// Commands with credential requirements.
const (
	CmdExtract = "extract"
	CmdWiki    = "wiki"
	CmdServe   = "serve"
	CmdStore   = "store"
)

// Validate reports the settings cmd needs but cfg lacks. Commands that only
// read the store are validated with CmdStore.
func Validate(cfg *Config, cmd string) error {
	var missing []string
	require := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}

	switch cfg.Store.Backend {
	case BackendSQLite:
		require(cfg.Store.DatabasePath, "store.database_path")
	case BackendSupabase:
		require(cfg.Store.SupabaseURL, "SUPABASE_URL")
		require(cfg.Store.SupabaseKey, "SUPABASE_ANON_KEY")
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	switch cmd {
	case CmdExtract, CmdServe:
		require(cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	case CmdWiki:
		require(cfg.Confluence.URL, "CONFLUENCE_URL")
		require(cfg.Confluence.Email, "CONFLUENCE_EMAIL")
		require(cfg.Confluence.APIToken, "CONFLUENCE_API_TOKEN")
		require(cfg.Confluence.SpaceKey, "CONFLUENCE_SPACE_KEY")
	}
	if cmd == CmdExtract && cfg.Vocabulary.IncludeWiki {
		require(cfg.Confluence.URL, "CONFLUENCE_URL")
		require(cfg.Confluence.SpaceKey, "CONFLUENCE_SPACE_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}
