package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Backend == "" {
		if cfg.Store.SupabaseURL != "" {
			cfg.Store.Backend = BackendSupabase
		} else {
			cfg.Store.Backend = BackendSQLite
		}
	}
	if cfg.Store.DatabasePath == "" {
		cfg.Store.DatabasePath = "/usr/local/var/knowledgehub/data/knowledge.db"
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = "knowledge_items"
	}
	if cfg.Slack.HistoryLimit == 0 {
		cfg.Slack.HistoryLimit = 200
	}
	if cfg.Slack.RatePerSecond == 0 {
		cfg.Slack.RatePerSecond = 1
	}
	if cfg.Extraction.HoursBack == 0 {
		cfg.Extraction.HoursBack = 24
	}
	if cfg.Extraction.SourceLabel == "" {
		cfg.Extraction.SourceLabel = "slack"
	}
	if cfg.Summarizer.BaseURL == "" {
		cfg.Summarizer.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "gpt-4o-mini"
	}
	if cfg.Summarizer.TimeoutSeconds == 0 {
		cfg.Summarizer.TimeoutSeconds = 30
	}
	if cfg.Summarizer.MaxTokens == 0 {
		cfg.Summarizer.MaxTokens = 1000
	}
	if cfg.Summarizer.Temperature == 0 {
		cfg.Summarizer.Temperature = 0.3
	}
	if cfg.Confluence.Limit == 0 {
		cfg.Confluence.Limit = 50
	}
	if cfg.HTTP.TimeoutSeconds == 0 {
		cfg.HTTP.TimeoutSeconds = 30
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = 3
	}
}
