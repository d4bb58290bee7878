// Package config holds intelbot's configuration: JSON5 file with
// environment variable overlays, plus an fsnotify-based watcher for the
// settings that can change without a restart.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Lark      LarkConfig      `json:"lark"`
	DingTalk  DingTalkConfig  `json:"dingtalk"`
	Analyzer  AnalyzerConfig  `json:"analyzer"`
	Bot       BotConfig       `json:"bot"`
	GitHub    GitHubConfig    `json:"github"`
	HackerNews HNConfig       `json:"hackernews"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Tracing   TracingConfig   `json:"tracing"`
	DataDir   string          `json:"data_dir"`
}

// LarkConfig holds Feishu/Lark app credentials and notifier targets.
type LarkConfig struct {
	AppID         string `json:"app_id"`
	AppSecret     string `json:"app_secret"`
	Domain        string `json:"domain"` // "feishu" (default), "lark", or a URL
	DefaultChatID string `json:"default_chat_id"`
	WebhookURL    string `json:"webhook_url"` // group custom-bot webhook for reports
	Enabled       bool   `json:"enabled"`
}

// DingTalkConfig holds the signed report webhook.
type DingTalkConfig struct {
	WebhookURL string `json:"webhook_url"`
	Secret     string `json:"secret"`
	Enabled    bool   `json:"enabled"`
}

// AnalyzerConfig selects the LLM used for chat replies and project
// analysis.
type AnalyzerConfig struct {
	APIKey      string  `json:"api_key"`
	APIBase     string  `json:"api_base"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutSecs int     `json:"timeout_secs"`
}

// BotConfig tunes the intake pipeline.
type BotConfig struct {
	Workers         int `json:"workers"`
	QueueSize       int `json:"queue_size"`
	DedupeCapacity  int `json:"dedupe_capacity"`
	MaxHistory      int `json:"max_history"`
	HistoryTTLSecs  int `json:"history_ttl_secs"`
	StaleAfterSecs  int `json:"stale_after_secs"`
}

// HistoryTTL returns the conversation TTL as a duration.
func (b BotConfig) HistoryTTL() time.Duration {
	return time.Duration(b.HistoryTTLSecs) * time.Second
}

// StaleAfter returns the inbound staleness cutoff as a duration.
func (b BotConfig) StaleAfter() time.Duration {
	return time.Duration(b.StaleAfterSecs) * time.Second
}

// GitHubConfig tunes the trending collector.
type GitHubConfig struct {
	Enabled          bool     `json:"enabled"`
	Languages        []string `json:"languages"`
	Since            string   `json:"since"` // "daily", "weekly", "monthly"
	Keywords         []string `json:"keywords"`
	ExcludedKeywords []string `json:"excluded_keywords"`
	Limit            int      `json:"limit"`
	MaxAgeDays       int      `json:"max_age_days"`
}

// HNConfig tunes the Hacker News collector.
type HNConfig struct {
	Enabled  bool     `json:"enabled"`
	MinScore int      `json:"min_score"`
	Limit    int      `json:"limit"`
	Keywords []string `json:"keywords"`
}

// ScheduleConfig enables the cron pipeline.
type ScheduleConfig struct {
	Enabled bool   `json:"enabled"`
	Cron    string `json:"cron"` // five-field cron expression
}

// TracingConfig enables OTLP trace export.
type TracingConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"` // OTLP HTTP endpoint, host:port
}

// ResolveDataDir expands the configured data directory, defaulting to
// ~/.intelbot.
func (c *Config) ResolveDataDir() string {
	dir := c.DataDir
	if dir == "" {
		dir = "~/.intelbot"
	}
	return ExpandHome(dir)
}

// HistoryDBPath is the sqlite file tracking already-reported projects.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.ResolveDataDir(), "history.db")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
