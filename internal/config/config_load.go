package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Lark: LarkConfig{
			Domain: "feishu",
		},
		Analyzer: AnalyzerConfig{
			APIBase:     "https://open.bigmodel.cn/api/paas/v4",
			Model:       "glm-4.7",
			Temperature: 0.7,
			MaxTokens:   4096,
			TimeoutSecs: 90,
		},
		Bot: BotConfig{
			Workers:        10,
			QueueSize:      128,
			DedupeCapacity: 500,
			MaxHistory:     10,
			HistoryTTLSecs: 3600,
			StaleAfterSecs: 60,
		},
		GitHub: GitHubConfig{
			Enabled:    true,
			Since:      "daily",
			Limit:      10,
			MaxAgeDays: 60,
		},
		HackerNews: HNConfig{
			Enabled:  true,
			MinScore: 100,
			Limit:    10,
		},
		Schedule: ScheduleConfig{
			Cron: "0 9 * * *",
		},
		DataDir: "~/.intelbot",
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults (env vars still apply).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides overlays environment variables onto the config.
// Env vars take precedence over file values.
func (c *Config) ApplyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("INTELBOT_LARK_APP_ID", &c.Lark.AppID)
	envStr("INTELBOT_LARK_APP_SECRET", &c.Lark.AppSecret)
	envStr("INTELBOT_LARK_WEBHOOK_URL", &c.Lark.WebhookURL)
	envStr("INTELBOT_LARK_CHAT_ID", &c.Lark.DefaultChatID)
	envStr("INTELBOT_DINGTALK_WEBHOOK_URL", &c.DingTalk.WebhookURL)
	envStr("INTELBOT_DINGTALK_SECRET", &c.DingTalk.Secret)
	envStr("INTELBOT_API_KEY", &c.Analyzer.APIKey)
	envStr("INTELBOT_API_BASE", &c.Analyzer.APIBase)
	envStr("INTELBOT_MODEL", &c.Analyzer.Model)
	envStr("INTELBOT_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	envStr("INTELBOT_DATA_DIR", &c.DataDir)

	// Auto-enable integrations when credentials arrive via env.
	if c.Lark.AppID != "" && c.Lark.AppSecret != "" {
		c.Lark.Enabled = true
	}
	if c.DingTalk.WebhookURL != "" {
		c.DingTalk.Enabled = true
	}
	if c.Tracing.Endpoint != "" {
		c.Tracing.Enabled = true
	}
}

// ValidateForChat checks the credentials the chat bot cannot start
// without. Called before the dispatcher accepts any event.
func (c *Config) ValidateForChat() error {
	if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
		return fmt.Errorf("lark app_id and app_secret are required (set INTELBOT_LARK_APP_ID / INTELBOT_LARK_APP_SECRET)")
	}
	if c.Analyzer.APIKey == "" {
		return fmt.Errorf("analyzer api_key is required (set INTELBOT_API_KEY)")
	}
	return nil
}
