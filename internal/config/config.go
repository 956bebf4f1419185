package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultSystemPrompt is sent to the external agent when SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = `You are the DevTrack Assistant, a professional AI agent that helps developers manage tasks, track issues, and summarize progress. Be context-aware, precise, and developer-friendly. Provide full, formal responses without one-word answers. Avoid hallucinations and stick to facts. If you don't understand a request, ask for clarification.`

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"PORT" default:"8080"`
	DBPath      string `envconfig:"DB_PATH" default:"data/dev-tracker.db"`

	// Routing
	DefaultChannelID string `envconfig:"DEFAULT_CHANNEL_ID"`
	SystemPrompt     string `envconfig:"SYSTEM_PROMPT"`

	// External conversational agent (optional — router falls back to help text)
	MastraBaseURL   string        `envconfig:"MASTRA_BASE_URL"`
	MastraAgentPath string        `envconfig:"MASTRA_AGENT_PATH"`
	MastraAPIKey    string        `envconfig:"MASTRA_API_KEY"`
	ExternalTimeout time.Duration `envconfig:"EXTERNAL_TIMEOUT" default:"15s"`

	// Outbound digest delivery (optional)
	TelexOutboundURL string        `envconfig:"TELEX_OUTBOUND_URL"`
	OutboundTimeout  time.Duration `envconfig:"OUTBOUND_TIMEOUT" default:"10s"`

	// Scheduler (UTC cron spec)
	SummaryCron string `envconfig:"SUMMARY_CRON" default:"0 9 * * *"`

	// Listing read cache (latency optimization only; writes bypass it)
	ListCacheTTL  time.Duration `envconfig:"LIST_CACHE_TTL" default:"5m"`
	ListCacheSize int           `envconfig:"LIST_CACHE_SIZE" default:"256"`
}

// MastraEnabled returns true if the external agent endpoint is configured.
func (c *Config) MastraEnabled() bool {
	return c.MastraBaseURL != "" && c.MastraAgentPath != ""
}

// OutboundEnabled returns true if digest delivery is configured.
func (c *Config) OutboundEnabled() bool {
	return c.TelexOutboundURL != ""
}

// MastraURL joins the base URL and agent path, normalizing slashes.
func (c *Config) MastraURL() string {
	base := strings.TrimSuffix(c.MastraBaseURL, "/")
	path := c.MastraAgentPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// ResolveSystemPrompt returns the configured system prompt or the default.
func (c *Config) ResolveSystemPrompt() string {
	if c.SystemPrompt != "" {
		return c.SystemPrompt
	}
	return DefaultSystemPrompt
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
