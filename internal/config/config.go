// Package config provides configuration types and loading for govclaw.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Agent, Policy, Channels, Scheduler, Mirror.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Agent     AgentConfig     `json:"agent"`
	Policy    PolicyConfig    `json:"policy"`
	Channels  ChannelsConfig  `json:"channels"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Mirror    MirrorConfig    `json:"mirror"`
	Search    SearchConfig    `json:"search"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
	DBPath    string `json:"dbPath" envconfig:"DB_PATH"`
}

// ModelConfig groups LLM provider settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string  `json:"apiBase,omitempty" envconfig:"API_BASE"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// AgentConfig groups agent-loop settings.
type AgentConfig struct {
	MaxIterations         int           `json:"maxIterations" envconfig:"MAX_ITERATIONS"`
	SubagentMaxIterations int           `json:"subagentMaxIterations" envconfig:"SUBAGENT_MAX_ITERATIONS"`
	MemoryWindow          int           `json:"memoryWindow" envconfig:"MEMORY_WINDOW"`
	ToolTimeout           time.Duration `json:"toolTimeout"`
	AutoApproveBuiltins   bool          `json:"autoApproveBuiltins" envconfig:"AUTO_APPROVE_BUILTINS"`
}

// PolicyRule is one dangerous-pattern entry: a regex and the reason shown
// when it blocks an invocation. Rules are evaluated in list order.
type PolicyRule struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// PolicyConfig groups policy engine settings. ExtraRules are appended after
// the built-in dangerous-pattern table.
type PolicyConfig struct {
	ExtraRules []PolicyRule `json:"extraRules,omitempty"`
}

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"TELEGRAM_ENABLED"`
	Token     string   `json:"token" envconfig:"TELEGRAM_TOKEN"`
	AllowFrom []string `json:"allowFrom"`
}

// SlackConfig configures the Slack channel (outbound delivery).
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	BotToken string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
}

// SchedulerConfig contains cron scheduler settings.
type SchedulerConfig struct {
	Enabled       bool          `json:"enabled" envconfig:"SCHEDULER_ENABLED"`
	TickInterval  time.Duration `json:"tickInterval"`
	IntervalFloor time.Duration `json:"intervalFloor"`
	LockPath      string        `json:"lockPath"`
}

// MirrorConfig contains Kafka audit mirror settings. The mirror is disabled
// unless both brokers and topic are set.
type MirrorConfig struct {
	Brokers string `json:"brokers" envconfig:"MIRROR_BROKERS"`
	Topic   string `json:"topic" envconfig:"MIRROR_TOPIC"`
}

// SearchConfig contains web search settings.
type SearchConfig struct {
	BraveAPIKey string `json:"braveApiKey" envconfig:"BRAVE_API_KEY"`
}
