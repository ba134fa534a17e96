package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".govclaw"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"

	envPrefix = "GOVCLAW"
)

// ConfigPath returns the path to the config file.
// GOVCLAW_CONFIG overrides the full path; GOVCLAW_HOME overrides the base dir.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("GOVCLAW_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// HomeDir returns the govclaw state directory (~/.govclaw by default).
func HomeDir() (string, error) {
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("GOVCLAW_HOME")); h != "" {
		return expandHome(h)
	}
	return os.UserHomeDir()
}

func expandHome(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		base, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, p[1:]), nil
	}
	return p, nil
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	stateDir, _ := HomeDir()
	return &Config{
		Paths: PathsConfig{
			Workspace: filepath.Join(stateDir, "workspace"),
			DBPath:    filepath.Join(stateDir, "govclaw.db"),
		},
		Model: ModelConfig{
			Name:        "anthropic/claude-sonnet-4-5",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Agent: AgentConfig{
			MaxIterations:         15,
			SubagentMaxIterations: 5,
			MemoryWindow:          40,
			ToolTimeout:           60 * time.Second,
			AutoApproveBuiltins:   true,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			TickInterval:  10 * time.Second,
			IntervalFloor: 60 * time.Second,
			LockPath:      filepath.Join(stateDir, "scheduler.lock"),
		},
	}
}

// Load reads the config file (if present) over the defaults, then applies
// environment variable overrides via envconfig.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}

	cfg.applyFloors()
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// applyFloors clamps values that must never go below their minimums.
func (c *Config) applyFloors() {
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 15
	}
	if c.Agent.SubagentMaxIterations <= 0 || c.Agent.SubagentMaxIterations >= c.Agent.MaxIterations {
		c.Agent.SubagentMaxIterations = 5
	}
	if c.Agent.MemoryWindow <= 0 {
		c.Agent.MemoryWindow = 40
	}
	if c.Agent.ToolTimeout <= 0 {
		c.Agent.ToolTimeout = 60 * time.Second
	}
	if c.Agent.ToolTimeout > 120*time.Second {
		c.Agent.ToolTimeout = 120 * time.Second
	}
	if c.Scheduler.TickInterval <= 0 {
		c.Scheduler.TickInterval = 10 * time.Second
	}
	if c.Scheduler.IntervalFloor < time.Minute {
		c.Scheduler.IntervalFloor = time.Minute
	}
}
