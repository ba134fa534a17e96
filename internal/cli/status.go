package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GovClaw/GovClaw/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("govclaw %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("GovClaw Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Printf("Config:  found (%s)\n", path)
			} else {
				fmt.Printf("Config:  not found (%s), using defaults\n", path)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			return
		}

		if cfg.Model.APIKey != "" {
			fmt.Println("API key: set")
		} else {
			fmt.Println("API key: missing (set GOVCLAW_API_KEY)")
		}
		fmt.Printf("Model:   %s\n", cfg.Model.Name)
		fmt.Printf("DB:      %s\n", cfg.Paths.DBPath)
		fmt.Printf("Workspace: %s\n", cfg.Paths.Workspace)

		onOff := func(b bool) string {
			if b {
				return "enabled"
			}
			return "disabled"
		}
		fmt.Printf("Telegram:  %s\n", onOff(cfg.Channels.Telegram.Enabled))
		fmt.Printf("Slack:     %s\n", onOff(cfg.Channels.Slack.Enabled))
		fmt.Printf("Scheduler: %s (tick %s, floor %s)\n", onOff(cfg.Scheduler.Enabled), cfg.Scheduler.TickInterval, cfg.Scheduler.IntervalFloor)
		if cfg.Mirror.Brokers != "" && cfg.Mirror.Topic != "" {
			fmt.Printf("Mirror:    enabled (%s -> %s)\n", cfg.Mirror.Brokers, cfg.Mirror.Topic)
		} else {
			fmt.Println("Mirror:    disabled")
		}
	},
}
