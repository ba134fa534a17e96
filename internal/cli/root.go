// Package cli implements the govclaw command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/GovClaw/GovClaw/internal/cli.version=1.2.3"
	version = "0.1.0"
	logo    = "\n" +
		"   ____             ____ _\n" +
		"  / ___| _____   __/ ___| | __ ___      __\n" +
		" | |  _ / _ \\ \\ / / |   | |/ _` \\ \\ /\\ / /\n" +
		" | |_| | (_) \\ V /| |___| | (_| |\\ V  V /\n" +
		"  \\____|\\___/ \\_/  \\____|_|\\__,_| \\_/\\_/\n"
)

var rootCmd = &cobra.Command{
	Use:   "govclaw",
	Short: "GovClaw - governed agent execution",
	Long:  color.CyanString(logo) + "\nAn agent loop where every capability invocation passes a policy check\nand lands in a write-ahead audit log.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(capabilityCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(jobsCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(title))
	fmt.Println(color.CyanString("────────────────────────────────"))
}
