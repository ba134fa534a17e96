// Package main is the entry point for the govclaw CLI.
package main

import (
	"os"

	"github.com/GovClaw/GovClaw/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
