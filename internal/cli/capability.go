package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GovClaw/GovClaw/internal/config"
	"github.com/GovClaw/GovClaw/internal/store"
)

var capabilityCmd = &cobra.Command{
	Use:   "capability",
	Short: "Inspect and change capability statuses",
}

var capabilityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List capabilities and their statuses",
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(st *store.Store) error {
			return listCapabilities(st, os.Stdout)
		})
	},
}

var capabilityApproveCmd = &cobra.Command{
	Use:   "approve <name>",
	Short: "Approve a capability",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(st *store.Store) error {
			return setCapability(st, os.Stdout, args[0], store.StatusApproved)
		})
	},
}

var capabilityBanCmd = &cobra.Command{
	Use:   "ban <name>",
	Short: "Ban a capability",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(st *store.Store) error {
			return setCapability(st, os.Stdout, args[0], store.StatusBanned)
		})
	},
}

func init() {
	capabilityCmd.AddCommand(capabilityListCmd)
	capabilityCmd.AddCommand(capabilityApproveCmd)
	capabilityCmd.AddCommand(capabilityBanCmd)
}

// withStore opens the store from config, runs fn and exits non-zero on error.
func withStore(fn func(*store.Store) error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	st, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := fn(st); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func listCapabilities(st *store.Store, w io.Writer) error {
	caps, err := st.ListCapabilities()
	if err != nil {
		return err
	}
	if len(caps) == 0 {
		fmt.Fprintln(w, "No capabilities registered. Run the gateway once to seed them.")
		return nil
	}
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-20s %s\n", name, colorStatus(caps[name]))
	}
	return nil
}

func setCapability(st *store.Store, w io.Writer, name string, status store.CapabilityStatus) error {
	if err := st.SetCapabilityStatus(name, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("unknown capability %q", name)
		}
		return err
	}
	fmt.Fprintf(w, "Capability %s is now %s.\n", name, status)
	return nil
}

func colorStatus(status store.CapabilityStatus) string {
	switch status {
	case store.StatusApproved:
		return color.GreenString(string(status))
	case store.StatusBanned:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}
