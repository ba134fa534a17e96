package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GovClaw/GovClaw/internal/store"
)

var (
	auditLimit   int
	auditSession string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit records",
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(st *store.Store) error {
			return showAudit(st, os.Stdout, auditSession, auditLimit)
		})
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of records to show")
	auditCmd.Flags().StringVarP(&auditSession, "session", "s", "", "Filter by session key")
}

func showAudit(st *store.Store, w io.Writer, sessionKey string, limit int) error {
	records, err := st.RecentAudit(sessionKey, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "Audit log is empty.")
		return nil
	}
	for _, rec := range records {
		verdict := color.GreenString(rec.Verdict)
		if rec.Verdict == store.VerdictBlocked {
			verdict = color.RedString(rec.Verdict)
		}
		fmt.Fprintf(w, "%s  %-7s %-16s %s", rec.DecidedAt.Format("2006-01-02 15:04:05"), verdict, rec.Capability, rec.SessionKey)
		if rec.Reason != "" {
			fmt.Fprintf(w, "  reason=%q", rec.Reason)
		}
		if rec.ErrorText != "" {
			fmt.Fprintf(w, "  error=%q", rec.ErrorText)
		}
		if rec.LatencyMS > 0 {
			fmt.Fprintf(w, "  %dms", rec.LatencyMS)
		}
		fmt.Fprintln(w)
	}
	return nil
}
