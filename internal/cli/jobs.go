package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GovClaw/GovClaw/internal/store"
)

var (
	jobName     string
	jobInterval time.Duration
	jobMessage  string
	jobChannel  string
	jobChatID   string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(st *store.Store) error {
			return listJobs(st, os.Stdout)
		})
	},
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recurring job",
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(st *store.Store) error {
			return addJob(st, os.Stdout, &store.CronJob{
				Name:     jobName,
				Message:  jobMessage,
				Interval: jobInterval,
				Channel:  jobChannel,
				ChatID:   jobChatID,
			})
		})
	},
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(st *store.Store) error {
			return removeJob(st, os.Stdout, args[0])
		})
	},
}

func init() {
	jobsAddCmd.Flags().StringVar(&jobName, "name", "", "Job name")
	jobsAddCmd.Flags().DurationVar(&jobInterval, "interval", time.Hour, "Run interval (e.g. 30m, 2h)")
	jobsAddCmd.Flags().StringVar(&jobMessage, "message", "", "Prompt executed on each run")
	jobsAddCmd.Flags().StringVar(&jobChannel, "channel", "telegram", "Delivery channel")
	jobsAddCmd.Flags().StringVar(&jobChatID, "chat", "", "Delivery chat id")
	jobsAddCmd.MarkFlagRequired("name")
	jobsAddCmd.MarkFlagRequired("message")
	jobsAddCmd.MarkFlagRequired("chat")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsRemoveCmd)
}

func listJobs(st *store.Store, w io.Writer) error {
	jobs, err := st.ListJobs()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No scheduled jobs.")
		return nil
	}
	for _, j := range jobs {
		fmt.Fprintf(w, "%s  %-16s every %-8s next %s  -> %s:%s", j.ID, j.Name, j.Interval, j.NextRunAt.Format("01-02 15:04"), j.Channel, j.ChatID)
		if j.LastStatus != "" {
			fmt.Fprintf(w, "  [last: %s]", j.LastStatus)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func addJob(st *store.Store, w io.Writer, job *store.CronJob) error {
	if err := st.AddJob(job); err != nil {
		if errors.Is(err, store.ErrIntervalTooShort) {
			return fmt.Errorf("interval must be at least %s", st.IntervalFloor())
		}
		return err
	}
	fmt.Fprintf(w, "Added job %s (id: %s), first run at %s.\n", job.Name, job.ID, job.NextRunAt.Format("15:04:05"))
	return nil
}

func removeJob(st *store.Store, w io.Writer, id string) error {
	if err := st.RemoveJob(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no job with id %s", id)
		}
		return err
	}
	fmt.Fprintf(w, "Removed job %s.\n", id)
	return nil
}
