package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GovClaw/GovClaw/internal/store"
)

// ManageCronTool lets the LLM create, remove and list recurring jobs.
// New jobs deliver to the chat the invocation originated from.
type ManageCronTool struct {
	Store *store.Store
}

func (t *ManageCronTool) Name() string { return "manage_cron" }

func (t *ManageCronTool) Description() string {
	return fmt.Sprintf("Manage recurring scheduled jobs. Actions: 'add' a job (name, message, interval_seconds, minimum %d), 'remove' a job by id, 'list' all jobs.", int(t.Store.IntervalFloor().Seconds()))
}

func (t *ManageCronTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"add", "remove", "list"},
				"description": "Action to perform",
			},
			"name": map[string]any{
				"type":        "string",
				"description": "Job name (required for 'add')",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "The prompt the agent will execute each interval (required for 'add')",
			},
			"interval_seconds": map[string]any{
				"type":        "integer",
				"description": "Run every N seconds (required for 'add')",
			},
			"job_id": map[string]any{
				"type":        "string",
				"description": "Job id to remove (required for 'remove')",
			},
		},
		"required": []string{"action"},
	}
}

func (t *ManageCronTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	action := GetString(params, "action", "")

	switch action {
	case "list":
		jobs, err := t.Store.ListJobs()
		if err != nil {
			return "", fmt.Errorf("tools: list jobs: %w", err)
		}
		if len(jobs) == 0 {
			return "No cron jobs.", nil
		}
		var b strings.Builder
		for _, j := range jobs {
			status := j.LastStatus
			if status == "" {
				status = "pending"
			}
			fmt.Fprintf(&b, "- %s (id: %s) every %s [%s]\n", j.Name, j.ID, j.Interval, status)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "add":
		name := GetString(params, "name", "")
		message := GetString(params, "message", "")
		interval := GetInt(params, "interval_seconds", 0)
		if name == "" || message == "" {
			return "Error: 'name' and 'message' are required for 'add'", nil
		}

		inv := InvocationFrom(ctx)
		job := &store.CronJob{
			Name:     name,
			Message:  message,
			Interval: time.Duration(interval) * time.Second,
			Channel:  inv.Channel,
			ChatID:   inv.ChatID,
		}
		err := t.Store.AddJob(job)
		if errors.Is(err, store.ErrIntervalTooShort) {
			return fmt.Sprintf("Error: interval must be at least %d seconds", int(t.Store.IntervalFloor().Seconds())), nil
		}
		if err != nil {
			return "", fmt.Errorf("tools: add job: %w", err)
		}
		return fmt.Sprintf("Cron job created: %q (id: %s), runs every %s.", name, job.ID, job.Interval), nil

	case "remove":
		jobID := GetString(params, "job_id", "")
		if jobID == "" {
			return "Error: 'job_id' is required for 'remove'", nil
		}
		err := t.Store.RemoveJob(jobID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Job %s not found.", jobID), nil
		}
		if err != nil {
			return "", fmt.Errorf("tools: remove job: %w", err)
		}
		return fmt.Sprintf("Cron job %s removed.", jobID), nil
	}

	return fmt.Sprintf("Error: unknown action %q", action), nil
}
