package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GovClaw/GovClaw/internal/store"
)

func newToolStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tools.db"), time.Minute)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestManageMemorySetGetDelete(t *testing.T) {
	tool := &ManageMemoryTool{Store: newToolStore(t)}
	ctx := WithInvocation(context.Background(), Invocation{Namespace: "user:7"})

	out, err := tool.Execute(ctx, map[string]any{"action": "set", "key": "color", "value": "blue"})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, "Saved") {
		t.Fatalf("unexpected set result: %q", out)
	}

	out, _ = tool.Execute(ctx, map[string]any{"action": "get", "key": "color"})
	if out != "blue" {
		t.Fatalf("unexpected get result: %q", out)
	}

	out, _ = tool.Execute(ctx, map[string]any{"action": "list"})
	if !strings.Contains(out, "color: blue") {
		t.Fatalf("unexpected list result: %q", out)
	}

	out, _ = tool.Execute(ctx, map[string]any{"action": "delete", "key": "color"})
	if !strings.Contains(out, "Deleted") {
		t.Fatalf("unexpected delete result: %q", out)
	}

	out, _ = tool.Execute(ctx, map[string]any{"action": "get", "key": "color"})
	if !strings.Contains(out, "not found") {
		t.Fatalf("deleted key still readable: %q", out)
	}
}

func TestManageMemoryNamespaceIsolation(t *testing.T) {
	tool := &ManageMemoryTool{Store: newToolStore(t)}

	userCtx := WithInvocation(context.Background(), Invocation{Namespace: "user:1"})
	jobCtx := WithInvocation(context.Background(), Invocation{Namespace: "job:abc"})

	tool.Execute(userCtx, map[string]any{"action": "set", "key": "k", "value": "user-value"})

	out, _ := tool.Execute(jobCtx, map[string]any{"action": "get", "key": "k"})
	if !strings.Contains(out, "not found") {
		t.Fatalf("namespaces leaked: %q", out)
	}
}

func TestManageMemoryValidation(t *testing.T) {
	tool := &ManageMemoryTool{Store: newToolStore(t)}
	ctx := context.Background()

	out, _ := tool.Execute(ctx, map[string]any{"action": "get"})
	if !strings.Contains(out, "required") {
		t.Fatalf("missing key should be reported: %q", out)
	}
	out, _ = tool.Execute(ctx, map[string]any{"action": "explode"})
	if !strings.Contains(out, "unknown action") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestManageCronAddListRemove(t *testing.T) {
	tool := &ManageCronTool{Store: newToolStore(t)}
	ctx := WithInvocation(context.Background(), Invocation{Channel: "telegram", ChatID: "42"})

	out, err := tool.Execute(ctx, map[string]any{
		"action": "add", "name": "reminder", "message": "check status", "interval_seconds": 120,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Cron job created") {
		t.Fatalf("unexpected add result: %q", out)
	}

	out, _ = tool.Execute(ctx, map[string]any{"action": "list"})
	if !strings.Contains(out, "reminder") || !strings.Contains(out, "2m0s") {
		t.Fatalf("unexpected list result: %q", out)
	}

	// Extract the job id from the list line "(id: xxxx)".
	idStart := strings.Index(out, "id: ") + 4
	jobID := out[idStart : idStart+12]

	out, _ = tool.Execute(ctx, map[string]any{"action": "remove", "job_id": jobID})
	if !strings.Contains(out, "removed") {
		t.Fatalf("unexpected remove result: %q", out)
	}
}

func TestManageCronRejectsShortInterval(t *testing.T) {
	tool := &ManageCronTool{Store: newToolStore(t)}
	out, err := tool.Execute(context.Background(), map[string]any{
		"action": "add", "name": "fast", "message": "m", "interval_seconds": 10,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "at least 60 seconds") {
		t.Fatalf("short interval not rejected: %q", out)
	}
}

func TestManageCronRemoveUnknown(t *testing.T) {
	tool := &ManageCronTool{Store: newToolStore(t)}
	out, _ := tool.Execute(context.Background(), map[string]any{"action": "remove", "job_id": "nope"})
	if !strings.Contains(out, "not found") {
		t.Fatalf("unexpected output: %q", out)
	}
}
