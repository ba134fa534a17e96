package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecSimpleCommand(t *testing.T) {
	tool := NewExecTool(t.TempDir(), 10*time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Exit code: 0") || !strings.Contains(out, "hello") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExecReportsExitCode(t *testing.T) {
	tool := NewExecTool(t.TempDir(), 10*time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{"command": "exit 3"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Exit code: 3") {
		t.Fatalf("exit code not reported: %q", out)
	}
}

func TestExecCapturesStderr(t *testing.T) {
	tool := NewExecTool(t.TempDir(), 10*time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo oops >&2"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "STDERR:") || !strings.Contains(out, "oops") {
		t.Fatalf("stderr not captured: %q", out)
	}
}

func TestExecTimeout(t *testing.T) {
	tool := NewExecTool(t.TempDir(), 10*time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{
		"command": "sleep 5",
		"timeout": 1,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "timed out") {
		t.Fatalf("timeout not reported: %q", out)
	}
}

func TestExecRunsInWorkspace(t *testing.T) {
	ws := t.TempDir()
	tool := NewExecTool(ws, 10*time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{"command": "pwd"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, ws) {
		t.Fatalf("command did not run in workspace: %q", out)
	}
}

func TestExecEnvironmentScrubbed(t *testing.T) {
	t.Setenv("GOVCLAW_TEST_API_KEY", "supersecret")
	t.Setenv("GOVCLAW_TEST_PLAIN", "visible")

	tool := NewExecTool(t.TempDir(), 10*time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{"command": "env"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out, "supersecret") {
		t.Fatal("sensitive env var leaked into shell command")
	}
	if !strings.Contains(out, "visible") {
		t.Fatal("plain env var should be passed through")
	}
}

func TestExecMissingCommand(t *testing.T) {
	tool := NewExecTool(t.TempDir(), 10*time.Second)
	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "command is required") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestScrubEnv(t *testing.T) {
	env := []string{"PATH=/bin", "MY_TOKEN=abc", "DB_PASSWORD=x", "HOME=/root"}
	got := scrubEnv(env)
	for _, kv := range got {
		if strings.HasPrefix(kv, "MY_TOKEN") || strings.HasPrefix(kv, "DB_PASSWORD") {
			t.Fatalf("sensitive var kept: %s", kv)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vars kept, got %v", got)
	}
}
