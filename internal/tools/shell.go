package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Environment variables containing these substrings are stripped from the
// child process so shell commands cannot read credentials.
var sensitiveEnvMarkers = []string{"TOKEN", "KEY", "SECRET", "PASSWORD", "CREDENTIAL"}

const maxExecTimeout = 120 * time.Second

// ExecTool executes shell commands inside the workspace.
type ExecTool struct {
	Workspace string
	Timeout   time.Duration
}

// NewExecTool creates an ExecTool. timeout is the default per-call limit;
// the LLM may request a different one up to the 120s ceiling, but any
// deadline already on the incoming context (the loop's tool timeout) still
// bounds the run.
func NewExecTool(workspace string, timeout time.Duration) *ExecTool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ExecTool{Workspace: workspace, Timeout: timeout}
}

func (t *ExecTool) Name() string { return "exec" }

func (t *ExecTool) Description() string {
	return "Execute a shell command and return stdout, stderr and the exit code. Commands run inside the workspace directory."
}

func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 60, max 120)",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	command := GetString(params, "command", "")
	if command == "" {
		return "Error: command is required", nil
	}

	timeout := t.Timeout
	if secs := GetInt(params, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	if timeout > maxExecTimeout {
		timeout = maxExecTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.Workspace
	cmd.Env = scrubEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Error: command timed out after %v", timeout), nil
	}

	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return fmt.Sprintf("Error executing command: %v", err), nil
		}
		exitCode = exitErr.ExitCode()
	}

	parts := []string{fmt.Sprintf("Exit code: %d", exitCode)}
	if out := strings.TrimRight(stdout.String(), "\n"); out != "" {
		parts = append(parts, "STDOUT:\n"+out)
	}
	if errOut := strings.TrimRight(stderr.String(), "\n"); errOut != "" {
		parts = append(parts, "STDERR:\n"+errOut)
	}
	if stdout.Len() == 0 && stderr.Len() == 0 {
		parts = append(parts, "(no output)")
	}
	return strings.Join(parts, "\n\n"), nil
}

func scrubEnv(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		name := strings.ToUpper(strings.SplitN(kv, "=", 2)[0])
		sensitive := false
		for _, marker := range sensitiveEnvMarkers {
			if strings.Contains(name, marker) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			out = append(out, kv)
		}
	}
	return out
}
