package tools

import (
	"context"
	"fmt"
)

// SpawnFunc runs a delegated task and returns its result. The spawner
// injects it at wiring time so this package stays free of agent imports.
type SpawnFunc func(ctx context.Context, task, sessionKey string) (string, error)

// SpawnSubagentTool delegates a task to an ephemeral worker loop.
// Workers run with a capability subset that excludes this tool, so
// delegation cannot recurse.
type SpawnSubagentTool struct {
	Spawn SpawnFunc
}

func (t *SpawnSubagentTool) Name() string { return "spawn_subagent" }

func (t *SpawnSubagentTool) Description() string {
	return "Delegate a task to a sub-agent. The sub-agent runs independently with its own context, executes capabilities if needed, and returns a text result."
}

func (t *SpawnSubagentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "Clear description of the task for the sub-agent to perform",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnSubagentTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	task := GetString(params, "task", "")
	if task == "" {
		return "Error: task is required", nil
	}
	if t.Spawn == nil {
		return "Error: delegation is not configured", nil
	}

	result, err := t.Spawn(ctx, task, InvocationFrom(ctx).SessionKey)
	if err != nil {
		return fmt.Sprintf("Sub-agent failed: %v", err), nil
	}
	return result, nil
}
