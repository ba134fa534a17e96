package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GovClaw/GovClaw/internal/store"
)

// ManageMemoryTool lets the LLM persist key-value state across runs.
// Entries are scoped to the invocation's namespace so cron jobs and user
// sessions cannot read each other's state.
type ManageMemoryTool struct {
	Store *store.Store
}

func (t *ManageMemoryTool) Name() string { return "manage_memory" }

func (t *ManageMemoryTool) Description() string {
	return "Persist key-value data across runs, scoped to the current session or job. Actions: 'get' a key, 'set' a key+value, 'list' all keys, 'delete' a key."
}

func (t *ManageMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"get", "set", "list", "delete"},
				"description": "Action to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "Memory key (required for get/set/delete)",
			},
			"value": map[string]any{
				"type":        "string",
				"description": "Value to store (required for 'set'). Use JSON for structured data.",
			},
		},
		"required": []string{"action"},
	}
}

func (t *ManageMemoryTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	namespace := InvocationFrom(ctx).Namespace
	if namespace == "" {
		namespace = "global"
	}

	action := GetString(params, "action", "")
	key := GetString(params, "key", "")
	value := GetString(params, "value", "")

	switch action {
	case "list":
		entries, err := t.Store.ListMemory(namespace)
		if err != nil {
			return "", fmt.Errorf("tools: list memory: %w", err)
		}
		if len(entries) == 0 {
			return "No memory entries.", nil
		}
		var b strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&b, "- %s: %s\n", e.Key, truncate(e.Value, 200))
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "get":
		if key == "" {
			return "Error: 'key' is required for 'get'", nil
		}
		v, err := t.Store.GetMemory(namespace, key)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Key %q not found.", key), nil
		}
		if err != nil {
			return "", fmt.Errorf("tools: get memory: %w", err)
		}
		return v, nil

	case "set":
		if key == "" || value == "" {
			return "Error: 'key' and 'value' are required for 'set'", nil
		}
		if err := t.Store.SetMemory(namespace, key, value); err != nil {
			return "", fmt.Errorf("tools: set memory: %w", err)
		}
		return fmt.Sprintf("Saved %q.", key), nil

	case "delete":
		if key == "" {
			return "Error: 'key' is required for 'delete'", nil
		}
		err := t.Store.DeleteMemory(namespace, key)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Key %q not found.", key), nil
		}
		if err != nil {
			return "", fmt.Errorf("tools: delete memory: %w", err)
		}
		return fmt.Sprintf("Deleted %q.", key), nil
	}

	return fmt.Sprintf("Error: unknown action %q", action), nil
}
