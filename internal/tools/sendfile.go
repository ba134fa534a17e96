package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GovClaw/GovClaw/internal/bus"
)

// SendFileTool delivers a workspace file to the active chat through the
// outbound bus. The channel adapter decides how to attach it.
type SendFileTool struct {
	Workspace string
	Bus       *bus.MessageBus
}

func (t *SendFileTool) Name() string         { return "send_file" }
func (t *SendFileTool) PathParams() []string { return []string{"path"} }

func (t *SendFileTool) Description() string {
	return "Send a file from the workspace directly to the user's chat. Images are sent as photos, other files as documents."
}

func (t *SendFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace or absolute within it",
			},
			"caption": map[string]any{
				"type":        "string",
				"description": "Optional caption to attach to the file",
			},
		},
		"required": []string{"path"},
	}
}

func (t *SendFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path := GetString(params, "path", "")
	if path == "" {
		return "Error: path is required", nil
	}

	resolved, err := resolveInWorkspace(path, t.Workspace)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", resolved), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: not a file: %s", resolved), nil
	}

	inv := InvocationFrom(ctx)
	if inv.Channel == "" || inv.ChatID == "" {
		return "Error: no active chat to deliver the file to", nil
	}

	t.Bus.PublishOutbound(&bus.OutboundMessage{
		Channel:  inv.Channel,
		ChatID:   inv.ChatID,
		Content:  GetString(params, "caption", ""),
		FilePath: resolved,
	})
	return fmt.Sprintf("Queued %s for delivery.", filepath.Base(resolved)), nil
}
