package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveInWorkspace resolves path (relative or absolute) inside workspace.
// Paths that escape the workspace are rejected.
func resolveInWorkspace(path, workspace string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(workspace, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return path, nil
}

// ReadFileTool reads a file from the workspace.
type ReadFileTool struct {
	Workspace string
}

func (t *ReadFileTool) Name() string         { return "read_file" }
func (t *ReadFileTool) PathParams() []string { return []string{"path"} }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Paths are relative to the workspace directory."
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace or absolute within it",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path := GetString(params, "path", "")
	if path == "" {
		return "Error: path is required", nil
	}

	resolved, err := resolveInWorkspace(path, t.Workspace)
	if err != nil {
		return "Error: " + err.Error(), nil
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", resolved), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: permission denied: %s", resolved), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	return string(content), nil
}

// WriteFileTool creates or overwrites a file in the workspace.
type WriteFileTool struct {
	Workspace string
}

func (t *WriteFileTool) Name() string         { return "write_file" }
func (t *WriteFileTool) PathParams() []string { return []string{"path"} }

func (t *WriteFileTool) Description() string {
	return "Create or overwrite a file with the given content. Parent directories are created automatically."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, relative to the workspace or absolute within it",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The full content to write",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path := GetString(params, "path", "")
	content := GetString(params, "content", "")
	if path == "" {
		return "Error: path is required", nil
	}

	resolved, err := resolveInWorkspace(path, t.Workspace)
	if err != nil {
		return "Error: " + err.Error(), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Sprintf("Error creating directory: %v", err), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), resolved), nil
}

// ListDirTool lists a workspace directory.
type ListDirTool struct {
	Workspace string
}

func (t *ListDirTool) Name() string         { return "list_dir" }
func (t *ListDirTool) PathParams() []string { return []string{"path"} }

func (t *ListDirTool) Description() string {
	return "List the entries of a directory. Defaults to the workspace root."
}

func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory path, relative to the workspace (default: workspace root)",
			},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path := GetString(params, "path", ".")

	resolved, err := resolveInWorkspace(path, t.Workspace)
	if err != nil {
		return "Error: " + err.Error(), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: directory not found: %s", resolved), nil
		}
		return fmt.Sprintf("Error listing directory: %v", err), nil
	}
	if len(entries) == 0 {
		return "(empty directory)", nil
	}

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
			continue
		}
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s\n", e.Name())
			continue
		}
		fmt.Fprintf(&b, "%s (%d bytes)\n", e.Name(), info.Size())
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
