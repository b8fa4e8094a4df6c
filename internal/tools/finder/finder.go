// Package finder implements Finder connector tools. Both tools take
// filesystem paths, so every input is resolved through the path
// sandbox before any script is built.
package finder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// RevealTool reveals a file or folder in a Finder window.
type RevealTool struct {
	runner tools.Runner
	paths  *policy.PathGuard
	logger *slog.Logger
}

// NewRevealTool creates the tool.
func NewRevealTool(r tools.Runner, paths *policy.PathGuard, logger *slog.Logger) *RevealTool {
	return &RevealTool{runner: r, paths: paths, logger: logger}
}

func (t *RevealTool) Name() string        { return "finder_reveal" }
func (t *RevealTool) Description() string { return "Reveal a file or folder in Finder" }

func (t *RevealTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "POSIX path to reveal"},
		},
		"required": []string{"path"},
	}
}

func (t *RevealTool) Validate(params map[string]any) error {
	_, err := tools.RequireString(params, "path")
	return err
}

func (t *RevealTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	path, err := tools.RequireString(params, "path")
	if err != nil {
		return nil, err
	}
	resolved, err := t.paths.Resolve(path)
	if err != nil {
		return nil, err
	}
	if t.logger != nil {
		t.logger.InfoContext(ctx, "revealing path", slog.String("path", resolved))
	}
	return t.runner.Run(ctx, revealScript(resolved), 0)
}

// ListFolderTool lists the items of a folder.
type ListFolderTool struct {
	runner tools.Runner
	paths  *policy.PathGuard
}

// NewListFolderTool creates the tool.
func NewListFolderTool(r tools.Runner, paths *policy.PathGuard) *ListFolderTool {
	return &ListFolderTool{runner: r, paths: paths}
}

func (t *ListFolderTool) Name() string        { return "finder_list_folder" }
func (t *ListFolderTool) Description() string { return "List the items in a folder via Finder" }

func (t *ListFolderTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "POSIX path of the folder"},
		},
		"required": []string{"path"},
	}
}

func (t *ListFolderTool) Validate(params map[string]any) error {
	_, err := tools.RequireString(params, "path")
	return err
}

func (t *ListFolderTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	path, err := tools.RequireString(params, "path")
	if err != nil {
		return nil, err
	}
	resolved, err := t.paths.Resolve(path)
	if err != nil {
		return nil, err
	}
	return t.runner.Run(ctx, listFolderScript(resolved), 0)
}

func revealScript(path string) string {
	return fmt.Sprintf(`tell application "Finder"
	reveal POSIX file %s
	activate
	return "Revealed " & %s
end tell`, tools.Quote(path), tools.Quote(path))
}

func listFolderScript(path string) string {
	return fmt.Sprintf(`tell application "Finder"
	set targetFolder to POSIX file %s as alias
	set output to {}
	repeat with item_ in (items of folder targetFolder)
		set end of output to name of item_
	end repeat
	if (count of output) is 0 then return "Empty folder"
	set AppleScript's text item delimiters to linefeed
	return output as string
end tell`, tools.Quote(path))
}
