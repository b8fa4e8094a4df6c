// Package notes implements Notes.app connector tools.
package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// CreateTool creates a note.
type CreateTool struct {
	runner tools.Runner
	logger *slog.Logger
}

// NewCreateTool creates the tool.
func NewCreateTool(r tools.Runner, logger *slog.Logger) *CreateTool {
	return &CreateTool{runner: r, logger: logger}
}

func (t *CreateTool) Name() string        { return "notes_create" }
func (t *CreateTool) Description() string { return "Create a note in Notes.app" }

func (t *CreateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "description": "Note title"},
			"body":  map[string]any{"type": "string", "description": "Note body text"},
		},
		"required": []string{"title", "body"},
	}
}

func (t *CreateTool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "title"); err != nil {
		return err
	}
	_, err := tools.RequireString(params, "body")
	return err
}

func (t *CreateTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	title, err := tools.RequireString(params, "title")
	if err != nil {
		return nil, err
	}
	body, err := tools.RequireString(params, "body")
	if err != nil {
		return nil, err
	}
	if t.logger != nil {
		t.logger.InfoContext(ctx, "creating note", slog.String("title", title))
	}
	return t.runner.Run(ctx, createNoteScript(title, body), 0)
}

// SearchTool searches note titles.
type SearchTool struct {
	runner tools.Runner
}

// NewSearchTool creates the tool.
func NewSearchTool(r tools.Runner) *SearchTool {
	return &SearchTool{runner: r}
}

func (t *SearchTool) Name() string        { return "notes_search" }
func (t *SearchTool) Description() string { return "Search Notes.app notes by title substring" }

func (t *SearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Substring to match against note titles"},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Validate(params map[string]any) error {
	_, err := tools.RequireString(params, "query")
	return err
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	query, err := tools.RequireString(params, "query")
	if err != nil {
		return nil, err
	}
	return t.runner.Run(ctx, searchNotesScript(query), 0)
}

func createNoteScript(title, body string) string {
	return fmt.Sprintf(`tell application "Notes"
	make new note at folder "Notes" with properties {name:%s, body:%s}
	return "Note created: " & %s
end tell`, tools.Quote(title), tools.Quote(body), tools.Quote(title))
}

func searchNotesScript(query string) string {
	return fmt.Sprintf(`tell application "Notes"
	set output to {}
	repeat with n in (every note whose name contains %s)
		set end of output to name of n
	end repeat
	if (count of output) is 0 then return "No notes matched"
	set AppleScript's text item delimiters to linefeed
	return output as string
end tell`, tools.Quote(query))
}
