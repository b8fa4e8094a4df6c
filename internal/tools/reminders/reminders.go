// Package reminders implements Reminders.app connector tools.
package reminders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// CreateTool adds a reminder.
type CreateTool struct {
	runner tools.Runner
	logger *slog.Logger
}

// NewCreateTool creates the tool.
func NewCreateTool(r tools.Runner, logger *slog.Logger) *CreateTool {
	return &CreateTool{runner: r, logger: logger}
}

func (t *CreateTool) Name() string { return "reminders_create" }
func (t *CreateTool) Description() string {
	return "Create a reminder in Reminders.app, optionally with a due date and target list"
}

func (t *CreateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":     map[string]any{"type": "string", "description": "Reminder text"},
			"due_date": map[string]any{"type": "string", "description": "Optional due date, e.g. 'September 1, 2026 9:00 AM'"},
			"list":     map[string]any{"type": "string", "description": "Optional list name (default list if omitted)"},
		},
		"required": []string{"name"},
	}
}

func (t *CreateTool) Validate(params map[string]any) error {
	_, err := tools.RequireString(params, "name")
	return err
}

func (t *CreateTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	name, err := tools.RequireString(params, "name")
	if err != nil {
		return nil, err
	}
	script := createReminderScript(name,
		tools.OptionalString(params, "due_date"),
		tools.OptionalString(params, "list"),
	)
	if t.logger != nil {
		t.logger.InfoContext(ctx, "creating reminder", slog.String("name", name))
	}
	return t.runner.Run(ctx, script, 0)
}

// ListTool lists open reminders.
type ListTool struct {
	runner tools.Runner
}

// NewListTool creates the tool.
func NewListTool(r tools.Runner) *ListTool {
	return &ListTool{runner: r}
}

func (t *ListTool) Name() string        { return "reminders_list" }
func (t *ListTool) Description() string { return "List incomplete reminders, optionally from one list" }

func (t *ListTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"list": map[string]any{"type": "string", "description": "Optional list name"},
		},
	}
}

func (t *ListTool) Validate(map[string]any) error { return nil }

func (t *ListTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	return t.runner.Run(ctx, listRemindersScript(tools.OptionalString(params, "list")), 0)
}

func createReminderScript(name, dueDate, list string) string {
	props := "name:" + tools.Quote(name)
	if dueDate != "" {
		props += ", due date:date " + tools.Quote(dueDate)
	}

	target := "tell default list"
	if list != "" {
		target = "tell list " + tools.Quote(list)
	}

	return fmt.Sprintf(`tell application "Reminders"
	%s
		make new reminder with properties {%s}
	end tell
	return "Reminder created: " & %s
end tell`, target, props, tools.Quote(name))
}

func listRemindersScript(list string) string {
	source := "every reminder"
	if list != "" {
		source = "every reminder of list " + tools.Quote(list)
	}
	return fmt.Sprintf(`tell application "Reminders"
	set output to {}
	repeat with r in (%s whose completed is false)
		set end of output to name of r
	end repeat
	if (count of output) is 0 then return "No open reminders"
	set AppleScript's text item delimiters to linefeed
	return output as string
end tell`, source)
}
