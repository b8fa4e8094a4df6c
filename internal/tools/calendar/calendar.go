// Package calendar implements Calendar.app connector tools.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// CreateEventTool creates a calendar event.
type CreateEventTool struct {
	runner tools.Runner
	logger *slog.Logger
}

// NewCreateEventTool creates the tool.
func NewCreateEventTool(r tools.Runner, logger *slog.Logger) *CreateEventTool {
	return &CreateEventTool{runner: r, logger: logger}
}

func (t *CreateEventTool) Name() string { return "calendar_create_event" }
func (t *CreateEventTool) Description() string {
	return "Create an event in Calendar.app with a title, start/end time, and optional location and notes"
}

func (t *CreateEventTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":      map[string]any{"type": "string", "description": "Event title"},
			"start_date": map[string]any{"type": "string", "description": "Start, e.g. 'August 31, 2026 2:00 PM'"},
			"end_date":   map[string]any{"type": "string", "description": "End, e.g. 'August 31, 2026 3:00 PM'"},
			"location":   map[string]any{"type": "string", "description": "Optional location"},
			"notes":      map[string]any{"type": "string", "description": "Optional notes"},
		},
		"required": []string{"title", "start_date", "end_date"},
	}
}

func (t *CreateEventTool) Validate(params map[string]any) error {
	for _, key := range []string{"title", "start_date", "end_date"} {
		if _, err := tools.RequireString(params, key); err != nil {
			return err
		}
	}
	return nil
}

func (t *CreateEventTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	title, err := tools.RequireString(params, "title")
	if err != nil {
		return nil, err
	}
	start, err := tools.RequireString(params, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := tools.RequireString(params, "end_date")
	if err != nil {
		return nil, err
	}

	script := createEventScript(title, start, end,
		tools.OptionalString(params, "location"),
		tools.OptionalString(params, "notes"),
	)
	if t.logger != nil {
		t.logger.InfoContext(ctx, "creating calendar event", slog.String("title", title))
	}
	return t.runner.Run(ctx, script, 0)
}

// ListTodayTool lists today's events.
type ListTodayTool struct {
	runner tools.Runner
}

// NewListTodayTool creates the tool.
func NewListTodayTool(r tools.Runner) *ListTodayTool {
	return &ListTodayTool{runner: r}
}

func (t *ListTodayTool) Name() string { return "calendar_list_today" }
func (t *ListTodayTool) Description() string {
	return "List all Calendar.app events scheduled for today"
}
func (t *ListTodayTool) InputSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *ListTodayTool) Validate(map[string]any) error { return nil }

func (t *ListTodayTool) Execute(ctx context.Context, _ map[string]any) (*tools.Result, error) {
	return t.runner.Run(ctx, listTodayScript(), 0)
}

// createEventScript assembles the AppleScript for event creation.
// Every caller-supplied value passes through tools.Quote.
func createEventScript(title, start, end, location, notes string) string {
	props := []string{
		"summary:" + tools.Quote(title),
		"start date:date " + tools.Quote(start),
		"end date:date " + tools.Quote(end),
	}
	if location != "" {
		props = append(props, "location:"+tools.Quote(location))
	}
	if notes != "" {
		props = append(props, "description:"+tools.Quote(notes))
	}

	return fmt.Sprintf(`tell application "Calendar"
	tell first calendar whose writable is true
		make new event with properties {%s}
	end tell
	return "Event created: " & %s
end tell`, strings.Join(props, ", "), tools.Quote(title))
}

func listTodayScript() string {
	return `tell application "Calendar"
	set dayStart to current date
	set time of dayStart to 0
	set dayEnd to dayStart + (24 * hours)
	set output to {}
	repeat with cal in calendars
		repeat with ev in (every event of cal whose start date >= dayStart and start date < dayEnd)
			set end of output to (summary of ev) & " at " & (start date of ev as string)
		end repeat
	end repeat
	if (count of output) is 0 then return "No events today"
	set AppleScript's text item delimiters to linefeed
	return output as string
end tell`
}
