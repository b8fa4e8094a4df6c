// Package messages implements Messages.app connector tools.
package messages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// SendTool sends an iMessage/SMS through Messages.app.
type SendTool struct {
	runner tools.Runner
	logger *slog.Logger
}

// NewSendTool creates the tool.
func NewSendTool(r tools.Runner, logger *slog.Logger) *SendTool {
	return &SendTool{runner: r, logger: logger}
}

func (t *SendTool) Name() string { return "messages_send" }
func (t *SendTool) Description() string {
	return "Send a message via Messages.app to a phone number or Apple ID"
}

func (t *SendTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient": map[string]any{"type": "string", "description": "Phone number or Apple ID"},
			"text":      map[string]any{"type": "string", "description": "Message text"},
		},
		"required": []string{"recipient", "text"},
	}
}

func (t *SendTool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "recipient"); err != nil {
		return err
	}
	_, err := tools.RequireString(params, "text")
	return err
}

func (t *SendTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	recipient, err := tools.RequireString(params, "recipient")
	if err != nil {
		return nil, err
	}
	text, err := tools.RequireString(params, "text")
	if err != nil {
		return nil, err
	}
	if t.logger != nil {
		// Message text never goes to the logs.
		t.logger.InfoContext(ctx, "sending message", slog.String("recipient", recipient))
	}
	return t.runner.Run(ctx, sendMessageScript(recipient, text), 0)
}

func sendMessageScript(recipient, text string) string {
	return fmt.Sprintf(`tell application "Messages"
	set targetService to 1st account whose service type = iMessage
	set targetBuddy to participant %s of targetService
	send %s to targetBuddy
	return "Message sent to " & %s
end tell`, tools.Quote(recipient), tools.Quote(text), tools.Quote(recipient))
}
