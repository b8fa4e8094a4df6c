// Package mail implements Mail.app connector tools.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// SendTool composes and sends an email through Mail.app.
type SendTool struct {
	runner tools.Runner
	logger *slog.Logger
}

// NewSendTool creates the tool.
func NewSendTool(r tools.Runner, logger *slog.Logger) *SendTool {
	return &SendTool{runner: r, logger: logger}
}

func (t *SendTool) Name() string        { return "mail_send" }
func (t *SendTool) Description() string { return "Send an email via Mail.app" }

func (t *SendTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":      map[string]any{"type": "string", "description": "Recipient email address"},
			"subject": map[string]any{"type": "string", "description": "Subject line"},
			"body":    map[string]any{"type": "string", "description": "Message body"},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func (t *SendTool) Validate(params map[string]any) error {
	for _, key := range []string{"to", "subject", "body"} {
		if _, err := tools.RequireString(params, key); err != nil {
			return err
		}
	}
	return nil
}

func (t *SendTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	to, err := tools.RequireString(params, "to")
	if err != nil {
		return nil, err
	}
	subject, err := tools.RequireString(params, "subject")
	if err != nil {
		return nil, err
	}
	body, err := tools.RequireString(params, "body")
	if err != nil {
		return nil, err
	}
	if t.logger != nil {
		// Recipient only; subject and body stay out of the logs.
		t.logger.InfoContext(ctx, "sending mail", slog.String("to", to))
	}
	return t.runner.Run(ctx, sendMailScript(to, subject, body), 0)
}

// UnreadCountTool reports the unread message count.
type UnreadCountTool struct {
	runner tools.Runner
}

// NewUnreadCountTool creates the tool.
func NewUnreadCountTool(r tools.Runner) *UnreadCountTool {
	return &UnreadCountTool{runner: r}
}

func (t *UnreadCountTool) Name() string        { return "mail_unread_count" }
func (t *UnreadCountTool) Description() string { return "Count unread messages in the Mail.app inbox" }
func (t *UnreadCountTool) InputSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *UnreadCountTool) Validate(map[string]any) error { return nil }

func (t *UnreadCountTool) Execute(ctx context.Context, _ map[string]any) (*tools.Result, error) {
	return t.runner.Run(ctx, unreadCountScript(), 0)
}

func sendMailScript(to, subject, body string) string {
	return fmt.Sprintf(`tell application "Mail"
	set msg to make new outgoing message with properties {subject:%s, content:%s, visible:false}
	tell msg
		make new to recipient with properties {address:%s}
	end tell
	send msg
	return "Mail sent to " & %s
end tell`, tools.Quote(subject), tools.Quote(body), tools.Quote(to), tools.Quote(to))
}

func unreadCountScript() string {
	return `tell application "Mail"
	return "Unread messages: " & (unread count of inbox as string)
end tell`
}
