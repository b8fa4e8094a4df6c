package ws

import (
	"context"
	"errors"
	"time"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// PublishingRunner wraps a tools.Runner and publishes one event per run
// to the hub. Sits at the top of the runner decorator stack so events
// reflect the fully recorded outcome.
type PublishingRunner struct {
	inner tools.Runner
	hub   *Hub
}

// NewPublishingRunner creates a PublishingRunner.
func NewPublishingRunner(inner tools.Runner, hub *Hub) *PublishingRunner {
	return &PublishingRunner{inner: inner, hub: hub}
}

func (p *PublishingRunner) Run(ctx context.Context, script string, timeout time.Duration) (*tools.Result, error) {
	start := time.Now()
	result, err := p.inner.Run(ctx, script, timeout)

	ev := Event{
		Tool:       tools.ToolFromContext(ctx),
		DurationMS: time.Since(start).Milliseconds(),
	}
	switch {
	case errors.Is(err, policy.ErrDenied):
		ev.Denied = true
		ev.ExitCode = 1
	case err == nil && result != nil:
		ev.Success = result.Success
		if code, ok := result.Metadata["exit_code"].(int); ok {
			ev.ExitCode = code
			ev.TimedOut = code == osa.ExitTimeout
		}
		if stderr, ok := result.Metadata["stderr"].(string); ok {
			ev.Truncated = stderr == osa.TruncatedMessage
		}
	default:
		ev.ExitCode = 1
	}
	p.hub.Publish(ev)

	return result, err
}

// compile-time interface check
var _ tools.Runner = (*PublishingRunner)(nil)
