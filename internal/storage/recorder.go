package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// RecordingRunner wraps a tools.Runner and appends one Record per run.
// Recording failures are logged, never surfaced to the caller.
type RecordingRunner struct {
	inner  tools.Runner
	store  InvocationStore
	logger *slog.Logger
}

// NewRecordingRunner creates a RecordingRunner.
func NewRecordingRunner(inner tools.Runner, store InvocationStore, logger *slog.Logger) *RecordingRunner {
	return &RecordingRunner{inner: inner, store: store, logger: logger}
}

func (r *RecordingRunner) Run(ctx context.Context, script string, timeout time.Duration) (*tools.Result, error) {
	start := time.Now()
	result, err := r.inner.Run(ctx, script, timeout)

	sum := sha256.Sum256([]byte(script))
	rec := Record{
		Tool:       tools.ToolFromContext(ctx),
		ScriptSHA:  hex.EncodeToString(sum[:]),
		DurationMS: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	switch {
	case errors.Is(err, policy.ErrDenied):
		rec.Denied = true
	case err == nil && result != nil:
		rec.StdoutBytes = len(result.Output)
		if code, ok := result.Metadata["exit_code"].(int); ok {
			rec.ExitCode = code
			rec.TimedOut = code == osa.ExitTimeout
		}
		if stderr, ok := result.Metadata["stderr"].(string); ok {
			rec.StderrBytes = len(stderr)
			rec.Truncated = stderr == osa.TruncatedMessage
		}
	}

	// The record must land even when the caller's context is already
	// canceled (a canceled run is still an invocation).
	if appendErr := r.store.Append(context.WithoutCancel(ctx), rec); appendErr != nil && r.logger != nil {
		r.logger.Error("appending invocation record",
			slog.String("tool", rec.Tool),
			slog.String("error", appendErr.Error()),
		)
	}

	return result, err
}

// compile-time interface check
var _ tools.Runner = (*RecordingRunner)(nil)
