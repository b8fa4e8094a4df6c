package tools

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
)

// Runner executes connector-built scripts. Domain tools depend on this
// interface so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, script string, timeout time.Duration) (*Result, error)
}

// ScriptRunner is the production Runner: denylist scan, then the
// execution engine, then error classification on nonzero exits.
type ScriptRunner struct {
	engine         *osa.Engine
	guard          *policy.Guard
	logger         *slog.Logger
	maxOutput      int
	defaultTimeout time.Duration
}

// NewScriptRunner creates a ScriptRunner.
func NewScriptRunner(engine *osa.Engine, guard *policy.Guard, logger *slog.Logger) *ScriptRunner {
	return &ScriptRunner{engine: engine, guard: guard, logger: logger}
}

// WithMaxOutput overrides the engine's default stdout ceiling for all
// scripts this runner executes. Zero keeps the engine default.
func (r *ScriptRunner) WithMaxOutput(n int) *ScriptRunner {
	r.maxOutput = n
	return r
}

// WithDefaultTimeout sets the timeout applied when a caller passes
// zero. Zero keeps the engine default.
func (r *ScriptRunner) WithDefaultTimeout(d time.Duration) *ScriptRunner {
	r.defaultTimeout = d
	return r
}

// Run executes one script. Policy denials are returned as errors and
// the script never reaches the engine. Engine outcomes always produce
// a Result: nonzero exits carry the classified cause as Output with
// the raw diagnostic in Metadata.
func (r *ScriptRunner) Run(ctx context.Context, script string, timeout time.Duration) (*Result, error) {
	if r.guard != nil {
		if err := r.guard.CheckScript(script); err != nil {
			return nil, err
		}
	}

	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	out := r.engine.Execute(ctx, osa.Request{Script: script, Timeout: timeout, MaxOutput: r.maxOutput})

	if out.ExitCode != 0 {
		msg := osa.Classify(out.Stderr, out.ExitCode)
		if msg == "" {
			msg = "automation script failed with exit code " + strconv.Itoa(out.ExitCode)
		}
		return &Result{
			Output:  msg,
			Success: false,
			Metadata: map[string]any{
				"exit_code": out.ExitCode,
				"stderr":    out.Stderr,
			},
		}, nil
	}

	return &Result{
		Output:   out.Stdout,
		Success:  true,
		Metadata: map[string]any{"exit_code": 0},
	}, nil
}
