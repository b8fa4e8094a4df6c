// Package osa implements the script execution engine behind every
// automation connector. It spawns the macOS automation interpreter
// (osascript by default), enforces a deadline and an output ceiling,
// and always produces exactly one Outcome per invocation: spawn
// failures, timeouts, and oversized output are results, not errors.
//
// The engine is policy-free: denylist scanning and path sandboxing
// happen in the callers before a script ever reaches Execute.
package osa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

const (
	// DefaultTimeout bounds an invocation unless the caller overrides it.
	DefaultTimeout = 45 * time.Second

	// DefaultMaxOutput caps accumulated stdout unless the caller overrides it.
	DefaultMaxOutput = 512_000

	// minMaxOutput is the floor for caller-supplied ceilings. An
	// effectively-zero ceiling would truncate every invocation.
	minMaxOutput = 64

	// ExitTimeout is the synthesized exit code for a deadline expiry.
	ExitTimeout = 124

	// ExitTerminated is the exit code for a process killed by SIGTERM.
	ExitTerminated = 143
)

// TruncatedMessage is the diagnostic set when the output ceiling fires.
const TruncatedMessage = "output truncated"

// Request describes one script invocation. Immutable once submitted.
type Request struct {
	// Script is the automation script text, passed to the interpreter
	// as its sole trailing argument. Opaque to the engine.
	Script string

	// Timeout bounds the invocation. 0 means DefaultTimeout.
	Timeout time.Duration

	// MaxOutput caps accumulated stdout in bytes. 0 means
	// DefaultMaxOutput. Values below a small floor are raised to it.
	MaxOutput int
}

// Outcome is the final three-field result of an invocation.
// Exactly one Outcome is produced per Request; once produced it is final.
type Outcome struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Config configures the engine.
type Config struct {
	// Interpreter is the binary to spawn. Default: "osascript".
	Interpreter string

	// Args are fixed arguments placed before the script.
	// Default for osascript: ["-e"] so the script is run inline.
	Args []string
}

// Engine spawns interpreter processes and arbitrates their completion.
// Safe for concurrent use; invocations share nothing.
type Engine struct {
	interpreter string
	args        []string
	logger      *slog.Logger
}

// New creates an Engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = "osascript"
	}
	args := cfg.Args
	if args == nil && interpreter == "osascript" {
		args = []string{"-e"}
	}
	return &Engine{
		interpreter: interpreter,
		args:        args,
		logger:      logger,
	}
}

// Execute runs one script and returns its Outcome. It never returns an
// error: spawn failures, timeouts, overflow, and nonzero exits are all
// encoded as an exit code plus diagnostic text.
//
// The process is guaranteed to have received a termination signal by
// the time Execute returns, if it has not already exited. The engine
// does not wait for confirmed death after signaling.
func (e *Engine) Execute(ctx context.Context, req Request) Outcome {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := req.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	if maxOutput < minMaxOutput {
		maxOutput = minMaxOutput
	}

	inv := newInvocation(maxOutput)

	args := make([]string, 0, len(e.args)+1)
	args = append(args, e.args...)
	args = append(args, req.Script)

	cmd := exec.Command(e.interpreter, args...)
	cmd.Stdout = inv.stdoutWriter()
	cmd.Stderr = inv.stderrWriter()
	// Own process group so the termination signal reaches children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()

	if err := cmd.Start(); err != nil {
		inv.resolve(Outcome{
			Stdout:   inv.stdoutSoFar(),
			Stderr:   err.Error(),
			ExitCode: 1,
		})
		e.log(ctx, req, inv.outcome(), time.Since(start))
		return inv.outcome()
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Single select over the racing completion sources. The resolution
	// latch inside invocation makes every losing path a no-op, so this
	// stays correct even if triggers fire at the same instant.
	select {
	case err := <-waitCh:
		// A ceiling breach followed by an immediate exit can make both
		// channels ready before this select runs. The breach outcome
		// takes precedence so truncated stdout never leaks out whole.
		select {
		case <-inv.overflowed():
			inv.resolve(Outcome{
				Stdout:   inv.stdoutTruncated(),
				Stderr:   TruncatedMessage,
				ExitCode: 1,
			})
		default:
			inv.resolve(exitOutcome(inv, err))
		}
	case <-timer.C:
		e.terminate(cmd)
		inv.resolve(Outcome{
			Stdout:   inv.stdoutSoFar(),
			Stderr:   fmt.Sprintf("timed out after %dms", timeout.Milliseconds()),
			ExitCode: ExitTimeout,
		})
	case <-inv.overflowed():
		e.terminate(cmd)
		inv.resolve(Outcome{
			Stdout:   inv.stdoutTruncated(),
			Stderr:   TruncatedMessage,
			ExitCode: 1,
		})
	case <-ctx.Done():
		e.terminate(cmd)
		inv.resolve(Outcome{
			Stdout:   inv.stdoutSoFar(),
			Stderr:   ctx.Err().Error(),
			ExitCode: 1,
		})
	}

	e.log(ctx, req, inv.outcome(), time.Since(start))
	return inv.outcome()
}

// exitOutcome maps a cmd.Wait result to an Outcome. Surrounding
// whitespace is trimmed on this path only; timeout, overflow, and
// error outcomes return the buffers as-is.
func exitOutcome(inv *invocation, err error) Outcome {
	stdout, stderr := inv.trimmed()

	if err == nil {
		return Outcome{Stdout: stdout, Stderr: stderr, ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			// Killed by a signal: conventional 128+N, so SIGTERM is 143.
			code = 128 + int(status.Signal())
		}
		if code < 0 {
			code = 1
		}
		return Outcome{Stdout: stdout, Stderr: stderr, ExitCode: code}
	}

	// Wait failed for a non-exit reason (pipe error, reaping failure).
	return Outcome{
		Stdout:   inv.stdoutSoFar(),
		Stderr:   err.Error(),
		ExitCode: 1,
	}
}

// terminate signals the whole process group. Resolution does not wait
// for the process to die; the Wait goroutine reaps it in the background.
func (e *Engine) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative PID = signal the entire process group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		// Fall back to the single process (group may already be gone).
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

func (e *Engine) log(ctx context.Context, req Request, out Outcome, elapsed time.Duration) {
	if e.logger == nil {
		return
	}
	e.logger.InfoContext(ctx, "script invocation resolved",
		slog.Int("exit_code", out.ExitCode),
		slog.Int("script_bytes", len(req.Script)),
		slog.Int("stdout_bytes", len(out.Stdout)),
		slog.Int("stderr_bytes", len(out.Stderr)),
		slog.Duration("duration", elapsed),
	)
}
