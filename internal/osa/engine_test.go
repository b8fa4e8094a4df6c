package osa

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// shEngine returns an engine that runs scripts through /bin/sh so the
// behavior under test does not depend on osascript being installed.
func shEngine(t *testing.T) *Engine {
	t.Helper()
	return New(Config{Interpreter: "/bin/sh", Args: []string{"-c"}}, nil)
}

func TestExecuteSuccess(t *testing.T) {
	e := shEngine(t)

	out := e.Execute(context.Background(), Request{
		Script:    `echo ok`,
		Timeout:   5 * time.Second,
		MaxOutput: 1000,
	})

	if out.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0 (stderr: %q)", out.ExitCode, out.Stderr)
	}
	if out.Stdout != "ok" {
		t.Errorf("Stdout = %q, want %q", out.Stdout, "ok")
	}
	if out.Stderr != "" {
		t.Errorf("Stderr = %q, want empty", out.Stderr)
	}
}

func TestExecuteExitCodePassthrough(t *testing.T) {
	e := shEngine(t)

	out := e.Execute(context.Background(), Request{Script: `exit 3`})
	if out.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", out.ExitCode)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := shEngine(t)

	start := time.Now()
	out := e.Execute(context.Background(), Request{
		Script:  `sleep 10`,
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if out.ExitCode != ExitTimeout {
		t.Errorf("ExitCode = %d, want %d", out.ExitCode, ExitTimeout)
	}
	if want := "timed out after 200ms"; out.Stderr != want {
		t.Errorf("Stderr = %q, want %q", out.Stderr, want)
	}
	// Resolution happens on the timer, not on process death.
	if elapsed > 2*time.Second {
		t.Errorf("resolved after %v, want ~200ms", elapsed)
	}
}

func TestExecuteOverflow(t *testing.T) {
	e := shEngine(t)

	// ~80 KB of output against a 1000-byte ceiling.
	script := `i=0; while [ $i -lt 2000 ]; do echo 0123456789012345678901234567890123456789; i=$((i+1)); done`
	out := e.Execute(context.Background(), Request{
		Script:    script,
		Timeout:   10 * time.Second,
		MaxOutput: 1000,
	})

	if out.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", out.ExitCode)
	}
	if len(out.Stdout) != 1000 {
		t.Errorf("len(Stdout) = %d, want exactly 1000", len(out.Stdout))
	}
	if out.Stderr != TruncatedMessage {
		t.Errorf("Stderr = %q, want %q", out.Stderr, TruncatedMessage)
	}
}

func TestExecuteOverflowBeatsFastExit(t *testing.T) {
	e := shEngine(t)

	// Breach the ceiling by one byte and exit immediately, so the exit
	// and the breach race to the completion select. The truncation must
	// win every time regardless of which channel fires first.
	script := `printf '` + strings.Repeat("a", 101) + `'`
	for i := 0; i < 50; i++ {
		out := e.Execute(context.Background(), Request{
			Script:    script,
			Timeout:   10 * time.Second,
			MaxOutput: 100,
		})
		if out.ExitCode != 1 {
			t.Fatalf("run %d: ExitCode = %d, want 1", i, out.ExitCode)
		}
		if len(out.Stdout) != 100 {
			t.Fatalf("run %d: len(Stdout) = %d, want exactly 100", i, len(out.Stdout))
		}
		if out.Stderr != TruncatedMessage {
			t.Fatalf("run %d: Stderr = %q, want %q", i, out.Stderr, TruncatedMessage)
		}
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	e := New(Config{Interpreter: "/nonexistent/interpreter"}, nil)

	out := e.Execute(context.Background(), Request{Script: `echo hi`})
	if out.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", out.ExitCode)
	}
	if out.Stderr == "" {
		t.Error("Stderr is empty, want spawn error text")
	}
	if out.Stdout != "" {
		t.Errorf("Stdout = %q, want empty", out.Stdout)
	}
}

// Trimming applies only to the normal-exit path: a timed-out invocation
// returns the buffer exactly as accumulated.
func TestTrimAsymmetry(t *testing.T) {
	e := shEngine(t)

	normal := e.Execute(context.Background(), Request{Script: `printf '  padded  \n'`})
	if normal.Stdout != "padded" {
		t.Errorf("normal-exit Stdout = %q, want %q", normal.Stdout, "padded")
	}

	timedOut := e.Execute(context.Background(), Request{
		Script:  `printf '  padded  \n'; sleep 10`,
		Timeout: 300 * time.Millisecond,
	})
	if timedOut.ExitCode != ExitTimeout {
		t.Fatalf("ExitCode = %d, want %d", timedOut.ExitCode, ExitTimeout)
	}
	if timedOut.Stdout != "  padded  \n" {
		t.Errorf("timeout Stdout = %q, want untrimmed %q", timedOut.Stdout, "  padded  \n")
	}
}

func TestStderrNotSizeChecked(t *testing.T) {
	e := shEngine(t)

	// Stderr far beyond the ceiling must not trigger truncation.
	script := `i=0; while [ $i -lt 100 ]; do echo 0123456789012345678901234567890123456789 1>&2; i=$((i+1)); done`
	out := e.Execute(context.Background(), Request{
		Script:    script,
		Timeout:   10 * time.Second,
		MaxOutput: 1000,
	})

	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", out.ExitCode)
	}
	if len(out.Stderr) < 1000 {
		t.Errorf("len(Stderr) = %d, want the full diagnostic stream", len(out.Stderr))
	}
}

func TestExecuteSignalTerminated(t *testing.T) {
	e := shEngine(t)

	out := e.Execute(context.Background(), Request{Script: `kill -TERM $$`})
	if out.ExitCode != ExitTerminated {
		t.Errorf("ExitCode = %d, want %d", out.ExitCode, ExitTerminated)
	}
}

func TestExecuteCeilingFloor(t *testing.T) {
	e := shEngine(t)

	// A near-zero ceiling is raised to the floor instead of truncating
	// every invocation.
	out := e.Execute(context.Background(), Request{
		Script:    `echo ok`,
		MaxOutput: 1,
	})
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0 (stderr: %q)", out.ExitCode, out.Stderr)
	}
	if out.Stdout != "ok" {
		t.Errorf("Stdout = %q, want %q", out.Stdout, "ok")
	}
}

func TestExecuteConcurrent(t *testing.T) {
	e := shEngine(t)

	const n = 8
	var wg sync.WaitGroup
	results := make([]Outcome, n)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Execute(context.Background(), Request{Script: `echo ok`})
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		if out.ExitCode != 0 || out.Stdout != "ok" {
			t.Errorf("invocation %d: got %+v", i, out)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	e := New(Config{}, nil)
	if e.interpreter != "osascript" {
		t.Errorf("interpreter = %q, want osascript", e.interpreter)
	}
	if len(e.args) != 1 || e.args[0] != "-e" {
		t.Errorf("args = %v, want [-e]", e.args)
	}
}

func TestExecuteContextCanceled(t *testing.T) {
	e := shEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	out := e.Execute(ctx, Request{Script: `sleep 10`, Timeout: 30 * time.Second})
	if out.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", out.ExitCode)
	}
	if !strings.Contains(out.Stderr, "context canceled") {
		t.Errorf("Stderr = %q, want context cancellation text", out.Stderr)
	}
}
