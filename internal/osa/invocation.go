package osa

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// invocation holds the per-call mutable state: the two output buffers
// and the one-way resolution latch. Nothing here is shared across
// invocations.
//
// os/exec copies the stdout and stderr pipes from separate goroutines,
// so buffer appends are mutex-protected. The latch is an atomic
// check-and-set: the first completion source to flip it wins the right
// to produce the Outcome and every later trigger is a no-op.
type invocation struct {
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
	limit  int

	overflowOnce sync.Once
	overflow     chan struct{}

	resolved atomic.Bool
	final    Outcome
}

func newInvocation(limit int) *invocation {
	return &invocation{
		limit:    limit,
		overflow: make(chan struct{}),
	}
}

// resolve attempts to produce the Outcome. Returns true if this caller
// won the latch; false means another source already resolved and the
// given outcome is discarded.
func (inv *invocation) resolve(out Outcome) bool {
	if !inv.resolved.CompareAndSwap(false, true) {
		return false
	}
	inv.final = out
	return true
}

// outcome returns the final Outcome. Only meaningful after resolve.
func (inv *invocation) outcome() Outcome {
	return inv.final
}

// overflowed is closed once accumulated stdout crosses the ceiling.
func (inv *invocation) overflowed() <-chan struct{} {
	return inv.overflow
}

// stdoutWriter returns the stdout sink. Every chunk is appended and
// then checked against the ceiling; the first breach signals overflow
// exactly once. Appends stop once the invocation is resolved so the
// frozen Outcome can never change underneath a caller.
func (inv *invocation) stdoutWriter() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		if inv.resolved.Load() {
			return len(p), nil
		}
		inv.mu.Lock()
		inv.stdout.Write(p)
		breached := inv.stdout.Len() > inv.limit
		inv.mu.Unlock()
		if breached {
			inv.overflowOnce.Do(func() { close(inv.overflow) })
		}
		return len(p), nil
	})
}

// stderrWriter returns the stderr sink. Diagnostic output is
// accumulated without a size check.
func (inv *invocation) stderrWriter() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		if inv.resolved.Load() {
			return len(p), nil
		}
		inv.mu.Lock()
		inv.stderr.Write(p)
		inv.mu.Unlock()
		return len(p), nil
	})
}

// stdoutSoFar snapshots accumulated stdout without trimming.
func (inv *invocation) stdoutSoFar() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.stdout.String()
}

// stdoutTruncated snapshots stdout sliced to exactly the ceiling.
func (inv *invocation) stdoutTruncated() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	s := inv.stdout.String()
	if len(s) > inv.limit {
		s = s[:inv.limit]
	}
	return s
}

// trimmed snapshots both buffers with surrounding whitespace removed.
// Used by the normal-exit path only.
func (inv *invocation) trimmed() (string, string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return strings.TrimSpace(inv.stdout.String()), strings.TrimSpace(inv.stderr.String())
}

// writerFunc adapts a function to io.Writer.
type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
