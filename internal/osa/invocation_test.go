package osa

import (
	"fmt"
	"sync"
	"testing"
)

// The resolution latch must admit exactly one winner even when several
// completion sources fire at the same instant.
func TestResolveExactlyOnce(t *testing.T) {
	inv := newInvocation(DefaultMaxOutput)

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if inv.resolve(Outcome{Stdout: fmt.Sprintf("winner-%d", i), ExitCode: i}) {
				mu.Lock()
				wins = append(wins, i)
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(wins) != 1 {
		t.Fatalf("%d resolutions won, want exactly 1", len(wins))
	}
	if want := fmt.Sprintf("winner-%d", wins[0]); inv.outcome().Stdout != want {
		t.Errorf("outcome = %q, want the winner's outcome %q", inv.outcome().Stdout, want)
	}
}

func TestLosingResolveIsNoOp(t *testing.T) {
	inv := newInvocation(DefaultMaxOutput)

	if !inv.resolve(Outcome{Stdout: "first"}) {
		t.Fatal("first resolve lost the latch")
	}
	if inv.resolve(Outcome{Stdout: "second", ExitCode: 99}) {
		t.Error("second resolve won the latch")
	}
	if inv.outcome().Stdout != "first" || inv.outcome().ExitCode != 0 {
		t.Errorf("outcome = %+v, want the first resolution", inv.outcome())
	}
}

func TestOverflowSignaledOnce(t *testing.T) {
	inv := newInvocation(10)
	w := inv.stdoutWriter()

	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-inv.overflowed():
		t.Fatal("overflow signaled at exactly the ceiling")
	default:
	}

	// Crossing the ceiling signals; writing again must not panic on a
	// double close.
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("y")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-inv.overflowed():
	default:
		t.Fatal("overflow not signaled after crossing the ceiling")
	}

	if got := inv.stdoutTruncated(); got != "0123456789" {
		t.Errorf("truncated stdout = %q, want sliced to the ceiling", got)
	}
}

func TestBuffersFrozenAfterResolution(t *testing.T) {
	inv := newInvocation(DefaultMaxOutput)
	w := inv.stdoutWriter()

	if _, err := w.Write([]byte("before")); err != nil {
		t.Fatal(err)
	}
	inv.resolve(Outcome{Stdout: inv.stdoutSoFar()})

	if _, err := w.Write([]byte("after")); err != nil {
		t.Fatal(err)
	}
	if got := inv.stdoutSoFar(); got != "before" {
		t.Errorf("stdout = %q, want appends ignored after resolution", got)
	}
}
