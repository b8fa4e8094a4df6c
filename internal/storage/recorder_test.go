package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

type memStore struct {
	records []Record
}

func (m *memStore) Append(_ context.Context, rec Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]Record, error) {
	return m.records, nil
}

type stubRunner struct {
	result *tools.Result
	err    error
}

func (s *stubRunner) Run(_ context.Context, _ string, _ time.Duration) (*tools.Result, error) {
	return s.result, s.err
}

func TestRecordingRunner_Success(t *testing.T) {
	store := &memStore{}
	inner := &stubRunner{
		result: &tools.Result{Output: "done", Success: true, Metadata: map[string]any{"exit_code": 0}},
	}
	r := NewRecordingRunner(inner, store, nil)

	ctx := tools.ContextWithTool(context.Background(), "create_event")
	script := `tell application "Calendar" to activate`
	result, err := r.Run(ctx, script, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Output != "done" {
		t.Errorf("output = %q", result.Output)
	}

	if len(store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(store.records))
	}
	rec := store.records[0]
	if rec.Tool != "create_event" {
		t.Errorf("Tool = %q", rec.Tool)
	}
	sum := sha256.Sum256([]byte(script))
	if rec.ScriptSHA != hex.EncodeToString(sum[:]) {
		t.Errorf("ScriptSHA = %q", rec.ScriptSHA)
	}
	if rec.StdoutBytes != len("done") {
		t.Errorf("StdoutBytes = %d", rec.StdoutBytes)
	}
	if rec.Denied || rec.TimedOut || rec.Truncated {
		t.Errorf("unexpected flags: %+v", rec)
	}
}

func TestRecordingRunner_PolicyDenied(t *testing.T) {
	store := &memStore{}
	r := NewRecordingRunner(&stubRunner{err: policy.ErrDenied}, store, nil)

	if _, err := r.Run(context.Background(), "do shell script", 0); err == nil {
		t.Fatal("expected error")
	}
	if len(store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(store.records))
	}
	if !store.records[0].Denied {
		t.Error("Denied flag not set")
	}
	if store.records[0].Tool != "" {
		t.Errorf("Tool = %q, want empty for raw run", store.records[0].Tool)
	}
}

func TestRecordingRunner_TimeoutAndTruncationFlags(t *testing.T) {
	store := &memStore{}
	inner := &stubRunner{
		result: &tools.Result{
			Output:   "timed out",
			Success:  false,
			Metadata: map[string]any{"exit_code": osa.ExitTimeout, "stderr": "timed out after 100ms"},
		},
	}
	r := NewRecordingRunner(inner, store, nil)
	if _, err := r.Run(context.Background(), "delay 10", 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !store.records[0].TimedOut {
		t.Error("TimedOut flag not set")
	}

	inner.result = &tools.Result{
		Output:   "partial",
		Success:  false,
		Metadata: map[string]any{"exit_code": 1, "stderr": osa.TruncatedMessage},
	}
	if _, err := r.Run(context.Background(), "repeat", 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !store.records[1].Truncated {
		t.Error("Truncated flag not set")
	}
}

func TestRecordingRunner_RecordsOnCanceledContext(t *testing.T) {
	store := &memStore{}
	inner := &stubRunner{
		result: &tools.Result{Output: "context canceled", Success: false, Metadata: map[string]any{"exit_code": 1}},
	}
	r := NewRecordingRunner(inner, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, "delay 10", 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatal("record not appended for canceled context")
	}
}
