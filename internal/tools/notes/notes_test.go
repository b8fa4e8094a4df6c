package notes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

type fakeRunner struct{ script string }

func (f *fakeRunner) Run(_ context.Context, script string, _ time.Duration) (*tools.Result, error) {
	f.script = script
	return &tools.Result{Output: "ok", Success: true}, nil
}

func TestCreateNoteScript(t *testing.T) {
	script := createNoteScript(`Meeting "notes"`, "line one\nline two")
	for _, want := range []string{
		`tell application "Notes"`,
		`name:"Meeting \"notes\""`,
		`body:"line one\nline two"`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestSearchNotesScript(t *testing.T) {
	script := searchNotesScript("groceries")
	if !strings.Contains(script, `whose name contains "groceries"`) {
		t.Errorf("script missing the query filter:\n%s", script)
	}
}

func TestSearchToolExecute(t *testing.T) {
	fr := &fakeRunner{}
	tool := NewSearchTool(fr)

	if err := tool.Validate(map[string]any{}); err == nil {
		t.Error("missing query should fail validation")
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"query": "q"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fr.script, `contains "q"`) {
		t.Errorf("runner got wrong script:\n%s", fr.script)
	}
}
