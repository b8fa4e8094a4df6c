package finder

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

type fakeRunner struct{ script string }

func (f *fakeRunner) Run(_ context.Context, script string, _ time.Duration) (*tools.Result, error) {
	f.script = script
	return &tools.Result{Output: "ok", Success: true}, nil
}

func TestRevealToolSandbox(t *testing.T) {
	root := t.TempDir()
	fr := &fakeRunner{}
	tool := NewRevealTool(fr, policy.NewPathGuard([]string{root}), nil)

	// Outside the sandbox: rejected before any script is built.
	_, err := tool.Execute(context.Background(), map[string]any{"path": "/etc/passwd"})
	if err == nil {
		t.Fatal("path outside the sandbox was accepted")
	}
	if !errors.Is(err, policy.ErrDenied) {
		t.Errorf("error %v does not wrap policy.ErrDenied", err)
	}
	if fr.script != "" {
		t.Error("script was built for a denied path")
	}

	// Inside the sandbox.
	inside := filepath.Join(root, "docs")
	if _, err := tool.Execute(context.Background(), map[string]any{"path": inside}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fr.script, `POSIX file "`+inside+`"`) {
		t.Errorf("script does not reference the resolved path:\n%s", fr.script)
	}
}

func TestListFolderScript(t *testing.T) {
	script := listFolderScript("/Users/me/Documents")
	for _, want := range []string{
		`tell application "Finder"`,
		`POSIX file "/Users/me/Documents" as alias`,
		`Empty folder`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}
