package messages

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

func TestSendMessageScript(t *testing.T) {
	script := sendMessageScript("+15551234567", `Hi "there"`)
	for _, want := range []string{
		`tell application "Messages"`,
		`participant "+15551234567"`,
		`send "Hi \"there\""`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestSendToolExecute(t *testing.T) {
	fr := &fakeRunner{}
	tool := NewSendTool(fr, nil)

	if err := tool.Validate(map[string]any{"recipient": "x"}); err == nil {
		t.Error("missing text should fail validation")
	}

	res, err := tool.Execute(context.Background(), map[string]any{"recipient": "x", "text": "y"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || !strings.Contains(fr.script, `participant "x"`) {
		t.Errorf("unexpected execution: %+v script %s", res, fr.script)
	}
}
