package reminders

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

func TestCreateReminderScript(t *testing.T) {
	script := createReminderScript("Buy milk", "September 1, 2026 9:00 AM", "Groceries")

	for _, want := range []string{
		`tell application "Reminders"`,
		`tell list "Groceries"`,
		`name:"Buy milk"`,
		`due date:date "September 1, 2026 9:00 AM"`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestCreateReminderScriptDefaults(t *testing.T) {
	script := createReminderScript("Call back", "", "")
	if !strings.Contains(script, "tell default list") {
		t.Error("no list given should target the default list")
	}
	if strings.Contains(script, "due date") {
		t.Error("no due date given should omit the property")
	}
}

func TestListRemindersScript(t *testing.T) {
	if s := listRemindersScript(""); !strings.Contains(s, "every reminder whose completed is false") {
		t.Errorf("unscoped list script wrong:\n%s", s)
	}
	if s := listRemindersScript("Work"); !strings.Contains(s, `every reminder of list "Work"`) {
		t.Errorf("scoped list script wrong:\n%s", s)
	}
}

func TestCreateToolExecute(t *testing.T) {
	fr := &fakeRunner{}
	tool := NewCreateTool(fr, nil)

	if err := tool.Validate(map[string]any{}); err == nil {
		t.Error("missing name should fail validation")
	}

	res, err := tool.Execute(context.Background(), map[string]any{"name": "Ship it"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || !strings.Contains(fr.script, `name:"Ship it"`) {
		t.Errorf("unexpected execution: %+v script %s", res, fr.script)
	}
}
