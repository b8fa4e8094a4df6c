package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

type countingRunner struct {
	mu      sync.Mutex
	scripts []string
	result  *tools.Result
}

func (c *countingRunner) Run(_ context.Context, script string, _ time.Duration) (*tools.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = append(c.scripts, script)
	if c.result != nil {
		return c.result, nil
	}
	return &tools.Result{Output: "ok", Success: true}, nil
}

func (c *countingRunner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scripts)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := New(&config.SchedulerConfig{
		Jobs: []config.ScheduledJob{
			{Name: "broken", Schedule: "not a cron expr", Script: "beep"},
		},
	}, &countingRunner{}, nil, nil)

	if _, err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartAndStopEmpty(t *testing.T) {
	s := New(nil, &countingRunner{}, nil, nil)
	stop, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}

func TestFireRunsScript(t *testing.T) {
	runner := &countingRunner{}
	reg := prometheus.NewRegistry()
	s := New(nil, runner, NewMetrics(reg), nil)

	s.fire(context.Background(), config.ScheduledJob{
		Name:   "morning",
		Script: `display notification "standup"`,
	})

	if runner.count() != 1 {
		t.Fatalf("runner called %d times, want 1", runner.count())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			found[f.GetName()] = m.GetCounter().GetValue()
		}
	}
	if found["connectors_scheduler_jobs_fired_total"] != 1 {
		t.Errorf("jobs_fired = %v, want 1", found["connectors_scheduler_jobs_fired_total"])
	}
	if found["connectors_scheduler_jobs_succeeded_total"] != 1 {
		t.Errorf("jobs_succeeded = %v, want 1", found["connectors_scheduler_jobs_succeeded_total"])
	}
}

func TestFireCountsFailure(t *testing.T) {
	runner := &countingRunner{result: &tools.Result{Output: "syntax error in automation script", Success: false}}
	reg := prometheus.NewRegistry()
	s := New(nil, runner, NewMetrics(reg), nil)

	s.fire(context.Background(), config.ScheduledJob{Name: "bad", Script: "tell without end"})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "connectors_scheduler_jobs_failed_total" {
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Errorf("jobs_failed = %v, want 1", got)
			}
		}
	}
}

func TestScheduledJobFires(t *testing.T) {
	runner := &countingRunner{}
	s := New(&config.SchedulerConfig{
		Jobs: []config.ScheduledJob{
			{Name: "tick", Schedule: "@every 50ms", Script: "beep"},
		},
	}, runner, nil, nil)

	stop, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for runner.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runner.count() == 0 {
		t.Fatal("scheduled job never fired")
	}
}

func TestNextRunAfter(t *testing.T) {
	from := time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC) // a Monday
	next, err := NextRunAfter("0 9 * * MON-FRI", from)
	if err != nil {
		t.Fatalf("NextRunAfter: %v", err)
	}
	want := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	if _, err := NextRunAfter("bogus", from); err == nil {
		t.Error("expected error for invalid expression")
	}
}
