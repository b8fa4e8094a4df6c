// Package scheduler runs recurring automation scripts defined in config.
// Jobs go through the same runner pipeline as interactive invocations,
// so the denylist, classification, metrics, and the invocation audit
// trail all apply to scheduled scripts too.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// Scheduler fires config-defined scripts on cron schedules.
// It runs as a background goroutine in gateway mode.
type Scheduler struct {
	runner  tools.Runner
	jobs    []config.ScheduledJob
	metrics *Metrics
	logger  *slog.Logger
	cron    *cron.Cron
}

// New creates a Scheduler. Jobs are not validated until Start.
func New(cfg *config.SchedulerConfig, runner tools.Runner, metrics *Metrics, logger *slog.Logger) *Scheduler {
	var jobs []config.ScheduledJob
	if cfg != nil {
		jobs = cfg.Jobs
	}
	return &Scheduler{
		runner:  runner,
		jobs:    jobs,
		metrics: metrics,
		logger:  logger,
	}
}

// Start registers all jobs and begins the cron loop. Returns a stop
// function. An invalid schedule on any job fails the whole Start so
// misconfigurations surface at boot, not at fire time.
func (s *Scheduler) Start(ctx context.Context) (func(), error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	for i := range s.jobs {
		job := s.jobs[i]
		if _, err := c.AddFunc(job.Schedule, func() { s.fire(ctx, job) }); err != nil {
			return nil, fmt.Errorf("scheduling job %q: %w", job.Name, err)
		}
	}

	c.Start()
	s.cron = c

	if s.logger != nil {
		s.logger.InfoContext(ctx, "scheduler started", slog.Int("jobs", len(s.jobs)))
	}

	return func() {
		stopCtx := c.Stop()
		// Wait for in-flight jobs before reporting stopped.
		<-stopCtx.Done()
		if s.logger != nil {
			s.logger.Info("scheduler stopped")
		}
	}, nil
}

// fire runs a single scheduled script.
func (s *Scheduler) fire(ctx context.Context, job config.ScheduledJob) {
	start := time.Now()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "firing scheduled script", slog.String("job", job.Name))
	}
	if s.metrics != nil {
		s.metrics.JobsFired.Inc()
	}

	var timeout time.Duration
	if job.TimeoutMS > 0 {
		timeout = time.Duration(job.TimeoutMS) * time.Millisecond
	}

	result, err := s.runner.Run(ctx, job.Script, timeout)

	switch {
	case err != nil:
		if s.metrics != nil {
			s.metrics.JobsFailed.Inc()
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "scheduled script rejected",
				slog.String("job", job.Name),
				slog.String("error", err.Error()),
			)
		}
	case result != nil && !result.Success:
		if s.metrics != nil {
			s.metrics.JobsFailed.Inc()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "scheduled script failed",
				slog.String("job", job.Name),
				slog.String("cause", result.Output),
			)
		}
	default:
		if s.metrics != nil {
			s.metrics.JobsSucceeded.Inc()
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "scheduled script succeeded",
				slog.String("job", job.Name),
				slog.Duration("duration", time.Since(start)),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.JobDuration.Observe(time.Since(start).Seconds())
	}
}

// NextRunAfter computes the next fire time of a cron expression after
// the given reference time. Exported for the HTTP API's job listing.
func NextRunAfter(expr string, from time.Time) (time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched.Next(from), nil
}
