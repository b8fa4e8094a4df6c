package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// --- InstrumentedRunner ---

// InstrumentedRunner wraps a tools.Runner with metrics and tracing.
type InstrumentedRunner struct {
	inner   tools.Runner
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedRunner wraps a script runner with observability.
func NewInstrumentedRunner(inner tools.Runner, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedRunner {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedRunner{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (r *InstrumentedRunner) Run(ctx context.Context, script string, timeout time.Duration) (*tools.Result, error) {
	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "script.run",
			trace.WithAttributes(
				attribute.Int("script.bytes", len(script)),
			))
		defer span.End()
	}

	if r.metrics != nil {
		r.metrics.ActiveScripts.Inc()
		defer r.metrics.ActiveScripts.Dec()
	}

	start := time.Now()
	result, err := r.inner.Run(ctx, script, timeout)
	duration := time.Since(start).Seconds()

	status := "success"
	switch {
	case err != nil:
		status = "error"
		if errors.Is(err, policy.ErrDenied) {
			status = "denied"
		}
		if r.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	case result != nil && !result.Success:
		status = "failed"
	}

	if r.metrics != nil {
		r.metrics.ScriptExecutionsTotal.WithLabelValues(status).Inc()
		r.metrics.ScriptExecutionDuration.WithLabelValues(status).Observe(duration)

		if errors.Is(err, policy.ErrDenied) {
			r.metrics.PolicyDenialsTotal.WithLabelValues("script").Inc()
		}
		if result != nil {
			if code, ok := result.Metadata["exit_code"].(int); ok && code == osa.ExitTimeout {
				r.metrics.ScriptTimeoutsTotal.Inc()
			}
			if stderr, ok := result.Metadata["stderr"].(string); ok && stderr == osa.TruncatedMessage {
				r.metrics.ScriptTruncationsTotal.Inc()
			}
		}
	}

	return result, err
}

// --- InstrumentedTool ---

// InstrumentedTool wraps a tools.Tool with metrics and tracing.
type InstrumentedTool struct {
	inner   tools.Tool
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedTool wraps a tool with observability.
func NewInstrumentedTool(inner tools.Tool, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedTool {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedTool{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (t *InstrumentedTool) Name() string                { return t.inner.Name() }
func (t *InstrumentedTool) Description() string         { return t.inner.Description() }
func (t *InstrumentedTool) InputSchema() map[string]any { return t.inner.InputSchema() }

func (t *InstrumentedTool) Validate(params map[string]any) error {
	return t.inner.Validate(params)
}

func (t *InstrumentedTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	name := t.inner.Name()

	if t.tracer != nil {
		var span trace.Span
		ctx, span = t.tracer.Start(ctx, "tool.execute",
			trace.WithAttributes(
				attribute.String("tool.name", name),
			))
		defer span.End()
	}

	start := time.Now()
	result, err := t.inner.Execute(ctx, params)
	duration := time.Since(start).Seconds()

	status := "success"
	switch {
	case err != nil:
		status = "error"
		if t.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	case result != nil && !result.Success:
		status = "failed"
	}

	if t.metrics != nil {
		t.metrics.ToolInvocationsTotal.WithLabelValues(name, status).Inc()
		t.metrics.ToolInvocationDuration.WithLabelValues(name).Observe(duration)
	}

	return result, err
}

// --- Compile-time interface checks ---

var (
	_ tools.Runner = (*InstrumentedRunner)(nil)
	_ tools.Tool   = (*InstrumentedTool)(nil)
)

// statusCode returns the HTTP status code as a string for metric labels.
func statusCode(code int) string {
	return strconv.Itoa(code)
}
