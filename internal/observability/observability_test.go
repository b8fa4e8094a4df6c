package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// --- No-op Path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
	if obs.Health == nil {
		t.Error("health checker should always be created")
	}
}

func TestObservability_ShutdownNil(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
}

func TestTracerOrNil_Nil(t *testing.T) {
	var obs *Observability
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
	if obs.MetricsOrNil() != nil {
		t.Error("expected nil metrics from nil Observability")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m == nil {
		t.Fatal("expected non-nil MetricsCollector")
	}
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	// Initialize vec metrics so they appear in Gather (a CounterVec only
	// appears after first use).
	m.ScriptExecutionsTotal.WithLabelValues("success").Inc()
	m.ToolInvocationsTotal.WithLabelValues("create_event", "success").Inc()
	m.PolicyDenialsTotal.WithLabelValues("script").Inc()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"connectors_script_executions_total",
		"connectors_script_timeouts_total",
		"connectors_script_truncations_total",
		"connectors_tool_invocations_total",
		"connectors_policy_denials_total",
		"connectors_http_requests_total",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_RecordAndGather(t *testing.T) {
	m := NewMetricsCollector()

	m.ToolInvocationsTotal.WithLabelValues("send_mail", "success").Inc()
	m.ToolInvocationsTotal.WithLabelValues("send_mail", "success").Inc()
	m.ToolInvocationsTotal.WithLabelValues("send_mail", "failed").Inc()

	if got := counterValue(t, m.Registry, "connectors_tool_invocations_total", prometheus.Labels{"tool": "send_mail", "status": "success"}); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := counterValue(t, m.Registry, "connectors_tool_invocations_total", prometheus.Labels{"tool": "send_mail", "status": "failed"}); got != 1 {
		t.Errorf("failed count = %v, want 1", got)
	}
}

// --- HealthChecker ---

func TestHealthChecker_NoChecks(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestHealthChecker_AllPass(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("db", func(ctx context.Context) error { return nil })
	h.AddCheck("interpreter", func(ctx context.Context) error { return nil })

	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
	if status.Checks["db"].Status != "ok" {
		t.Errorf("db check = %q, want ok", status.Checks["db"].Status)
	}
}

func TestHealthChecker_OneFails(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("db", func(ctx context.Context) error { return errors.New("connection refused") })
	h.AddCheck("interpreter", func(ctx context.Context) error { return nil })

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["db"].Status != "fail" {
		t.Errorf("db check = %q, want fail", status.Checks["db"].Status)
	}
	if status.Checks["interpreter"].Status != "ok" {
		t.Errorf("interpreter check = %q, want ok", status.Checks["interpreter"].Status)
	}
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.CheckHealth()
	if status.Status != "ok" {
		t.Errorf("liveness status = %q, want ok", status.Status)
	}
}

// --- InstrumentedRunner (wrapper) ---

type mockRunner struct {
	result *tools.Result
	err    error
	called int
}

func (m *mockRunner) Run(ctx context.Context, script string, timeout time.Duration) (*tools.Result, error) {
	m.called++
	return m.result, m.err
}

func TestInstrumentedRunner_Success(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockRunner{
		result: &tools.Result{Output: "ok", Success: true, Metadata: map[string]any{"exit_code": 0}},
	}

	r := NewInstrumentedRunner(inner, metrics, nil)
	result, err := r.Run(context.Background(), `return "ok"`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "ok" {
		t.Errorf("output = %q, want ok", result.Output)
	}
	if inner.called != 1 {
		t.Errorf("inner called %d times, want 1", inner.called)
	}

	val := counterValue(t, metrics.Registry, "connectors_script_executions_total", prometheus.Labels{"status": "success"})
	if val != 1 {
		t.Errorf("executions_total = %v, want 1", val)
	}
}

func TestInstrumentedRunner_PolicyDenied(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockRunner{err: policy.ErrDenied}

	r := NewInstrumentedRunner(inner, metrics, nil)
	if _, err := r.Run(context.Background(), "do shell script", 0); err == nil {
		t.Fatal("expected error")
	}

	if val := counterValue(t, metrics.Registry, "connectors_script_executions_total", prometheus.Labels{"status": "denied"}); val != 1 {
		t.Errorf("denied executions = %v, want 1", val)
	}
	if val := counterValue(t, metrics.Registry, "connectors_policy_denials_total", prometheus.Labels{"guard": "script"}); val != 1 {
		t.Errorf("policy denials = %v, want 1", val)
	}
}

func TestInstrumentedRunner_TimeoutCounted(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockRunner{
		result: &tools.Result{
			Output:   "timed out",
			Success:  false,
			Metadata: map[string]any{"exit_code": osa.ExitTimeout, "stderr": "timed out after 100ms"},
		},
	}

	r := NewInstrumentedRunner(inner, metrics, nil)
	if _, err := r.Run(context.Background(), "delay 10", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if val := singleCounterValue(t, metrics.Registry, "connectors_script_timeouts_total"); val != 1 {
		t.Errorf("timeouts = %v, want 1", val)
	}
	if val := counterValue(t, metrics.Registry, "connectors_script_executions_total", prometheus.Labels{"status": "failed"}); val != 1 {
		t.Errorf("failed executions = %v, want 1", val)
	}
}

func TestInstrumentedRunner_TruncationCounted(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockRunner{
		result: &tools.Result{
			Output:   "partial",
			Success:  false,
			Metadata: map[string]any{"exit_code": 1, "stderr": osa.TruncatedMessage},
		},
	}

	r := NewInstrumentedRunner(inner, metrics, nil)
	if _, err := r.Run(context.Background(), "repeat", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if val := singleCounterValue(t, metrics.Registry, "connectors_script_truncations_total"); val != 1 {
		t.Errorf("truncations = %v, want 1", val)
	}
}

func TestInstrumentedRunner_NilMetrics(t *testing.T) {
	inner := &mockRunner{result: &tools.Result{Output: "ok", Success: true}}

	// nil metrics should not panic.
	r := NewInstrumentedRunner(inner, nil, nil)
	result, err := r.Run(context.Background(), `return "ok"`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "ok" {
		t.Errorf("output = %q, want ok", result.Output)
	}
}

// --- InstrumentedTool (wrapper) ---

type mockTool struct {
	name   string
	result *tools.Result
	err    error
}

func (m *mockTool) Name() string                           { return m.name }
func (m *mockTool) Description() string                    { return "mock" }
func (m *mockTool) InputSchema() map[string]any            { return map[string]any{"type": "object"} }
func (m *mockTool) Validate(params map[string]any) error   { return nil }
func (m *mockTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	return m.result, m.err
}

func TestInstrumentedTool_Success(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockTool{name: "create_event", result: &tools.Result{Output: "created", Success: true}}

	it := NewInstrumentedTool(inner, metrics, nil)
	if it.Name() != "create_event" {
		t.Errorf("Name = %q", it.Name())
	}

	result, err := it.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "created" {
		t.Errorf("output = %q", result.Output)
	}

	val := counterValue(t, metrics.Registry, "connectors_tool_invocations_total", prometheus.Labels{"tool": "create_event", "status": "success"})
	if val != 1 {
		t.Errorf("tool invocations = %v, want 1", val)
	}
}

func TestInstrumentedTool_FailedResult(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockTool{name: "send_mail", result: &tools.Result{Output: "syntax error in automation script", Success: false}}

	it := NewInstrumentedTool(inner, metrics, nil)
	if _, err := it.Execute(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	val := counterValue(t, metrics.Registry, "connectors_tool_invocations_total", prometheus.Labels{"tool": "send_mail", "status": "failed"})
	if val != 1 {
		t.Errorf("failed invocations = %v, want 1", val)
	}
}

// --- HTTP Middleware ---

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetricsCollector()

	handler := HTTPMetricsMiddleware(metrics, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	val := counterValue(t, metrics.Registry, "connectors_http_requests_total", prometheus.Labels{"method": "GET", "path": "/test", "status_code": "200"})
	if val != 1 {
		t.Errorf("http requests = %v, want 1", val)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	// Should not panic with nil metrics.
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// --- Helpers ---

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func singleCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	return counterValue(t, reg, name, nil)
}
