// Package httpapi implements the HTTP API gateway for the connector
// server.
//
// Security:
//   - API key authentication on every /v1 request (constant-time comparison)
//   - Per-client rate limiting via token bucket
//   - Script denylist applies to every run, same as the MCP surface
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/observability"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/ratelimit"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/storage"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
	"github.com/jkaninda/okapi"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr string
	EnableDocs bool
	APIKeys    map[string]string // API key to client ID mapping.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config   Config
	runner   tools.Runner
	registry *tools.Registry
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	server   *http.Server

	invocations storage.InvocationStore // nil = /v1/invocations disabled.
	jobs        []config.ScheduledJob   // nil = /v1/jobs disabled.

	// Extra handlers mounted on the HTTP mux (e.g., the WebSocket
	// event feed).
	extraRoutes []extraRoute

	okapi *okapi.Okapi
	group *okapi.Group
}

// extraRoute stores an additional handler to be mounted on the HTTP mux.
type extraRoute struct {
	pattern string
	handler http.Handler
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, runner tools.Runner, registry *tools.Registry, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:   cfg,
		runner:   runner,
		registry: registry,
		limiter:  rl,
		logger:   logger,
		okapi:    okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithInvocations attaches the invocation record store, enabling
// GET /v1/invocations.
func (g *Gateway) WithInvocations(store storage.InvocationStore) *Gateway {
	g.invocations = store
	return g
}

// WithScheduledJobs attaches the config-defined job list, enabling
// GET /v1/jobs.
func (g *Gateway) WithScheduledJobs(jobs []config.ScheduledJob) *Gateway {
	g.jobs = jobs
	return g
}

// WithHandler mounts an additional handler on the HTTP mux at the given
// pattern. Used for the WebSocket event feed alongside the API routes.
func (g *Gateway) WithHandler(pattern string, handler http.Handler) *Gateway {
	g.extraRoutes = append(g.extraRoutes, extraRoute{pattern: pattern, handler: handler})
	return g
}

func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "MCP Connectors",
			Version: "v0.1.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/scripts", g.handleScriptRun,
		okapi.DocSummary("Run a raw automation script"),
		okapi.DocTags("Scripts"),
		okapi.DocRequestBody(ScriptRequest{}),
		okapi.DocResponse(ScriptResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)
	g.group.Get("/tools", g.handleToolList,
		okapi.DocSummary("List available connector tools"),
		okapi.DocTags("Tools"),
		okapi.DocResponse([]ToolDescriptor{}),
	)
	g.group.Post("/tools/{name}", g.handleToolInvoke,
		okapi.DocSummary("Invoke a connector tool"),
		okapi.DocTags("Tools"),
		okapi.DocPathParam("name", "string", "Tool name"),
		okapi.DocRequestBody(map[string]any{}),
		okapi.DocResponse(ToolInvokeResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)

	if g.invocations != nil {
		g.group.Get("/invocations", g.handleInvocationList,
			okapi.DocSummary("List recent invocation records"),
			okapi.DocTags("Invocations"),
			okapi.DocResponse([]storage.Record{}),
		)
	}

	if g.jobs != nil {
		g.group.Get("/jobs", g.handleJobList,
			okapi.DocSummary("List scheduled scripts"),
			okapi.DocTags("Jobs"),
			okapi.DocResponse([]JobDescriptor{}),
		)
	}

	// Extra handlers (e.g., the WebSocket event feed).
	for _, er := range g.extraRoutes {
		g.okapi.HandleStd("GET", er.pattern, er.handler.ServeHTTP)
	}

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}
