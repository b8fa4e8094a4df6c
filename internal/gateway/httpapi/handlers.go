package httpapi

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jkaninda/okapi"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/scheduler"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/storage"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// --- Scripts ---

// ScriptRequest is the JSON body for POST /v1/scripts.
type ScriptRequest struct {
	Script    string `json:"script"`
	TimeoutMS int    `json:"timeout_ms,omitempty"` // 0 = engine default.
}

// ScriptResponse is the JSON response for POST /v1/scripts.
type ScriptResponse struct {
	Output   string `json:"output"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	Success  bool   `json:"success"`
}

func (g *Gateway) handleScriptRun(c *okapi.Context) error {
	clientID := c.GetString("clientID")

	if g.limiter != nil {
		if err := g.limiter.Allow(clientID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req ScriptRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("script is required")
	}
	if req.Script == "" {
		return c.AbortBadRequest("script is required")
	}

	g.logger.Info("http script run",
		slog.String("client_id", clientID),
		slog.Int("script_bytes", len(req.Script)),
	)

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	result, err := g.runner.Run(c.Context(), req.Script, timeout)
	if err != nil {
		if errors.Is(err, policy.ErrDenied) {
			return c.JSON(http.StatusForbidden, okapi.M{"error": err.Error()})
		}
		g.logger.Error("script run failed",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("script run failed")
	}

	return c.OK(toScriptResponse(result))
}

func toScriptResponse(result *tools.Result) ScriptResponse {
	resp := ScriptResponse{
		Output:  result.Output,
		Success: result.Success,
	}
	if code, ok := result.Metadata["exit_code"].(int); ok {
		resp.ExitCode = code
	}
	if stderr, ok := result.Metadata["stderr"].(string); ok {
		resp.Stderr = stderr
	}
	return resp
}

// --- Tools ---

// ToolDescriptor is one entry in the GET /v1/tools listing.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

func (g *Gateway) handleToolList(c *okapi.Context) error {
	all := g.registry.All()
	resp := make([]ToolDescriptor, len(all))
	for i, t := range all {
		resp[i] = ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return c.OK(resp)
}

// ToolInvokeResponse is the JSON response for POST /v1/tools/{name}.
type ToolInvokeResponse struct {
	Output   string         `json:"output"`
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (g *Gateway) handleToolInvoke(c *okapi.Context) error {
	clientID := c.GetString("clientID")

	if g.limiter != nil {
		if err := g.limiter.Allow(clientID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	name := c.Param("name")
	tool := g.registry.Get(name)
	if tool == nil {
		return c.JSON(http.StatusNotFound, okapi.M{"error": "unknown tool " + name})
	}

	params := map[string]any{}
	if err := c.Bind(&params); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	if err := tool.Validate(params); err != nil {
		return c.AbortBadRequest(err.Error())
	}

	g.logger.Info("http tool invoke",
		slog.String("client_id", clientID),
		slog.String("tool", name),
	)

	ctx := tools.ContextWithTool(c.Context(), name)
	result, err := tool.Execute(ctx, params)
	if err != nil {
		if errors.Is(err, policy.ErrDenied) {
			return c.JSON(http.StatusForbidden, okapi.M{"error": err.Error()})
		}
		g.logger.Error("tool invocation failed",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("tool invocation failed")
	}

	return c.OK(ToolInvokeResponse{
		Output:   result.Output,
		Success:  result.Success,
		Metadata: result.Metadata,
	})
}

// --- Invocations ---

func (g *Gateway) handleInvocationList(c *okapi.Context) error {
	query := c.Request().URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.AbortBadRequest("limit must be a non-negative integer")
		}
		limit = parsed
	}

	records, err := g.invocations.List(c.Context(), storage.Filter{
		Tool:  query.Get("tool"),
		Limit: limit,
	})
	if err != nil {
		g.logger.Error("listing invocations", slog.String("error", err.Error()))
		return c.AbortInternalServerError("listing invocations failed")
	}
	return c.OK(records)
}

// --- Jobs ---

// JobDescriptor is one entry in the GET /v1/jobs listing.
type JobDescriptor struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run,omitempty"`
}

func (g *Gateway) handleJobList(c *okapi.Context) error {
	now := time.Now().UTC()
	resp := make([]JobDescriptor, len(g.jobs))
	for i, job := range g.jobs {
		d := JobDescriptor{Name: job.Name, Schedule: job.Schedule}
		if next, err := scheduler.NextRunAfter(job.Schedule, now); err == nil {
			d.NextRun = next
		}
		resp[i] = d
	}
	return c.OK(resp)
}

// --- Health ---

// HealthResponse is the JSON response for the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe.
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the API key and stores the mapped client ID.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		clientID := ""
		for key, id := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				clientID = id
			}
		}
		if clientID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("clientID", clientID)
		return next(c)
	}
}
