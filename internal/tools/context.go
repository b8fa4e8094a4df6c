package tools

import "context"

type toolNameKey struct{}

// ContextWithTool tags a context with the tool name driving the current
// script run. Dispatchers set it before Execute so layers below the
// tool (recording, metrics) can attribute the run.
func ContextWithTool(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

// ToolFromContext returns the tool name set by ContextWithTool, or ""
// for raw script runs.
func ToolFromContext(ctx context.Context) string {
	name, _ := ctx.Value(toolNameKey{}).(string)
	return name
}
