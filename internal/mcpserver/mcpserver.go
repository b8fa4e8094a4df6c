// Package mcpserver exposes the connector tool registry over the Model
// Context Protocol. AI agents connect via stdio and invoke tools; every
// invocation flows through the same runner pipeline as the HTTP surface.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

// NewServer creates an MCP server with every registered tool exposed.
func NewServer(name, version string, registry *tools.Registry, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	for _, t := range registry.All() {
		schema, err := json.Marshal(t.InputSchema())
		if err != nil {
			// Schemas are static maps; a marshal failure is a
			// programming error.
			panic("marshaling input schema for " + t.Name() + ": " + err.Error())
		}
		s.AddTool(
			mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema),
			handlerFor(t, logger),
		)
	}

	return s
}

// ServeStdio runs the server over stdin/stdout until the client closes
// the stream.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// handlerFor adapts one registry tool to an MCP tool handler. Tool
// failures become IsError results, never protocol errors: the agent
// should see the classified cause as text it can react to.
func handlerFor(t tools.Tool, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		if err := t.Validate(args); err != nil {
			return errorResult(err.Error()), nil
		}

		if logger != nil {
			logger.InfoContext(ctx, "mcp tool call", slog.String("tool", t.Name()))
		}

		ctx = tools.ContextWithTool(ctx, t.Name())
		result, err := t.Execute(ctx, args)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		if !result.Success {
			return errorResult(result.Output), nil
		}
		return textResult(result.Output), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
