package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/mcpserver"
)

var (
	serveConfigPath string
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdio (default mode)",
	Long: `Start the MCP server on stdin/stdout. This is the mode MCP clients
such as Claude Desktop spawn: the client owns the process lifetime and
speaks JSON-RPC over the pipes. All logs go to stderr.`,
	RunE: runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `mcp-connectors --config path` and `mcp-connectors serve --config path`
	// both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if serveDebug {
		level = slog.LevelDebug
	}
	logger := newLogger(level)

	cfg, err := config.LoadOrDefault(goutils.Env("CONNECTORS_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	sc, err := initShared(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	s := mcpserver.NewServer("mcp-connectors", version, sc.ToolReg, logger)

	logger.Info("mcp server starting on stdio",
		slog.Int("tools", len(sc.ToolReg.List())),
		slog.String("timeout", cfg.Engine.Timeout().String()),
	)

	// ServeStdio returns when the client closes the stream.
	return mcpserver.ServeStdio(s)
}
