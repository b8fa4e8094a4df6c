// MCP Connectors exposes macOS application automation to AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mcp-connectors",
	Short: "MCP server exposing macOS application automation tools.",
	Long: `mcp-connectors is an MCP (Model Context Protocol) server that lets AI
agents drive macOS applications such as Calendar, Mail, Notes, Reminders,
Finder, and Messages. Tool calls are compiled into AppleScript and executed
through a policy-guarded engine that enforces timeouts and output ceilings.`,
	RunE:          runServe, // Default to stdio MCP mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, gatewayCmd, runCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
