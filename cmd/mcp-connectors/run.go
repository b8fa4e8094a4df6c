package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
)

var (
	runScript     string
	runTimeoutMS  int
	runConfigPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one automation script and exit",
	Long: `Execute a single automation script through the policy-guarded engine
and print its output. The process exit code mirrors the script's:
0 on success, 124 on timeout, 143 when terminated, 2 on policy denial.

Examples:
  mcp-connectors run -e 'tell application "Finder" to get name of startup disk'
  mcp-connectors run -e 'display notification "done"' --timeout 5000`,
	RunE: runOneShot,
}

func init() {
	runCmd.Flags().StringVarP(&runScript, "script", "e", "", "script text to execute (required)")
	runCmd.Flags().IntVar(&runTimeoutMS, "timeout", 0, "timeout in milliseconds (0 = config default)")
	runCmd.Flags().StringVar(&runConfigPath, "config", config.DefaultConfigPath(), "path to config file")

	_ = runCmd.MarkFlagRequired("script")
}

func runOneShot(_ *cobra.Command, _ []string) error {
	logger := newLogger(slog.LevelWarn)

	cfg, err := config.LoadOrDefault(goutils.Env("CONNECTORS_CONFIG", runConfigPath))
	if err != nil {
		return err
	}

	engine := osa.New(osa.Config{
		Interpreter: cfg.Engine.Interpreter,
		Args:        cfg.Engine.Args,
	}, logger)
	guard := policy.NewGuard(cfg.Policy.DeniedPatterns, logger)
	runner := tools.NewScriptRunner(engine, guard, logger).
		WithDefaultTimeout(cfg.Engine.Timeout()).
		WithMaxOutput(cfg.Engine.MaxOutput)

	timeout := time.Duration(runTimeoutMS) * time.Millisecond

	result, err := runner.Run(context.Background(), runScript, timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if result.Success {
		fmt.Println(result.Output)
		return nil
	}

	fmt.Fprintln(os.Stderr, result.Output)
	if code, ok := result.Metadata["exit_code"].(int); ok && code > 0 {
		os.Exit(code)
	}
	os.Exit(1)
	return nil
}
