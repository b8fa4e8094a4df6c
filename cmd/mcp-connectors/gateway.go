package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/gateway/httpapi"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/gateway/ws"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/ratelimit"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/scheduler"
)

var (
	gatewayConfigPath string
	gatewayPort       string
	gatewayDebug      bool
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the HTTP API gateway",
	Long: `Start the HTTP API gateway: REST endpoints for scripts and tools,
an optional WebSocket invocation feed, Prometheus metrics, and the
cron scheduler for recurring automation scripts.`,
	RunE: runGatewayMode,
}

func init() {
	gatewayCmd.Flags().StringVar(&gatewayConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	gatewayCmd.Flags().StringVar(&gatewayPort, "port", "", "override HTTP listen address (e.g. :8787)")
	gatewayCmd.Flags().BoolVar(&gatewayDebug, "debug", false, "enable debug logging")
}

func runGatewayMode(_ *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if gatewayDebug {
		level = slog.LevelDebug
	}
	logger := newLogger(level)

	cfg, err := config.LoadOrDefault(goutils.Env("CONNECTORS_CONFIG", gatewayConfigPath))
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if gatewayPort != "" {
		if cfg.Gateways.HTTP == nil {
			cfg.Gateways.HTTP = &config.HTTPGatewayConfig{Enabled: true}
		}
		cfg.Gateways.HTTP.ListenAddr = gatewayPort
	}
	if cfg.Gateways.HTTP == nil || !cfg.Gateways.HTTP.Enabled {
		cfg.Gateways.HTTP = &config.HTTPGatewayConfig{Enabled: true}
	}
	httpCfg := cfg.Gateways.HTTP
	if len(httpCfg.APIKeys) == 0 {
		return fmt.Errorf("no API keys configured: set gateways.http.api_keys or CONNECTORS_API_KEY")
	}

	logger.Info("starting in gateway mode", slog.String("addr", httpCfg.Addr()))

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := initShared(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	runner := sc.Runner

	// WebSocket event feed (optional). Publishes at the top of the
	// runner pipeline so HTTP, scheduler, and tool invocations all
	// appear on the feed.
	var hub *ws.Hub
	if httpCfg.EventStream {
		hub = ws.NewHub(httpCfg.APIKeys, logger)
		runner = ws.NewPublishingRunner(runner, hub)
		logger.Debug("websocket event feed enabled")
	}

	// Rebuild the registry against the final runner so tool calls flow
	// through every decorator.
	registry := buildToolRegistry(runner, sc.Paths, sc.Obs, logger)

	// Cron scheduler (optional).
	if cfg.Scheduler != nil && cfg.Scheduler.Enabled {
		var schedMetrics *scheduler.Metrics
		if sc.Obs != nil && sc.Obs.Metrics != nil {
			schedMetrics = scheduler.NewMetrics(sc.Obs.Metrics.Registry)
		}

		sched := scheduler.New(cfg.Scheduler, runner, schedMetrics, logger)
		cancelScheduler, err := sched.Start(ctx)
		if err != nil {
			return err
		}
		defer cancelScheduler()

		logger.Debug("cron scheduler initialized", slog.Int("jobs", len(cfg.Scheduler.Jobs)))
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: httpCfg.RequestsPerMinute,
	})

	gwCfg := httpapi.Config{
		ListenAddr: httpCfg.Addr(),
		EnableDocs: httpCfg.EnableDocs,
		APIKeys:    httpCfg.APIKeys,
	}
	if sc.Obs != nil {
		gwCfg.Metrics = sc.Obs.Metrics
		gwCfg.HealthChecker = sc.Obs.Health
		if sc.Obs.Metrics != nil {
			gwCfg.MetricsRegistry = sc.Obs.Metrics.Registry
		}
		if sc.Obs.Tracer != nil {
			gwCfg.Tracer = sc.Obs.Tracer.Tracer()
		}
		if cfg.Observability != nil && cfg.Observability.Metrics != nil {
			gwCfg.MetricsPath = cfg.Observability.Metrics.Path
		}
	}

	gw := httpapi.NewGateway(gwCfg, runner, registry, limiter, logger).
		WithInvocations(sc.Store.Invocations())
	if cfg.Scheduler != nil && cfg.Scheduler.Enabled {
		gw.WithScheduledJobs(cfg.Scheduler.Jobs)
	}
	if hub != nil {
		gw.WithHandler("/v1/events", hub.Handler())
	}

	// Run the gateway; Start blocks until the listener exits.
	errs := make(chan error, 1)
	go func() {
		errs <- gw.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return gw.Stop(shutdownCtx)
}
