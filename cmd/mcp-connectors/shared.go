package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/config"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/observability"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/osa"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/policy"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/storage"
	pgstore "github.com/StackOneHQ/mcp-connectors-sub002/internal/storage/postgres"
	sqlitestore "github.com/StackOneHQ/mcp-connectors-sub002/internal/storage/sqlite"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools/calendar"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools/finder"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools/mail"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools/messages"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools/notes"
	"github.com/StackOneHQ/mcp-connectors-sub002/internal/tools/reminders"
)

// SharedComponents holds the subsystems that every serving mode needs.
// Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config  *config.Config
	Logger  *slog.Logger
	Engine  *osa.Engine
	Guard   *policy.Guard
	Paths   *policy.PathGuard
	Store   storage.Store // nil when persistence is disabled.
	Obs     *observability.Observability
	ToolReg *tools.Registry

	// Runner is the fully decorated execution pipeline: policy scan,
	// engine, error classification, audit recording, instrumentation.
	Runner tools.Runner

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs the initialization shared by the stdio and HTTP
// serving modes. Callers must call sc.Cleanup() when done.
func initShared(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Data directory for the SQLite store.
	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logger.Debug("data directory initialized", slog.String("path", dataDir))

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}

	// Audit store.
	store, err := initStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	})
	logger.Debug("audit store initialized", slog.String("driver", store.Driver()))

	if obs != nil && obs.Health != nil {
		obs.Health.AddCheck("storage", store.Ping)
	}

	// Execution engine and policy guards.
	sc.Engine = osa.New(osa.Config{
		Interpreter: cfg.Engine.Interpreter,
		Args:        cfg.Engine.Args,
	}, logger)
	sc.Guard = policy.NewGuard(cfg.Policy.DeniedPatterns, logger)
	sc.Paths = policy.NewPathGuard(cfg.Policy.AllowedPaths)

	// Runner pipeline.
	base := tools.NewScriptRunner(sc.Engine, sc.Guard, logger).
		WithDefaultTimeout(cfg.Engine.Timeout()).
		WithMaxOutput(cfg.Engine.MaxOutput)
	recording := storage.NewRecordingRunner(base, store.Invocations(), logger)
	sc.Runner = observability.NewInstrumentedRunner(recording, obs.MetricsOrNil(), obs.TracerOrNil())

	// Tool registry.
	sc.ToolReg = buildToolRegistry(sc.Runner, sc.Paths, sc.Obs, logger)
	logger.Debug("tool registry initialized", slog.Int("tools", len(sc.ToolReg.List())))

	return sc, nil
}

// initStore opens the invocation audit store per config and runs
// migrations.
func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Storage.StorageDriver() {
	case storage.DriverPostgres:
		store, err = pgstore.Open(pgstore.Config{DSN: cfg.Storage.Postgres.DSN}, logger)
	default:
		sqliteCfg := sqlitestore.Config{Path: cfg.DatabasePath()}
		if cfg.Storage != nil && cfg.Storage.SQLite != nil {
			sqliteCfg.JournalMode = cfg.Storage.SQLite.JournalMode
		}
		store, err = sqlitestore.Open(sqliteCfg, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.StorageDriver(), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return store, nil
}

// buildToolRegistry registers every connector tool against the runner.
// When observability is enabled each tool is wrapped with per-tool
// metrics and tracing.
func buildToolRegistry(runner tools.Runner, paths *policy.PathGuard, obs *observability.Observability, logger *slog.Logger) *tools.Registry {
	reg := tools.NewRegistry()

	register := func(t tools.Tool) {
		if obs != nil {
			t = observability.NewInstrumentedTool(t, obs.MetricsOrNil(), obs.TracerOrNil())
		}
		reg.Register(t)
	}

	register(calendar.NewCreateEventTool(runner, logger))
	register(calendar.NewListTodayTool(runner))
	register(mail.NewSendTool(runner, logger))
	register(mail.NewUnreadCountTool(runner))
	register(notes.NewCreateTool(runner, logger))
	register(notes.NewSearchTool(runner))
	register(reminders.NewCreateTool(runner, logger))
	register(reminders.NewListTool(runner))
	register(finder.NewRevealTool(runner, paths, logger))
	register(finder.NewListFolderTool(runner, paths))
	register(messages.NewSendTool(runner, logger))

	return reg
}

// newLogger builds the process-wide logger. Logs go to stderr so the
// stdio MCP transport keeps stdout for protocol frames.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
