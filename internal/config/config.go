// Package config handles loading and validating connector configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for the connector server.
type Config struct {
	DataDir       string                `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Persistent data directory. Default: ~/.mcp-connectors/data. Override: CONNECTORS_DATA_DIR.
	Engine        EngineConfig          `json:"engine" yaml:"engine"`
	Policy        PolicyConfig          `json:"policy" yaml:"policy"`
	Storage       *StorageConfig        `json:"storage,omitempty" yaml:"storage,omitempty"`             // nil = SQLite default (derived from data dir)
	Gateways      GatewaysConfig        `json:"gateways" yaml:"gateways"`
	Observability *ObservabilityConfig  `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
	Scheduler     *SchedulerConfig      `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`         // nil = scheduled scripts disabled
}

// EngineConfig configures the script execution engine.
type EngineConfig struct {
	Interpreter  string   `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`     // Default: "osascript".
	Args         []string `json:"args,omitempty" yaml:"args,omitempty"`                   // Fixed args before the script. Default: ["-e"] for osascript.
	TimeoutMS    int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`       // Default: 45000.
	MaxOutput    int      `json:"max_output,omitempty" yaml:"max_output,omitempty"`       // Default: 512000 bytes.
}

// Timeout returns the configured engine timeout.
func (e *EngineConfig) Timeout() time.Duration {
	if e.TimeoutMS <= 0 {
		return 45 * time.Second
	}
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// PolicyConfig configures the denylist scanner and path sandbox.
type PolicyConfig struct {
	DeniedPatterns []string `json:"denied_patterns,omitempty" yaml:"denied_patterns,omitempty"` // Added to the built-in denylist.
	AllowedPaths   []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`     // Roots file-touching tools may access. Empty = deny all paths.
}

// StorageConfig configures the invocation audit store.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"` // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"` // Database file path. Default: derived from data dir.
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`     // "wal" (default), "delete", "truncate", etc.
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
type PostgresStorageConfig struct {
	DSN string `json:"dsn" yaml:"dsn"` // Overridden by CONNECTORS_DB_DSN.
}

// GatewaysConfig configures the serving surfaces.
type GatewaysConfig struct {
	HTTP *HTTPGatewayConfig `json:"http,omitempty" yaml:"http,omitempty"` // nil = HTTP gateway disabled (stdio MCP only).
}

// HTTPGatewayConfig configures the HTTP API gateway.
type HTTPGatewayConfig struct {
	Enabled           bool              `json:"enabled" yaml:"enabled"`
	ListenAddr        string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8787".
	APIKeys           map[string]string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"` // API key → client ID.
	RequestsPerMinute int               `json:"requests_per_minute" yaml:"requests_per_minute"` // Per client. 0 = unlimited.
	EnableDocs        bool              `json:"enable_docs" yaml:"enable_docs"`
	EventStream       bool              `json:"event_stream" yaml:"event_stream"` // WebSocket invocation feed at /v1/events.
}

// Addr returns the listen address, defaulting to ":8787".
func (h *HTTPGatewayConfig) Addr() string {
	if h.ListenAddr != "" {
		return h.ListenAddr
	}
	return ":8787"
}

// ObservabilityConfig configures metrics, tracing, and health checks.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "mcp-connectors"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// SchedulerConfig configures recurring automation scripts.
type SchedulerConfig struct {
	Enabled bool           `json:"enabled" yaml:"enabled"`
	Jobs    []ScheduledJob `json:"jobs" yaml:"jobs"`
}

// ScheduledJob is one recurring script.
type ScheduledJob struct {
	Name      string `json:"name" yaml:"name"`
	Schedule  string `json:"schedule" yaml:"schedule"` // Cron spec, e.g. "0 9 * * MON-FRI".
	Script    string `json:"script" yaml:"script"`
	TimeoutMS int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
}

// DefaultConfigPath returns the default config file path
// (~/.mcp-connectors/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/mcp-connectors.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".mcp-connectors", "config.yaml")
}

// Default returns a usable configuration for a bare start: osascript
// engine, built-in denylist only, no HTTP gateway, SQLite audit store
// under the data directory. Used when the server is started without a
// config file.
func Default() *Config {
	return &Config{}
}

// Load reads a JSON or YAML config file and returns a validated Config.
// Format is detected by extension: .yml/.yaml for YAML, everything else
// for JSON. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads the config at path, or returns Default() when the
// file does not exist. Any other read/parse error is still fatal.
func LoadOrDefault(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return Load(path)
}

// applyEnv applies environment overrides. Env vars take precedence over
// config file values.
func (c *Config) applyEnv() {
	if envDD := os.Getenv("CONNECTORS_DATA_DIR"); envDD != "" {
		c.DataDir = envDD
	}
	if envDSN := os.Getenv("CONNECTORS_DB_DSN"); envDSN != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Postgres.DSN = envDSN
	}
	if envKey := os.Getenv("CONNECTORS_API_KEY"); envKey != "" {
		if c.Gateways.HTTP == nil {
			c.Gateways.HTTP = &HTTPGatewayConfig{Enabled: true}
		}
		if c.Gateways.HTTP.APIKeys == nil {
			c.Gateways.HTTP.APIKeys = make(map[string]string)
		}
		c.Gateways.HTTP.APIKeys[envKey] = "default"
	}
}

// ResolvedDataDir returns the data directory, resolving ~ if needed.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		return filepath.Join(home, ".mcp-connectors", "data")
	}
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// DatabasePath returns the SQLite database path, derived from the data
// directory unless set explicitly.
func (c *Config) DatabasePath() string {
	if c.Storage != nil && c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.ResolvedDataDir(), "invocations.db")
}

func (c *Config) validate() error {
	if c.Engine.TimeoutMS < 0 {
		return fmt.Errorf("engine.timeout_ms must not be negative")
	}
	if c.Engine.MaxOutput < 0 {
		return fmt.Errorf("engine.max_output must not be negative")
	}
	if s := c.Storage; s != nil {
		switch s.StorageDriver() {
		case "sqlite":
		case "postgres":
			if s.Postgres == nil || s.Postgres.DSN == "" {
				return fmt.Errorf("storage.postgres.dsn is required for the postgres driver")
			}
		default:
			return fmt.Errorf("unknown storage driver %q", s.Driver)
		}
	}
	if h := c.Gateways.HTTP; h != nil && h.Enabled && len(h.APIKeys) == 0 {
		return fmt.Errorf("gateways.http.api_keys must not be empty when the HTTP gateway is enabled")
	}
	if sc := c.Scheduler; sc != nil && sc.Enabled {
		for i, job := range sc.Jobs {
			if job.Name == "" {
				return fmt.Errorf("scheduler.jobs[%d]: name is required", i)
			}
			if job.Schedule == "" {
				return fmt.Errorf("scheduler job %q: schedule is required", job.Name)
			}
			if job.Script == "" {
				return fmt.Errorf("scheduler job %q: script is required", job.Name)
			}
		}
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
