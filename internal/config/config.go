// Package config loads the whiteboard server and sync client configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

// Config is the main configuration structure for the whiteboard server.
type Config struct {
	Version  int            `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Sync     SyncConfig     `yaml:"sync"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	HTTPPort    int      `yaml:"http_port"`
	BasePath    string   `yaml:"base_path"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

type DatabaseConfig struct {
	// Driver selects the session store: memory, postgres, sqlite or redis.
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// StoreConfig controls write coordination for sessions.
type StoreConfig struct {
	// SerializeWrites takes a per-session lock around read-modify-write.
	SerializeWrites bool          `yaml:"serialize_writes"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// SyncConfig configures the client-side sync engine.
type SyncConfig struct {
	// ServerURL is the API root, including the base path.
	ServerURL    string        `yaml:"server_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	QuietPeriod  time.Duration `yaml:"quiet_period"`
	PushDebounce time.Duration `yaml:"push_debounce"`
}

// ConfigValidationError lists every problem found in a loaded config.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Issues, "; ")
}

// Load reads, merges and validates the configuration file at path.
// Environment overrides from ApplyEnv win over the file.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decodeStrict(raw)
	if err != nil {
		return nil, err
	}
	if cfg.Version != 0 {
		if err := ValidateVersion(cfg.Version); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// FromEnv returns the defaults with environment overrides applied. It is the
// config used when no file exists.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 3000
	}
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = "/api"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverMemory
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Store.LockTimeout == 0 {
		cfg.Store.LockTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "whiteboard"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}
	if cfg.Sync.ServerURL == "" {
		cfg.Sync.ServerURL = "http://localhost:3000/api"
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = 2 * time.Second
	}
	if cfg.Sync.QuietPeriod == 0 {
		cfg.Sync.QuietPeriod = 5 * time.Second
	}
	if cfg.Sync.PushDebounce == 0 {
		cfg.Sync.PushDebounce = 3 * time.Second
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var issues []string

	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		issues = append(issues, fmt.Sprintf("server.http_port %d is out of range", c.Server.HTTPPort))
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		issues = append(issues, "server.base_path must start with /")
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite, DriverRedis:
		if strings.TrimSpace(c.Database.URL) == "" {
			issues = append(issues, fmt.Sprintf("database.url is required for driver %q", c.Database.Driver))
		}
	default:
		issues = append(issues, fmt.Sprintf("database.driver %q must be one of memory, postgres, sqlite, redis", c.Database.Driver))
	}
	if c.Database.MaxConnections < 0 {
		issues = append(issues, "database.max_connections must not be negative")
	}

	if c.Store.LockTimeout < 0 {
		issues = append(issues, "store.lock_timeout must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be json or text", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q is not a known level", c.Logging.Level))
	}

	if c.Tracing.Enabled && strings.TrimSpace(c.Tracing.Endpoint) == "" {
		issues = append(issues, "tracing.endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be between 0 and 1")
	}

	if u, err := url.Parse(c.Sync.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("sync.server_url %q must be an absolute URL", c.Sync.ServerURL))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"sync.poll_interval", c.Sync.PollInterval},
		{"sync.quiet_period", c.Sync.QuietPeriod},
		{"sync.push_debounce", c.Sync.PushDebounce},
	} {
		if d.value < 0 {
			issues = append(issues, d.name+" must not be negative")
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
