package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "whiteboard.yaml", `
server:
  host: 0.0.0.0
  extra: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "whiteboard.yaml", `
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Server.HTTPPort != 3000 || cfg.Server.BasePath != "/api" || cfg.Server.Addr() != "0.0.0.0:3000" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Database.Driver != DriverMemory || cfg.Store.LockTimeout != 10*time.Second {
		t.Fatalf("unexpected store defaults %+v %+v", cfg.Database, cfg.Store)
	}
	if cfg.Sync.PollInterval != 2*time.Second || cfg.Sync.QuietPeriod != 5*time.Second || cfg.Sync.PushDebounce != 3*time.Second {
		t.Fatalf("unexpected sync defaults %+v", cfg.Sync)
	}
	if cfg.Version != CurrentVersion {
		t.Fatalf("version = %d, want %d", cfg.Version, CurrentVersion)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("WHITEBOARD_TEST_DSN", "postgres://user:pw@db:26257/whiteboard")
	path := writeConfig(t, "whiteboard.yaml", `
database:
  driver: postgres
  url: ${WHITEBOARD_TEST_DSN}
  conn_max_lifetime: 90s
store:
  serialize_writes: true
  lock_timeout: 2s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgres://user:pw@db:26257/whiteboard" {
		t.Fatalf("url = %q", cfg.Database.URL)
	}
	if cfg.Database.ConnMaxLifetime != 90*time.Second || !cfg.Store.SerializeWrites || cfg.Store.LockTimeout != 2*time.Second {
		t.Fatalf("unexpected durations %+v %+v", cfg.Database, cfg.Store)
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		contents string
	}{
		{
			name: "json5",
			file: "whiteboard.json5",
			contents: `{
  // comments and trailing commas are allowed
  server: { http_port: 4000, cors_origins: ["http://localhost:5173"], },
  sync: { poll_interval: "1s" },
  tracing: { sample_rate: 0.25 },
}`,
		},
		{
			name: "toml",
			file: "whiteboard.toml",
			contents: `
[server]
http_port = 4000
cors_origins = ["http://localhost:5173"]

[sync]
poll_interval = "1s"

[tracing]
sample_rate = 0.25
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.contents))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Server.HTTPPort != 4000 {
				t.Errorf("http_port = %d", cfg.Server.HTTPPort)
			}
			if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:5173" {
				t.Errorf("cors_origins = %v", cfg.Server.CORSOrigins)
			}
			if cfg.Sync.PollInterval != time.Second {
				t.Errorf("poll_interval = %v", cfg.Sync.PollInterval)
			}
			if cfg.Tracing.SampleRate != 0.25 {
				t.Errorf("sample_rate = %v", cfg.Tracing.SampleRate)
			}
		})
	}
}

func TestLoadIncludes(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(base, []byte("database:\n  driver: sqlite\n  url: file:whiteboard.db\nlogging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	main := filepath.Join(dir, "whiteboard.yaml")
	if err := os.WriteFile(main, []byte("$include: base.yaml\nlogging:\n  level: error\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.URL != "file:whiteboard.db" {
		t.Fatalf("included database config lost: %+v", cfg.Database)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("including file should win, got level %q", cfg.Logging.Level)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	_ = os.WriteFile(a, []byte("$include: b.yaml\n"), 0o644)
	_ = os.WriteFile(b, []byte("$include: a.yaml\n"), 0o644)

	_, err := Load(a)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected include cycle error, got %v", err)
	}
	if !strings.Contains(err.Error(), "a.yaml -> ") || !strings.Contains(err.Error(), "b.yaml") {
		t.Fatalf("expected the include chain in %q", err)
	}
}

func TestLoadSectionInclude(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "db.toml"), []byte("driver = \"sqlite\"\nurl = \"file:from-include.db\"\nmax_connections = 4\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	main := filepath.Join(dir, "whiteboard.yaml")
	contents := "database:\n  $include: db.toml\n  url: file:local.db\nserver:\n  http_port: 4100\n"
	if err := os.WriteFile(main, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.MaxConnections != 4 {
		t.Fatalf("section include not merged: %+v", cfg.Database)
	}
	if cfg.Database.URL != "file:local.db" {
		t.Fatalf("keys beside the include should win, got %q", cfg.Database.URL)
	}
	if cfg.Server.HTTPPort != 4100 {
		t.Fatalf("other sections lost: %+v", cfg.Server)
	}
}

func TestLoadRejectsBadInclude(t *testing.T) {
	_, err := Load(writeConfig(t, "whiteboard.yaml", "database:\n  $include: 5\n"))
	if err == nil || !strings.Contains(err.Error(), "database") {
		t.Fatalf("expected include error naming the section, got %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WHITEBOARD_PORT", "8080")
	t.Setenv("WHITEBOARD_DATABASE_DRIVER", "Redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("WHITEBOARD_SYNC_POLL_INTERVAL", "750ms")

	cfg, err := Load(writeConfig(t, "whiteboard.yaml", "server:\n  http_port: 3000\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("http_port = %d, want env override", cfg.Server.HTTPPort)
	}
	if cfg.Database.Driver != DriverRedis || cfg.Database.URL != "redis://cache:6379/2" {
		t.Errorf("driver url fallback not applied: %+v", cfg.Database)
	}
	if cfg.Sync.PollInterval != 750*time.Millisecond {
		t.Errorf("poll_interval = %v", cfg.Sync.PollInterval)
	}
}

func TestLoadEnvOverrideErrors(t *testing.T) {
	t.Setenv("WHITEBOARD_PORT", "eighty")
	t.Setenv("WHITEBOARD_SERIALIZE_WRITES", "maybe")

	_, err := Load(writeConfig(t, "whiteboard.yaml", ""))
	var verr *ConfigValidationError
	if !errors.As(err, &verr) || len(verr.Issues) != 2 {
		t.Fatalf("expected two env issues, got %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WHITEBOARD_DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://db/whiteboard")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Database.URL != "postgres://db/whiteboard" || cfg.Server.HTTPPort != 3000 {
		t.Fatalf("unexpected config %+v %+v", cfg.Database, cfg.Server)
	}
}

func TestLoadValidates(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     []string
	}{
		{
			name:     "unknown driver",
			contents: "database:\n  driver: mongo\n",
			want:     []string{"database.driver"},
		},
		{
			name:     "driver without url",
			contents: "database:\n  driver: redis\n",
			want:     []string{"database.url"},
		},
		{
			name:     "tracing without endpoint",
			contents: "tracing:\n  enabled: true\n  sample_rate: 2\n",
			want:     []string{"tracing.endpoint", "tracing.sample_rate"},
		},
		{
			name:     "bad logging and base path",
			contents: "logging:\n  format: xml\nserver:\n  base_path: api\n",
			want:     []string{"logging.format", "server.base_path"},
		},
		{
			name:     "relative sync url",
			contents: "sync:\n  server_url: localhost\n  quiet_period: -1s\n",
			want:     []string{"sync.server_url", "sync.quiet_period"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REDIS_URL", "")
			_, err := Load(writeConfig(t, "whiteboard.yaml", tt.contents))
			var verr *ConfigValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ConfigValidationError, got %v", err)
			}
			if len(verr.Issues) != len(tt.want) {
				t.Fatalf("issues = %v, want %d", verr.Issues, len(tt.want))
			}
			for _, field := range tt.want {
				if !strings.Contains(verr.Error(), field) {
					t.Errorf("expected %s in %q", field, verr.Error())
				}
			}
		})
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	_, err := Load(writeConfig(t, "whiteboard.yaml", "version: 99\n"))
	var ve *VersionError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *VersionError, got %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestJSONSchema(t *testing.T) {
	schema, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	for _, field := range []string{"serialize_writes", "push_debounce", "cors_origins"} {
		if !strings.Contains(string(schema), field) {
			t.Errorf("schema missing %s", field)
		}
	}
}

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
