package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/whiteboard/internal/canvas"
	"github.com/haasonsaas/whiteboard/internal/config"
	"github.com/haasonsaas/whiteboard/internal/snapshot"
	"github.com/haasonsaas/whiteboard/internal/web"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"serve", "sessions", "snapshot", "sync", "config"} {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WHITEBOARD_CONFIG", "")
	t.Setenv("WHITEBOARD_URL", "")
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newAPIServer(t *testing.T) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler, err := web.NewHandler(&web.Config{
		Manager: canvas.NewManager(canvas.NewMemoryStore(), logger),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL + "/api"
}

func TestSessionsCommands(t *testing.T) {
	api := newAPIServer(t)

	out, err := runCLI(t, "--server", api, "sessions", "create", "roadmap")
	if err != nil {
		t.Fatalf("sessions create: %v", err)
	}
	if !strings.Contains(out, "Created session") || !strings.Contains(out, "Name: roadmap") {
		t.Fatalf("unexpected create output:\n%s", out)
	}

	out, err = runCLI(t, "--server", api, "sessions", "list")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if !strings.Contains(out, "roadmap") {
		t.Fatalf("list output missing session:\n%s", out)
	}

	out, err = runCLI(t, "--server", api, "snapshot", "roadmap")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if strings.TrimSpace(out) != snapshot.EmptyDescription {
		t.Fatalf("snapshot output = %q", out)
	}

	if _, err := runCLI(t, "--server", api, "sessions", "delete", "roadmap"); err != nil {
		t.Fatalf("sessions delete: %v", err)
	}
	_, err = runCLI(t, "--server", api, "sessions", "get", "roadmap")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whiteboard.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: memory\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := runCLI(t, "--config", path, "config", "validate")
	if err != nil || !strings.Contains(out, "is valid") {
		t.Fatalf("config validate = %q, %v", out, err)
	}

	out, err = runCLI(t, "config", "schema")
	if err != nil || !strings.Contains(out, "serialize_writes") {
		t.Fatalf("config schema missing fields: %v", err)
	}
}

func TestOpenStoreSelectsDriver(t *testing.T) {
	cfg := config.Default()
	store, err := openStore(t.Context(), cfg)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := store.(*canvas.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.URL = filepath.Join(t.TempDir(), "whiteboard.db")
	store, err = openStore(t.Context(), cfg)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*canvas.SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}

	cfg.Database.Driver = "mongo"
	if _, err := openStore(t.Context(), cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
