// Package main provides the CLI entry point for the whiteboard server and
// its sync client.
//
// # Basic Usage
//
// Start the server:
//
//	whiteboard serve --config whiteboard.yaml
//
// Work with sessions on a running server:
//
//	whiteboard sessions create roadmap
//	whiteboard snapshot roadmap
//
// Mirror a session into a local JSON file, pushing edits back:
//
//	whiteboard sync roadmap --file roadmap.json
//
// # Environment Variables
//
//   - WHITEBOARD_CONFIG: Path to configuration file (default: whiteboard.yaml)
//   - WHITEBOARD_URL: Server URL for client commands (overrides sync.server_url)
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/whiteboard/internal/config"
)

// Build information - populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "whiteboard.yaml"

var (
	configPath string
	serverURL  string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "whiteboard",
		Short: "Whiteboard - shared diagram sessions over HTTP",
		Long: `Whiteboard stores shared diagram sessions, builds shapes, arrows and
laid-out diagrams for them, and describes their contents as text.

Run "whiteboard serve" for the server and "whiteboard sync" to mirror a
session into a local file.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to configuration file (default whiteboard.yaml, or set WHITEBOARD_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Server URL for client commands (or set WHITEBOARD_URL)")

	rootCmd.AddCommand(
		buildServeCmd(),
		buildSessionsCmd(),
		buildSnapshotCmd(),
		buildSyncCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}

func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("WHITEBOARD_CONFIG")); env != "" {
		return env
	}
	return defaultConfigPath
}

// loadConfig loads the configuration file. A missing default file yields
// the built-in defaults plus environment overrides.
func loadConfig(path string) (*config.Config, error) {
	path = resolveConfigPath(path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// resolveServerURL picks the server for client commands: --server, then
// WHITEBOARD_URL, then sync.server_url.
func resolveServerURL(cfg *config.Config) string {
	if strings.TrimSpace(serverURL) != "" {
		return serverURL
	}
	if env := strings.TrimSpace(os.Getenv("WHITEBOARD_URL")); env != "" {
		return env
	}
	return cfg.Sync.ServerURL
}
