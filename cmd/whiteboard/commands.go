package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Serve Command
// =============================================================================

// buildServeCmd creates the "serve" command that starts the HTTP server.
func buildServeCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the whiteboard server",
		Long: `Start the whiteboard server.

The server will:
1. Load configuration from the specified file (or whiteboard.yaml)
2. Open the configured session store (memory, postgres, sqlite or redis)
3. Serve the REST API, the live session stream, /healthz and /metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with built-in defaults (in-memory store on :3000)
  whiteboard serve

  # Start with a custom config and debug logging
  whiteboard serve --config /etc/whiteboard/production.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")
	return cmd
}

// =============================================================================
// Sessions Commands
// =============================================================================

// buildSessionsCmd creates the "sessions" command group.
func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions on a running server",
	}
	cmd.AddCommand(
		buildSessionsCreateCmd(),
		buildSessionsListCmd(),
		buildSessionsGetCmd(),
		buildSessionsDeleteCmd(),
	)
	return cmd
}

func buildSessionsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a session, optionally named",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runSessionsCreate(cmd, name)
		},
	}
}

func buildSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the most recently updated sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd)
		},
	}
}

func buildSessionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id-or-name>",
		Short: "Print a session and its elements as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsGet(cmd, args[0])
		},
	}
}

func buildSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd, args[0])
		},
	}
}

// =============================================================================
// Snapshot Command
// =============================================================================

func buildSnapshotCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshot <id-or-name>",
		Short: "Describe a session's contents as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full snapshot response as JSON")
	return cmd
}

// =============================================================================
// Sync Command
// =============================================================================

func buildSyncCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sync <id-or-name>",
		Short: "Mirror a session into a local JSON file",
		Long: `Mirror a session into a local JSON file.

Remote changes are polled and written to the file; edits to the file are
pushed back after a short debounce. While <file>.editing exists, polling
pauses so an in-progress edit is never overwritten.`,
		Example: `  whiteboard sync roadmap --file roadmap.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0], file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Local file to mirror the session into (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigValidate(cmd)
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the configuration JSON Schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSchema(cmd)
			},
		},
	)
	return cmd
}
