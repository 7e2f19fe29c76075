package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/whiteboard/internal/config"
	"github.com/haasonsaas/whiteboard/internal/syncer"
)

// =============================================================================
// Sessions Command Handlers
// =============================================================================

func newAPIClient() (*syncer.Client, *config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return syncer.NewClient(resolveServerURL(cfg), syncer.DefaultRequestTimeout), cfg, nil
}

func runSessionsCreate(cmd *cobra.Command, name string) error {
	client, _, err := newAPIClient()
	if err != nil {
		return err
	}
	session, err := client.CreateSession(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created session %s\n", session.ID)
	if session.Name != "" {
		fmt.Fprintf(out, "  Name: %s\n", session.Name)
	}
	fmt.Fprintf(out, "  URL:  %s\n", session.URL)
	return nil
}

func runSessionsList(cmd *cobra.Command) error {
	client, _, err := newAPIClient()
	if err != nil {
		return err
	}
	sessions, err := client.ListSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tUPDATED")
	for _, session := range sessions {
		name := session.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			session.ID, name, session.CreatedAt.Format(time.RFC3339), session.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runSessionsGet(cmd *cobra.Command, token string) error {
	client, _, err := newAPIClient()
	if err != nil {
		return err
	}
	session, err := client.GetSession(cmd.Context(), token)
	if err != nil {
		if syncer.IsNotFound(err) {
			return fmt.Errorf("session %q not found", token)
		}
		return fmt.Errorf("get session: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), session)
}

func runSessionsDelete(cmd *cobra.Command, token string) error {
	client, _, err := newAPIClient()
	if err != nil {
		return err
	}
	if err := client.DeleteSession(cmd.Context(), token); err != nil {
		if syncer.IsNotFound(err) {
			return fmt.Errorf("session %q not found", token)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", token)
	return nil
}

func runSnapshot(cmd *cobra.Command, token string, asJSON bool) error {
	client, _, err := newAPIClient()
	if err != nil {
		return err
	}
	snap, err := client.Snapshot(cmd.Context(), token)
	if err != nil {
		if syncer.IsNotFound(err) {
			return fmt.Errorf("session %q not found", token)
		}
		return fmt.Errorf("snapshot: %w", err)
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), snap)
	}
	fmt.Fprintln(cmd.OutOrStdout(), snap.Description)
	return nil
}

// =============================================================================
// Config Command Handlers
// =============================================================================

func runConfigValidate(cmd *cobra.Command) error {
	path := resolveConfigPath(configPath)
	if _, err := config.Load(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
	return nil
}

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
