package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/whiteboard/internal/observability"
	"github.com/haasonsaas/whiteboard/internal/syncer"
)

// =============================================================================
// Sync Command Handler
// =============================================================================

// runSync mirrors a session into file until interrupted. A pending push is
// flushed before exit.
func runSync(cmd *cobra.Command, token, file string) error {
	client, cfg, err := newAPIClient()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	// Resolve names to ids so the engine polls a stable path.
	session, err := client.GetSession(cmd.Context(), token)
	if err != nil {
		if syncer.IsNotFound(err) {
			return fmt.Errorf("session %q not found", token)
		}
		return fmt.Errorf("get session: %w", err)
	}

	mirror, err := syncer.NewMirror(file, logger)
	if err != nil {
		return err
	}
	defer mirror.Close()

	engine := syncer.NewEngine(client, session.ID,
		syncer.WithConfig(syncer.Config{
			PollInterval: cfg.Sync.PollInterval,
			QuietPeriod:  cfg.Sync.QuietPeriod,
			PushDebounce: cfg.Sync.PushDebounce,
		}),
		syncer.WithLogger(logger),
		syncer.WithOnReplace(mirror.Apply),
	)
	defer engine.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	if err := mirror.Start(ctx, engine); err != nil {
		return fmt.Errorf("watch %s: %w", mirror.Path(), err)
	}

	logger.Info("sync started",
		"session_id", session.ID,
		"file", mirror.Path(),
		"server", resolveServerURL(cfg),
	)
	<-ctx.Done()

	if engine.Flush() {
		logger.Info("flushed pending edits")
	}
	logger.Info("sync stopped", "session_id", session.ID)
	return nil
}
