// Command hcs-server runs the home-cloud sync daemon: it reads Config.toml
// from the current working directory, opens the change-log and content
// stores it describes, and serves the sync protocol until terminated.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/tonimelisma/hcs-server/internal/config"
	"github.com/tonimelisma/hcs-server/internal/changelog"
	"github.com/tonimelisma/hcs-server/internal/content"
	"github.com/tonimelisma/hcs-server/internal/serverd"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultConfigFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := buildLogger(cfg)

	cleanup, err := serverd.WritePIDFile(pidFilePath(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := serverd.ShutdownContext(context.Background(), logger)

	store, err := changelog.Open(ctx, cfg.DB, logger)
	if err != nil {
		return fmt.Errorf("opening change-log store: %w", err)
	}
	defer store.Close()

	contentStore := content.New(cfg.FileHandler.StorageDirectory, logger)

	if err := os.MkdirAll(cfg.FileHandler.StorageDirectory, 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	srv := serverd.New(cfg, store, contentStore, logger)

	logger.Info("hcs-server starting", slog.String("addr", cfg.TCP.Addr))

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}

	logger.Info("hcs-server stopped")

	return nil
}

// pidFilePath derives the single-instance lock file path from the storage
// directory so two daemons rooted at the same directory can't both run.
func pidFilePath(cfg *config.Config) string {
	return cfg.FileHandler.StorageDirectory + "/.hcs-server.pid"
}

// buildLogger builds an slog.Logger at the configured level. Interactive
// terminals get a human-readable text handler; anything else (a log
// aggregator, a redirected file) gets JSON.
func buildLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
