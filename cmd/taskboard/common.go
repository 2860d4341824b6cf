package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/monocle-dev/taskboard/db"
	"github.com/monocle-dev/taskboard/internal/config"
	"github.com/monocle-dev/taskboard/internal/logging"
	"github.com/spf13/cobra"
)

// bootstrap loads configuration, builds the logger and opens and migrates the
// database shared by every command.
func bootstrap(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	envFiles, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := db.ConnectDatabase(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.MigrateDatabase(db.DB); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("database ready", "driver", cfg.DatabaseDriver)

	return cfg, logger, nil
}

// seedDatabase loads the seed file when one is configured, otherwise the
// built-in sample organisation, and seeds an empty database with it.
func seedDatabase(cmd *cobra.Command, file string, logger *slog.Logger) error {
	data := db.DefaultSeed()

	if file != "" {
		loaded, err := db.LoadSeedFile(file)
		if err != nil {
			return err
		}
		data = loaded
	}

	seeded, err := db.Seed(cmd.Context(), db.DB, data, time.Now())
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	if seeded {
		logger.Info("database seeded", "users", len(data.Users), "tasks", len(data.Tasks))
	} else {
		logger.Info("database already has users, seed skipped")
	}

	return nil
}
