// Command migrate applies, rolls back, and reports on the schema
// migrations in the migrations directory: the upstream read schema used
// for local development and the reconciler's own tables (sync_status,
// sync_log).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/zmc-reconciler/internal/config"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw/postgres"
	"github.com/vitaliisemenov/zmc-reconciler/pkg/logger"
)

func main() {
	var configPath, migrationsDir string

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the reconciler's database schema migrations",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (optional)")
	root.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "Migrations directory")

	root.AddCommand(
		upCommand(&configPath, &migrationsDir),
		downCommand(&configPath, &migrationsDir),
		statusCommand(&configPath, &migrationsDir),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func upCommand(configPath, migrationsDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, log, err := connect(*configPath)
			if err != nil {
				return err
			}
			defer pool.Disconnect(context.Background())

			if err := storegw.RunMigrations(cmd.Context(), pool, *migrationsDir, log); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func downCommand(configPath, migrationsDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the given number of migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count: %w", err)
				}
				steps = n
			}

			pool, log, err := connect(*configPath)
			if err != nil {
				return err
			}
			defer pool.Disconnect(context.Background())

			if err := storegw.RunMigrationsDown(cmd.Context(), pool, *migrationsDir, steps, log); err != nil {
				return fmt.Errorf("roll back migrations: %w", err)
			}
			fmt.Printf("rolled back %d migration(s)\n", steps)
			return nil
		},
	}
}

func statusCommand(configPath, migrationsDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, log, err := connect(*configPath)
			if err != nil {
				return err
			}
			defer pool.Disconnect(context.Background())

			if err := storegw.GetMigrationStatus(cmd.Context(), pool, *migrationsDir, log); err != nil {
				return fmt.Errorf("get migration status: %w", err)
			}
			return nil
		},
	}
}

// connect loads configuration and opens a store connection; every
// subcommand needs the same pool, so it's factored out rather than
// duplicated in every RunE.
func connect(configPath string) (*postgres.PostgresPool, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stdout",
	})

	pool := postgres.NewPostgresPool(&postgres.PostgresConfig{
		Host:              cfg.Store.Host,
		Port:              cfg.Store.Port,
		Database:          cfg.Store.Database,
		User:              cfg.Store.User,
		Password:          cfg.Store.Password,
		SSLMode:           cfg.Store.SSLMode,
		MaxConns:          cfg.Store.MaxConns,
		MinConns:          cfg.Store.MinConns,
		MaxConnLifetime:   cfg.Store.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Store.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Store.HealthCheckPeriod,
		ConnectTimeout:    cfg.Store.ConnectTimeout,
	}, log)

	if err := pool.Connect(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("connect to store: %w", err)
	}
	return pool, log, nil
}
