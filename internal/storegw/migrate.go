package storegw

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw/postgres"
)

// RunMigrations applies every pending migration in migrationsDir: the
// upstream read schema and the reconciler's own tables (sync_status,
// sync_log).
func RunMigrations(ctx context.Context, pool postgres.DatabaseConnection, migrationsDir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if migrationsDir == "" {
		migrationsDir = filepath.Join("migrations")
	}

	logger.Info("starting database migrations", "dir", migrationsDir)

	db, err := createSQLDBFromPool(pool)
	if err != nil {
		logger.Error("failed to create SQL DB from pool", "error", err)
		return fmt.Errorf("failed to create SQL DB: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("failed to set goose dialect", "error", err)
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database migrations completed")
	return nil
}

// RunMigrationsDown rolls back the given number of migration steps.
func RunMigrationsDown(ctx context.Context, pool postgres.DatabaseConnection, migrationsDir string, steps int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if migrationsDir == "" {
		migrationsDir = filepath.Join("migrations")
	}

	logger.Info("rolling back database migrations", "steps", steps)

	db, err := createSQLDBFromPool(pool)
	if err != nil {
		logger.Error("failed to create SQL DB from pool", "error", err)
		return fmt.Errorf("failed to create SQL DB: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("failed to set goose dialect", "error", err)
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	for i := 0; i < steps; i++ {
		if err := goose.Down(db, migrationsDir); err != nil {
			logger.Error("failed to roll back migrations", "error", err, "steps", steps, "rolled_back", i)
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
	}

	logger.Info("database migration rollback completed", "steps", steps)
	return nil
}

// GetMigrationStatus logs the current migration status.
func GetMigrationStatus(ctx context.Context, pool postgres.DatabaseConnection, migrationsDir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if migrationsDir == "" {
		migrationsDir = filepath.Join("migrations")
	}

	db, err := createSQLDBFromPool(pool)
	if err != nil {
		logger.Error("failed to create SQL DB from pool", "error", err)
		return fmt.Errorf("failed to create SQL DB: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("failed to set goose dialect", "error", err)
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Status(db, migrationsDir); err != nil {
		logger.Error("failed to get migration status", "error", err)
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	return nil
}

// createSQLDBFromPool bridges the pgxpool-backed connection to a
// database/sql.DB, which goose requires.
func createSQLDBFromPool(pool postgres.DatabaseConnection) (*sql.DB, error) {
	pgPool, ok := pool.(*postgres.PostgresPool)
	if !ok {
		return nil, fmt.Errorf("unsupported pool type for migrations")
	}

	config := pgPool.GetConfig()

	db, err := sql.Open("pgx", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL DB: %w", err)
	}

	db.SetMaxOpenConns(int(config.MaxConns))
	db.SetMaxIdleConns(int(config.MinConns))
	db.SetConnMaxLifetime(config.MaxConnLifetime)
	db.SetConnMaxIdleTime(config.MaxConnIdleTime)

	return db, nil
}
