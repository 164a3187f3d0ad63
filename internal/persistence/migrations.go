package persistence

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationCommand selects the goose operation to run.
type MigrationCommand string

const (
	MigrateUp     MigrationCommand = "up"
	MigrateDown   MigrationCommand = "down"
	MigrateStatus MigrationCommand = "status"
)

// RunMigrations applies every pending embedded migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return Migrate(ctx, pool, MigrateUp, logger)
}

// Migrate executes cmd against the database behind pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cmd MigrationCommand, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	logger.Info("running migrations", zap.String("command", string(cmd)))
	switch cmd {
	case MigrateUp:
		err := goose.UpContext(ctx, db, migrationsDir)
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case MigrateDown:
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case MigrateStatus:
		if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
	default:
		return fmt.Errorf("unknown migration command %q", cmd)
	}
	return nil
}
