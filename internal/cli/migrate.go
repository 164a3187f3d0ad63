package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded SQL migrations against POSTGRES_DSN.`,
	}
	for _, sub := range []struct {
		command persistence.MigrationCommand
		short   string
	}{
		{persistence.MigrateUp, "Apply all pending migrations"},
		{persistence.MigrateDown, "Roll back the most recent migration"},
		{persistence.MigrateStatus, "Print the migration status"},
	} {
		command := sub.command
		cmd.AddCommand(&cobra.Command{
			Use:   string(command),
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if cfg.Postgres.DSN == "" {
					return errors.New("POSTGRES_DSN is required for migrations")
				}
				logger, err := observability.NewLogger(cfg.Logger, cfg.App)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				defer logger.Sync() //nolint:errcheck

				pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
				if err != nil {
					return fmt.Errorf("connect postgres: %w", err)
				}
				defer pg.Close()
				return persistence.Migrate(cmd.Context(), pg.PoolHandle(), command, logger)
			},
		})
	}
	return cmd
}
