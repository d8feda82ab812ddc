package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/amurex/inboxtagger/internal/logging"
	"github.com/amurex/inboxtagger/internal/store"
)

var migrateCommands = []string{"up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version"}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Manage the Postgres schema",
		Long: `Apply or inspect the schema migrations. The database is taken from
DATABASE_URL or database.url in the config file.`,
		Args:      validateMigrateArgs,
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database url is required (DATABASE_URL)")
			}

			pg, err := store.NewPostgres(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := pg.Close(); err != nil {
					logger.Error("error closing database", logging.Err(err))
				}
			}()

			return pg.Migrate(cmd.Context(), args[0], args[1:]...)
		},
	}
}

func validateMigrateArgs(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("a migration command is required")
	}
	if !slices.Contains(migrateCommands, args[0]) {
		return fmt.Errorf("unknown migration command %q", args[0])
	}
	return nil
}
