package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trunov/convo/cmd/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the job store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is not configured")
		}
		if err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}
