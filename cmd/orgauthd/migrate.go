package main

import (
	"fmt"

	auth "github.com/goliatone/go-orgauth"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		applied, err := auth.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}

		if len(applied) == 0 {
			logger.Info("no new migrations to apply")
			return nil
		}
		for _, name := range applied {
			logger.Info("applied migration %s", name)
		}
		return nil
	},
}
