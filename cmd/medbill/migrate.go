package main

import (
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create schemas, tables and billing indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, closeDB, err := openDB(cfg, log)
		if err != nil {
			return err
		}
		defer closeDB()

		return database.Migrate(db, log)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
