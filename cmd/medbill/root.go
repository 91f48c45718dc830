package main

import (
	"fmt"
	"os"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "medbill",
	Short: "Hospital billing API and autobiller",
	Long: `medbill prices clinical activity against the hospital price list and
raises bills for it, either on request or automatically as appointments,
medical records, dispensed prescriptions and completed lab orders arrive.

Configuration is read from the environment; a .env file in the working
directory is loaded first when present.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "medbill: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log, nil
}

func openDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeFn, nil
}
