package main

import (
	"fmt"
	"os"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importPricesCmd = &cobra.Command{
	Use:   "import-prices <file.csv>",
	Short: "Load the hospital price list from CSV",
	Long: `Reads a hospital price list export and upserts every row by
(category, service name). Both the sectioned layout (a section header line
followed by "name,price" rows) and the flat "Code,Service,Price,Category"
layout are accepted. Rows that cannot be parsed are reported and skipped.`,
	Example: `  medbill import-prices ./prices/2025-price-list.csv`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImportPrices,
}

func init() {
	rootCmd.AddCommand(importPricesCmd)
	importPricesCmd.Flags().Bool("strict", false, "Exit non-zero if any row was rejected")
}

func runImportPrices(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening price list: %w", err)
	}
	defer f.Close()

	db, closeDB, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	m := metrics.NewCollector(cfg.App.Name, prometheus.NewRegistry())
	auditSvc := service.NewAuditService(postgres.NewAuditRepository(db), m, log)
	defer auditSvc.Shutdown()

	prices := service.NewPriceService(postgres.NewPriceRepository(db), auditSvc, m, log)
	res, err := prices.ImportPriceList(cmd.Context(), f, uuid.Nil, string(domain.SystemRole))
	if err != nil {
		return err
	}

	for _, r := range res.Rejected {
		log.Warn("price row rejected", zap.String("detail", r))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "parsed %d, created %d, updated %d, rejected %d\n",
		res.Parsed, res.Created, res.Updated, len(res.Rejected))

	if strict && len(res.Rejected) > 0 {
		return fmt.Errorf("%d rows rejected", len(res.Rejected))
	}
	return nil
}
