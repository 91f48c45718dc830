package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	v1 "github.com/dmehra2102/prod-golang-projects/medbill/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/medbill/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the autobilling workers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", false, "Run migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	runMigrations, _ := cmd.Flags().GetBool("migrate")

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tp, err := tracer.Init(cmd.Context(), cfg.Tracing, cfg.App)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, closeDB, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	if runMigrations {
		if err := database.Migrate(db, log); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)
	app, err := wire(ctx, cfg, db, m, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		trackDBConnections(gctx, db, m)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Intake stops after HTTP so no accepted request loses its event.
		app.autobiller.Shutdown()
		app.notifications.Shutdown(cfg.Billing.ShutdownTimeout)
		app.audit.Shutdown()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

type application struct {
	router        http.Handler
	autobiller    *service.Autobiller
	notifications *service.NotificationService
	audit         *service.AuditService
}

func wire(ctx context.Context, cfg *config.Config, db *gorm.DB, m *metrics.Collector, log *zap.Logger) (*application, error) {
	patients := postgres.NewPatientRepository(db)
	appointments := postgres.NewAppointmentRepository(db)
	records := postgres.NewMedicalRecordRepository(db)
	prescriptions := postgres.NewPrescriptionRepository(db)
	labOrders := postgres.NewLabOrderRepository(db)
	prices := postgres.NewPriceRepository(db)
	bills := postgres.NewBillRepository(db)

	auditSvc := service.NewAuditService(postgres.NewAuditRepository(db), m, log)
	notifications := service.NewNotificationService(postgres.NewNotificationRepository(db), m, log)

	holder := billing.NewConfigHolder(autobillingDefaults(cfg.Billing))
	billingSvc := service.NewBillingService(service.BillingServiceDeps{
		Bills:         bills,
		Settings:      postgres.NewSettingsRepository(db),
		Prices:        prices,
		Patients:      patients,
		Appointments:  appointments,
		Records:       records,
		Prescriptions: prescriptions,
		LabOrders:     labOrders,
		Config:        holder,
		Notifier:      notifications,
		Audit:         auditSvc,
		Metrics:       m,
		Log:           log.Named("billing"),
		NotifyUserIDs: cfg.Billing.NotifyUserIDs,
		Currency:      cfg.Billing.Currency,
	})
	if err := billingSvc.LoadAutobillingConfig(ctx); err != nil {
		return nil, err
	}

	autobiller := service.NewAutobiller(service.AutobillerDeps{
		Billing:         billingSvc,
		Config:          holder,
		Appointments:    appointments,
		Records:         records,
		Notifier:        notifications,
		Metrics:         m,
		Log:             log,
		Workers:         cfg.Billing.IntakeWorkers,
		BufferSize:      cfg.Billing.IntakeBuffer,
		ShutdownTimeout: cfg.Billing.ShutdownTimeout,
		SweepBatchSize:  cfg.Billing.SweepBatchSize,
		NotifyUserIDs:   cfg.Billing.NotifyUserIDs,
	})

	clinical := v1.NewClinicalHandler(
		service.NewPatientService(patients, auditSvc, log),
		service.NewAppointmentService(appointments, patients, autobiller, auditSvc, log),
		service.NewMedicalRecordService(records, patients, autobiller, auditSvc, log),
		service.NewPrescriptionService(prescriptions, autobiller, auditSvc, log),
		service.NewLabOrderService(labOrders, autobiller, notifications, auditSvc, log),
	)

	router := v1.NewRouter(v1.RouterDeps{
		Config:    cfg,
		JWT:       auth.NewJWTManager(cfg.JWT),
		Metrics:   m,
		Log:       log,
		DB:        db,
		Prices:    v1.NewPriceHandler(service.NewPriceService(prices, auditSvc, m, log)),
		Billing:   v1.NewBillingHandler(billingSvc, autobiller),
		Insurance: v1.NewInsuranceHandler(service.NewInsuranceService(postgres.NewInsuranceRepository(db), bills, patients, notifications, auditSvc, log, cfg.Billing.NotifyUserIDs)),
		Clinical:  clinical,
	})

	return &application{
		router:        router,
		autobiller:    autobiller,
		notifications: notifications,
		audit:         auditSvc,
	}, nil
}

// autobillingDefaults seeds the runtime configuration on first start.
func autobillingDefaults(c config.BillingConfig) billing.AutobillingConfig {
	return billing.AutobillingConfig{
		Enabled:              c.AutobillEnabled,
		ForAppointments:      c.AutobillAppointments,
		ForMedicalRecords:    c.AutobillMedicalRecords,
		ForPrescriptions:     c.AutobillPrescriptions,
		ForLabOrders:         c.AutobillLabOrders,
		DefaultPaymentMethod: billing.PaymentMethod(c.AutobillPaymentMethod),
	}
}

func trackDBConnections(ctx context.Context, db *gorm.DB, m *metrics.Collector) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}
}
