package database

import (
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/insurance"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		PrepareStmt:            true,
		TranslateError:         false,
		SkipDefaultTransaction: false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DNS(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "billing", "audit"}
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.AuditLog{},
		&patient.Patient{},
		&appointment.Appointment{},
		&mr.MedicalRecord{},
		&prescription.Prescription{},
		&lab_order.LabOrder{},
		&pricing.ServicePrice{},
		&billing.Bill{},
		&billing.BillItem{},
		&billing.Setting{},
		&insurance.Claim{},
		&notification.Notification{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db, log); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// required indexes fail the migration; optional ones only warn.
func createIndexes(db *gorm.DB, log *zap.Logger) error {
	indexes := []struct {
		name     string
		query    string
		required bool
	}{
		// A source entity is billed at most once, whether it is the bill's
		// trigger or one of its lines.
		{
			name:     "uq_bills_source",
			query:    `CREATE UNIQUE INDEX IF NOT EXISTS uq_bills_source ON billing.bills (source_kind, source_id) WHERE source_id IS NOT NULL`,
			required: true,
		},
		{
			name:     "uq_bill_items_source",
			query:    `CREATE UNIQUE INDEX IF NOT EXISTS uq_bill_items_source ON billing.bill_items (source_kind, source_id) WHERE source_id IS NOT NULL`,
			required: true,
		},
		{
			name:  "idx_bill_items_bill_position",
			query: `CREATE INDEX IF NOT EXISTS idx_bill_items_bill_position ON billing.bill_items (bill_id, position)`,
		},
		{
			name:  "idx_service_prices_catalog_order",
			query: `CREATE INDEX IF NOT EXISTS idx_service_prices_catalog_order ON billing.service_prices (sort_order, created_at)`,
		},
		{
			name:  "idx_appointments_doctor_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_doctor_schedule ON clinical.appointments (doctor_id, scheduled_at, duration_mins) WHERE status NOT IN ('cancelled', 'no_show')`,
		},
		{
			name:  "idx_service_prices_name_trgm",
			query: `CREATE INDEX IF NOT EXISTS idx_service_prices_name_trgm ON billing.service_prices USING gin (lower(service_name) gin_trgm_ops)`,
		},
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		log.Warn("pg_trgm extension unavailable; price search falls back to sequential scans", zap.Error(err))
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			if idx.required {
				return fmt.Errorf("%s: %w", idx.name, err)
			}
			log.Warn("skipping optional index", zap.String("index", idx.name), zap.Error(err))
		}
	}

	return nil
}
