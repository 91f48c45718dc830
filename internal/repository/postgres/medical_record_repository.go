package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	mr "github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/medical_record"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MedicalRecordRepository struct {
	db *gorm.DB
}

func NewMedicalRecordRepository(db *gorm.DB) *MedicalRecordRepository {
	return &MedicalRecordRepository{db: db}
}

// Create inserts the record and, through gorm associations, its
// prescriptions and lab orders in the same transaction.
func (r *MedicalRecordRepository) Create(ctx context.Context, rec *mr.MedicalRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("inserting medical record: %w", err)
	}
	return nil
}

func (r *MedicalRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*mr.MedicalRecord, error) {
	var rec mr.MedicalRecord
	err := r.db.WithContext(ctx).
		Preload("Prescriptions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("LabOrders", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, mr.ErrRecordNotFound)
	}
	return &rec, nil
}

func (r *MedicalRecordRepository) ListUnbilled(ctx context.Context, limit int) ([]*mr.MedicalRecord, error) {
	var out []*mr.MedicalRecord
	err := r.db.WithContext(ctx).
		Where(unbilled("clinical.medical_records"), billing.SourceMedicalRecord, billing.SourceMedicalRecord).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing unbilled medical records: %w", err)
	}
	return out, nil
}
