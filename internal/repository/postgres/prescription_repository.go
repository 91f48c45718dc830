package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

func (r *PrescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	var p prescription.Prescription
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, prescription.ErrPrescriptionNotFound)
	}
	return &p, nil
}

func (r *PrescriptionRepository) UpdateStatus(ctx context.Context, p *prescription.Prescription) error {
	res := r.db.WithContext(ctx).
		Model(p).
		Select("status", "dispensed_at", "dispensed_by").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("updating prescription status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return prescription.ErrPrescriptionNotFound
	}
	return nil
}
