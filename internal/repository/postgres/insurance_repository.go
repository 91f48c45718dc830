package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/insurance"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InsuranceRepository struct {
	db *gorm.DB
}

func NewInsuranceRepository(db *gorm.DB) *InsuranceRepository {
	return &InsuranceRepository{db: db}
}

func (r *InsuranceRepository) Create(ctx context.Context, c *insurance.Claim) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("inserting insurance claim: %w", err)
	}
	return nil
}

func (r *InsuranceRepository) GetByID(ctx context.Context, id uuid.UUID) (*insurance.Claim, error) {
	var c insurance.Claim
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, insurance.ErrClaimNotFound)
	}
	return &c, nil
}

func (r *InsuranceRepository) Update(ctx context.Context, c *insurance.Claim) error {
	err := r.db.WithContext(ctx).
		Model(c).
		Select("status", "submission_date", "approval_date", "approved_amount", "rejection_reason", "notes").
		Updates(c).Error
	if err != nil {
		return fmt.Errorf("updating insurance claim: %w", err)
	}
	return nil
}
