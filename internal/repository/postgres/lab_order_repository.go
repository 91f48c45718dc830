package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LabOrderRepository struct {
	db *gorm.DB
}

func NewLabOrderRepository(db *gorm.DB) *LabOrderRepository {
	return &LabOrderRepository{db: db}
}

func (r *LabOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*lab_order.LabOrder, error) {
	var o lab_order.LabOrder
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, notFound(err, lab_order.ErrLabOrderNotFound)
	}
	return &o, nil
}

func (r *LabOrderRepository) UpdateStatus(ctx context.Context, o *lab_order.LabOrder) error {
	res := r.db.WithContext(ctx).
		Model(o).
		Select("status", "results", "completed_at", "completed_by").
		Updates(o)
	if res.Error != nil {
		return fmt.Errorf("updating lab order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return lab_order.ErrLabOrderNotFound
	}
	return nil
}
