package postgres

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain"
	"gorm.io/gorm"
)

// AuditRepository is append-only.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
