package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/pricing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PriceRepository struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

func (r *PriceRepository) Create(ctx context.Context, p *pricing.ServicePrice) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return pricing.ErrDuplicateService
		}
		return fmt.Errorf("inserting service price: %w", err)
	}
	return nil
}

func (r *PriceRepository) GetByID(ctx context.Context, id uuid.UUID) (*pricing.ServicePrice, error) {
	var p pricing.ServicePrice
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, pricing.ErrPriceNotFound)
	}
	return &p, nil
}

func (r *PriceRepository) Update(ctx context.Context, p *pricing.ServicePrice) error {
	err := r.db.WithContext(ctx).
		Model(p).
		Select("code", "category", "service_name", "price", "description").
		Updates(p).Error
	if err != nil {
		if isUniqueViolation(err) {
			return pricing.ErrDuplicateService
		}
		return fmt.Errorf("updating service price: %w", err)
	}
	return nil
}

func (r *PriceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&pricing.ServicePrice{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting service price: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pricing.ErrPriceNotFound
	}
	return nil
}

func (r *PriceRepository) List(ctx context.Context, q *pricing.ListPricesQuery) ([]*pricing.ServicePrice, int64, error) {
	base := r.db.WithContext(ctx).Model(&pricing.ServicePrice{})
	if q.Category != pricing.AnyCategory {
		base = base.Where("category = ?", q.Category)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		base = base.Where("lower(service_name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting service prices: %w", err)
	}

	var out []*pricing.ServicePrice
	err := base.
		Order("category ASC").
		Order("sort_order ASC").
		Order("created_at ASC").
		Offset(offset(q.Page, q.PageSize)).
		Limit(q.PageSize).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing service prices: %w", err)
	}
	return out, total, nil
}

func (r *PriceRepository) Catalog(ctx context.Context) (pricing.Catalog, error) {
	var rows []pricing.ServicePrice
	err := r.db.WithContext(ctx).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading price catalog: %w", err)
	}
	return pricing.Catalog(rows), nil
}

func (r *PriceRepository) Upsert(ctx context.Context, p *pricing.ServicePrice) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing pricing.ServicePrice
		err := tx.Where("category = ? AND service_name = ?", p.Category, p.ServiceName).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(p).Error
		case err != nil:
			return err
		}

		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		if p.Description == "" {
			p.Description = existing.Description
		}
		return tx.Model(p).
			Select("code", "price", "sort_order", "description", "metadata").
			Updates(p).Error
	})
	if err != nil {
		return false, fmt.Errorf("upserting service price %q: %w", p.ServiceName, err)
	}
	return created, nil
}
