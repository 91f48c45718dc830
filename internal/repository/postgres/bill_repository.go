package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BillRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the bill and its lines together. The partial unique indexes
// on (source_kind, source_id) reject a second bill for the same source even
// when two writers race past the pre-check.
func (r *BillRepository) Create(ctx context.Context, b *billing.Bill) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(b).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrAlreadyBilled
		}
		return fmt.Errorf("inserting bill: %w", err)
	}
	return nil
}

func (r *BillRepository) GetByID(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	var b billing.Bill
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, billing.ErrBillNotFound)
	}
	return &b, nil
}

func (r *BillRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, q *billing.ListBillsQuery) ([]*billing.Bill, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&billing.Bill{}).
		Where("patient_id = ?", patientID)
	if q.Status != nil {
		base = base.Where("status = ?", *q.Status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting bills: %w", err)
	}

	var out []*billing.Bill
	err := base.
		Preload("Items", orderedItems).
		Order("created_at DESC").
		Offset(offset(q.Page, q.PageSize)).
		Limit(q.PageSize).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing bills: %w", err)
	}
	return out, total, nil
}

func (r *BillRepository) AddItem(ctx context.Context, b *billing.Bill, item *billing.BillItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item.BillID = b.ID
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return tx.Model(b).
			Select("subtotal", "tax", "discount", "total").
			Updates(b).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrAlreadyBilled
		}
		return fmt.Errorf("adding bill item: %w", err)
	}
	return nil
}

func (r *BillRepository) UpdateStatus(ctx context.Context, b *billing.Bill) error {
	res := r.db.WithContext(ctx).
		Model(b).
		Select("status", "payment_method", "paid_at").
		Updates(b)
	if res.Error != nil {
		return fmt.Errorf("updating bill status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return billing.ErrBillNotFound
	}
	return nil
}

func (r *BillRepository) BilledSources(ctx context.Context, refs ...billing.SourceRef) (billing.SourceSet, error) {
	found := billing.NewSourceSet()
	if len(refs) == 0 {
		return found, nil
	}

	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}

	var rows []struct {
		SourceKind billing.SourceKind
		SourceID   uuid.UUID
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT source_kind, source_id FROM billing.bills WHERE source_id IN ?
		UNION
		SELECT source_kind, source_id FROM billing.bill_items WHERE source_id IN ?`,
		ids, ids,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("looking up billed sources: %w", err)
	}

	wanted := billing.NewSourceSet(refs...)
	for _, row := range rows {
		ref := billing.SourceRef{Kind: row.SourceKind, ID: row.SourceID}
		if wanted.Has(ref) {
			found.Add(ref)
		}
	}
	return found, nil
}
