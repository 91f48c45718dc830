package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("inserting appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, appointment.ErrAppointmentNotFound)
	}
	return &a, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	res := r.db.WithContext(ctx).
		Model(a).
		Select("status", "cancelled_at", "cancellation_reason", "completed_at").
		Updates(a)
	if res.Error != nil {
		return fmt.Errorf("updating appointment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *AppointmentRepository) HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("doctor_id = ?", doctorID).
		Where("status NOT IN ?", []appointment.AppointmentStatus{appointment.StatusCancelled, appointment.StatusNoShow}).
		Where("scheduled_at < ?", end).
		Where("scheduled_at + make_interval(mins => duration_mins) > ?", start)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking appointment conflict: %w", err)
	}
	return count > 0, nil
}

func (r *AppointmentRepository) ListUnbilled(ctx context.Context, limit int) ([]*appointment.Appointment, error) {
	var out []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("status <> ?", appointment.StatusCancelled).
		Where(unbilled("clinical.appointments"), billing.SourceAppointment, billing.SourceAppointment).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing unbilled appointments: %w", err)
	}
	return out, nil
}

// unbilled matches rows of table that no bill or bill line references as its
// source. Both placeholders take the source kind.
func unbilled(table string) string {
	return fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM billing.bills b WHERE b.source_kind = ? AND b.source_id = %[1]s.id)
	AND NOT EXISTS (SELECT 1 FROM billing.bill_items i WHERE i.source_kind = ? AND i.source_id = %[1]s.id)`, table)
}
