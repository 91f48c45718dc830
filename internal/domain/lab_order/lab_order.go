package lab_order

import (
	"time"

	"github.com/google/uuid"
)

// State transitions:
//
//	ordered → in_progress → completed
//	ordered → completed
//	ordered | in_progress → cancelled
type Status string

const (
	StatusOrdered    Status = "ordered"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type LabOrder struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID       uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	DoctorID        uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`
	MedicalRecordID uuid.UUID `gorm:"column:medical_record_id;type:uuid;not null;index" json:"medical_record_id"`

	TestName     string `gorm:"column:test_name;type:varchar(255);not null" json:"test_name"`
	Instructions string `gorm:"column:instructions;type:text" json:"instructions,omitempty"`

	Status      Status     `gorm:"column:status;type:varchar(30);not null;default:'ordered';index" json:"status"`
	Results     string     `gorm:"column:results;type:text" json:"results,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CompletedBy *uuid.UUID `gorm:"column:completed_by;type:uuid" json:"completed_by,omitempty"`
}

func (LabOrder) TableName() string {
	return "clinical.lab_orders"
}

func (o *LabOrder) CanTransitionTo(next Status) bool {
	switch o.Status {
	case StatusOrdered:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

func (o *LabOrder) Complete(results string, by uuid.UUID) error {
	if !o.CanTransitionTo(StatusCompleted) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	o.Status = StatusCompleted
	o.Results = results
	o.CompletedAt = &now
	o.CompletedBy = &by
	return nil
}

type CompleteLabOrderCommand struct {
	Results     string `validate:"max=10000"`
	CompletedBy uuid.UUID
}
