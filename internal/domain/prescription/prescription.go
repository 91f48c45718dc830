package prescription

import (
	"time"

	"github.com/google/uuid"
)

type PrescriptionStatus string

const (
	StatusActive    PrescriptionStatus = "active"
	StatusDispensed PrescriptionStatus = "dispensed"
	StatusCancelled PrescriptionStatus = "cancelled"
)

type Prescription struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID       uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	DoctorID        uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`
	MedicalRecordID uuid.UUID `gorm:"column:medical_record_id;type:uuid;not null;index" json:"medical_record_id"`

	MedicationName  string `gorm:"column:medication_name;type:varchar(255);not null;index" json:"medication_name"`
	DosageAmount    string `gorm:"column:dosage_amount;type:varchar(50)" json:"dosage_amount,omitempty"`       // e.g. "500mg"
	DosageFrequency string `gorm:"column:dosage_frequency;type:varchar(100)" json:"dosage_frequency,omitempty"` // e.g. "twice daily"
	Duration        string `gorm:"column:duration;type:varchar(100)" json:"duration,omitempty"`                 // e.g. "7 days"
	Quantity        int    `gorm:"column:quantity;not null;default:1" json:"quantity"`
	Instructions    string `gorm:"column:instructions;type:text" json:"instructions,omitempty"`

	Status      PrescriptionStatus `gorm:"column:status;type:varchar(30);not null;default:'active';index" json:"status"`
	DispensedAt *time.Time         `gorm:"column:dispensed_at" json:"dispensed_at,omitempty"`
	DispensedBy *uuid.UUID         `gorm:"column:dispensed_by;type:uuid" json:"dispensed_by,omitempty"`
}

func (Prescription) TableName() string {
	return "clinical.prescriptions"
}

// BillableQuantity is the number of units to charge; unset quantities bill once.
func (p *Prescription) BillableQuantity() int {
	if p.Quantity < 1 {
		return 1
	}
	return p.Quantity
}

func (p *Prescription) Dispense(by uuid.UUID) error {
	if p.Status != StatusActive {
		return ErrNotDispensable
	}
	now := time.Now()
	p.Status = StatusDispensed
	p.DispensedAt = &now
	p.DispensedBy = &by
	return nil
}
