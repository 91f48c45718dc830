package medical_record

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/lab_order"
	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/prescription"
	"github.com/google/uuid"
)

type RecordType string

const (
	TypeSOAP             RecordType = "soap"
	TypeDischargeSummary RecordType = "discharge_summary"
	TypeProcedureNote    RecordType = "procedure_note"
	TypeProgressNote     RecordType = "progress_note"
)

func (t RecordType) IsValid() bool {
	switch t {
	case TypeSOAP, TypeDischargeSummary, TypeProcedureNote, TypeProgressNote:
		return true
	}
	return false
}

// SOAPNote represents the structured clinical note format.
type SOAPNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

type Vitals struct {
	BloodPressureSystolic  *int     `json:"bp_systolic,omitempty"`
	BloodPressureDiastolic *int     `json:"bp_diastolic,omitempty"`
	HeartRateBPM           *int     `json:"heart_rate_bpm,omitempty"`
	TemperatureCelsius     *float64 `json:"temperature_celsius,omitempty"`
	WeightKg               *float64 `json:"weight_kg,omitempty"`
}

// MedicalRecord is immutable once saved. The prescriptions and lab orders
// written during the visit are stored with it and billed with it.
type MedicalRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	PatientID     uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	AppointmentID *uuid.UUID `gorm:"column:appointment_id;type:uuid;index" json:"appointment_id,omitempty"`
	DoctorID      uuid.UUID  `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`

	Type RecordType `gorm:"column:type;type:varchar(50);not null;index" json:"type"`

	SOAPNote  *SOAPNote `gorm:"column:soap_note;serializer:json" json:"soap_note,omitempty"`
	Vitals    *Vitals   `gorm:"column:vitals;serializer:json" json:"vitals,omitempty"`
	Diagnoses []string  `gorm:"column:diagnoses;serializer:json" json:"diagnoses,omitempty"`
	Notes     string    `gorm:"column:notes;type:text" json:"notes,omitempty"`

	Prescriptions []prescription.Prescription `gorm:"foreignKey:MedicalRecordID" json:"prescriptions,omitempty"`
	LabOrders     []lab_order.LabOrder        `gorm:"foreignKey:MedicalRecordID" json:"lab_orders,omitempty"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (MedicalRecord) TableName() string {
	return "clinical.medical_records"
}

type PrescriptionLine struct {
	MedicationName  string `validate:"required,max=255"`
	DosageAmount    string `validate:"max=50"`
	DosageFrequency string `validate:"max=100"`
	Duration        string `validate:"max=100"`
	Quantity        int    `validate:"omitempty,min=1"`
	Instructions    string
}

type LabOrderLine struct {
	TestName     string `validate:"required,max=255"`
	Instructions string
}

type CreateRecordCommand struct {
	PatientID     uuid.UUID `validate:"required"`
	AppointmentID *uuid.UUID
	DoctorID      uuid.UUID  `validate:"required"`
	Type          RecordType `validate:"required"`
	SOAPNote      *SOAPNote
	Vitals        *Vitals
	Diagnoses     []string
	Notes         string
	Prescriptions []PrescriptionLine `validate:"dive"`
	LabOrders     []LabOrderLine     `validate:"dive"`
	CreatedBy     uuid.UUID
}
