package appointment

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentType decides which consultation fee applies when the
// appointment is billed.
type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow-up"
	TypeEmergency    AppointmentType = "emergency"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency:
		return true
	}
	return false
}

// State transitions:
//
//	scheduled → confirmed → in_progress → completed
//	scheduled → cancelled
//	confirmed → cancelled
//	confirmed → no_show
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`

	// Department is free text from the booking form ("Cardiology", "Dental").
	// Fee resolution prefers price list entries that mention it.
	Department string `gorm:"column:department;type:varchar(100)" json:"department,omitempty"`

	ScheduledAt  time.Time         `gorm:"column:scheduled_at;not null;index" json:"scheduled_at"`
	DurationMins int               `gorm:"column:duration_mins;not null;default:30" json:"duration_mins"`
	Type         AppointmentType   `gorm:"column:type;type:varchar(30);not null;index" json:"type"`
	Status       AppointmentStatus `gorm:"column:status;type:varchar(30);not null;default:'scheduled';index" json:"status"`

	ChiefComplaint string `gorm:"column:chief_complaint;type:text" json:"chief_complaint,omitempty"`
	Notes          string `gorm:"column:notes;type:text" json:"notes,omitempty"`

	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMins) * time.Minute)
}

func (a *Appointment) CanTransitionTo(newStatus AppointmentStatus) bool {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusScheduled:  {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusInProgress, StatusNoShow, StatusCancelled},
		StatusInProgress: {StatusCompleted},
	}

	for _, s := range allowed[a.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

func (a *Appointment) Cancel(reason string) error {
	if !a.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = reason
	return nil
}

func (a *Appointment) Complete() error {
	if !a.CanTransitionTo(StatusCompleted) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCompleted
	a.CompletedAt = &now
	return nil
}

type CreateAppointmentCommand struct {
	PatientID      uuid.UUID       `validate:"required"`
	DoctorID       uuid.UUID       `validate:"required"`
	Department     string          `validate:"max=100"`
	ScheduledAt    time.Time       `validate:"required"`
	DurationMins   int             `validate:"omitempty,min=5,max=480"`
	Type           AppointmentType `validate:"required"`
	ChiefComplaint string
	Notes          string
	CreatedBy      uuid.UUID
}
