package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// Status represents the lifecycle state of a patient record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeceased Status = "deceased"
)

type ContactInfo struct {
	Phone   string `gorm:"column:phone;type:varchar(20)" json:"phone,omitempty"`
	Email   string `gorm:"column:email;type:varchar(255)" json:"email,omitempty"`
	Address string `gorm:"column:address;type:text" json:"address,omitempty"`
	City    string `gorm:"column:city;type:varchar(100)" json:"city,omitempty"`
}

// Insurance is the cover on file; claims copy provider and policy from it
// when the request leaves them blank.
type Insurance struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policy_number"`
	MemberName   string `json:"member_name,omitempty"`
}

type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	FirstName   string    `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName    string    `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	DateOfBirth time.Time `gorm:"column:date_of_birth;not null" json:"date_of_birth"`
	Gender      Gender    `gorm:"column:gender;type:varchar(20);not null" json:"gender"`
	NationalID  string    `gorm:"column:national_id;type:varchar(50);uniqueIndex" json:"national_id"`

	ContactInfo

	Insurance *Insurance `gorm:"column:insurance;serializer:json" json:"insurance,omitempty"`

	Status Status `gorm:"column:status;type:varchar(20);default:'active';index" json:"status"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (Patient) TableName() string {
	return "clinical.patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) IsActive() bool {
	return p.Status == StatusActive
}

type CreatePatientCommand struct {
	FirstName   string    `validate:"required,max=100"`
	LastName    string    `validate:"required,max=100"`
	DateOfBirth time.Time `validate:"required"`
	Gender      Gender    `validate:"required"`
	NationalID  string    `validate:"required,max=50"`
	Phone       string    `validate:"max=20"`
	Email       string    `validate:"omitempty,email"`
	Address     string
	City        string `validate:"max=100"`
	Insurance   *Insurance
	CreatedBy   uuid.UUID
}
