package insurance

import (
	"time"

	"github.com/google/uuid"
)

// State transitions:
//
//	pending → submitted → approved → paid
//	pending | submitted → rejected
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}

type Claim struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	BillID    uuid.UUID `gorm:"column:bill_id;type:uuid;not null;index" json:"bill_id"`

	Provider     string `gorm:"column:provider;type:varchar(100);not null" json:"provider"`
	PolicyNumber string `gorm:"column:policy_number;type:varchar(100);not null" json:"policy_number"`
	ClaimAmount  int64  `gorm:"column:claim_amount;not null" json:"claim_amount"`

	Status          Status     `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
	SubmissionDate  *time.Time `gorm:"column:submission_date" json:"submission_date,omitempty"`
	ApprovalDate    *time.Time `gorm:"column:approval_date" json:"approval_date,omitempty"`
	ApprovedAmount  *int64     `gorm:"column:approved_amount" json:"approved_amount,omitempty"`
	RejectionReason string     `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	Notes           string     `gorm:"column:notes;type:text" json:"notes,omitempty"`

	SubmittedBy *uuid.UUID `gorm:"column:submitted_by;type:uuid" json:"submitted_by,omitempty"`
}

func (Claim) TableName() string {
	return "billing.insurance_claims"
}

func (c *Claim) CanTransitionTo(next Status) bool {
	switch c.Status {
	case StatusPending:
		return next == StatusSubmitted || next == StatusRejected
	case StatusSubmitted:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusPaid
	}
	return false
}

func (c *Claim) Submit(at time.Time) error {
	if !c.CanTransitionTo(StatusSubmitted) {
		return ErrInvalidStatusTransition
	}
	c.Status = StatusSubmitted
	c.SubmissionDate = &at
	return nil
}

// Transition moves the claim to next. Approval stamps the approval date and
// defaults the approved amount to the claimed amount; rejection needs a reason.
func (c *Claim) Transition(cmd UpdateClaimStatusCommand, at time.Time) error {
	if !c.CanTransitionTo(cmd.Status) {
		return ErrInvalidStatusTransition
	}
	switch cmd.Status {
	case StatusSubmitted:
		c.SubmissionDate = &at
	case StatusApproved:
		amount := c.ClaimAmount
		if cmd.ApprovedAmount != nil {
			if *cmd.ApprovedAmount < 0 || *cmd.ApprovedAmount > c.ClaimAmount {
				return ErrInvalidAmount
			}
			amount = *cmd.ApprovedAmount
		}
		c.ApprovalDate = &at
		c.ApprovedAmount = &amount
	case StatusRejected:
		if cmd.RejectionReason == "" {
			return ErrRejectionReasonRequired
		}
		c.RejectionReason = cmd.RejectionReason
	}
	c.Status = cmd.Status
	if cmd.Notes != "" {
		c.Notes = cmd.Notes
	}
	return nil
}

type SubmitClaimCommand struct {
	BillID       uuid.UUID `validate:"required"`
	Provider     string    `validate:"max=100"`
	PolicyNumber string    `validate:"max=100"`
	ClaimAmount  *int64    `validate:"omitempty,gt=0"`
	Notes        string
	SubmittedBy  uuid.UUID
}

type UpdateClaimStatusCommand struct {
	ClaimID         uuid.UUID
	Status          Status `validate:"required"`
	ApprovedAmount  *int64
	RejectionReason string `validate:"max=2000"`
	Notes           string
}
