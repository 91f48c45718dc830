package medical_record

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores the record together with its prescriptions and lab
	// orders in one transaction.
	Create(ctx context.Context, r *MedicalRecord) error

	// GetByID loads the record with its prescriptions and lab orders.
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)

	// ListUnbilled returns records that no bill references yet, oldest first.
	ListUnbilled(ctx context.Context, limit int) ([]*MedicalRecord, error)
}
