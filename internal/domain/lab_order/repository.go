package lab_order

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*LabOrder, error)
	UpdateStatus(ctx context.Context, o *LabOrder) error
}
