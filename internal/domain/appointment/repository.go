package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	UpdateStatus(ctx context.Context, a *Appointment) error

	// HasConflict checks whether a doctor already has an appointment that overlaps.
	HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)

	// ListUnbilled returns non-cancelled appointments that no bill references
	// yet, oldest first. Used by the autobilling sweep.
	ListUnbilled(ctx context.Context, limit int) ([]*Appointment, error)
}
