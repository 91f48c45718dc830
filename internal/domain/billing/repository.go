package billing

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores the bill and its lines in one transaction. Returns
	// ErrAlreadyBilled when the bill source or any line source is already
	// on another bill.
	Create(ctx context.Context, b *Bill) error

	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, q *ListBillsQuery) ([]*Bill, int64, error)

	// AddItem stores a new line together with the bill's recalculated totals.
	AddItem(ctx context.Context, b *Bill, item *BillItem) error

	UpdateStatus(ctx context.Context, b *Bill) error

	// BilledSources returns the subset of refs that appear on any bill,
	// either as the bill source or as a line source.
	BilledSources(ctx context.Context, refs ...SourceRef) (SourceSet, error)
}

// SettingsRepository persists the runtime autobilling configuration.
type SettingsRepository interface {
	// LoadAutobilling reports false when nothing has been stored yet.
	LoadAutobilling(ctx context.Context) (AutobillingConfig, bool, error)
	SaveAutobilling(ctx context.Context, cfg AutobillingConfig) error
}
