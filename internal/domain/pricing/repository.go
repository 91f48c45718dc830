package pricing

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *ServicePrice) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServicePrice, error)
	Update(ctx context.Context, p *ServicePrice) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q *ListPricesQuery) ([]*ServicePrice, int64, error)

	// Catalog returns the whole price list in published order.
	Catalog(ctx context.Context) (Catalog, error)

	// Upsert inserts or updates by (category, service_name) and reports whether a row was created.
	Upsert(ctx context.Context, p *ServicePrice) (bool, error)
}
