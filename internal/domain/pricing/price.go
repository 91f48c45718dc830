package pricing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ServicePrice is one entry of the hospital price list. Prices are whole
// units of the local currency.
type ServicePrice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Code        string   `gorm:"column:code;type:varchar(50);index" json:"code,omitempty"`
	Category    Category `gorm:"column:category;type:varchar(30);not null;uniqueIndex:uq_service_prices_category_name" json:"category"`
	ServiceName string   `gorm:"column:service_name;type:varchar(255);not null;uniqueIndex:uq_service_prices_category_name" json:"service_name"`
	Price       int64    `gorm:"column:price;not null" json:"price"`
	Description string   `gorm:"column:description;type:text" json:"description,omitempty"`

	// SortOrder preserves the position of the entry in the published price
	// list. Catalog scans run in this order, so it decides ties.
	SortOrder int `gorm:"column:sort_order;not null;default:0;index" json:"sort_order"`

	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (ServicePrice) TableName() string {
	return "billing.service_prices"
}

type CreatePriceCommand struct {
	Code        string            `validate:"max=50"`
	Category    Category          `validate:"required"`
	ServiceName string            `validate:"required,max=255"`
	Price       int64             `validate:"gte=0"`
	Description string            `validate:"max=2000"`
	Metadata    map[string]any
}

type UpdatePriceCommand struct {
	Code        *string
	Category    *Category
	ServiceName *string
	Price       *int64
	Description *string
}

type ListPricesQuery struct {
	Category Category
	Search   string
	Page     int
	PageSize int
}
