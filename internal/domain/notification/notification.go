package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeBilling   Type = "billing"
	TypeInsurance Type = "insurance"
	TypeLab       Type = "lab"
	TypeSystem    Type = "system"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	UserIDs []string `gorm:"column:user_ids;type:jsonb;serializer:json;not null" json:"user_ids"`
	Type    Type     `gorm:"column:type;type:varchar(20);not null;index" json:"type"`
	Title   string   `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Message string   `gorm:"column:message;type:text;not null" json:"message"`
	Read    bool     `gorm:"column:read;not null;default:false" json:"read"`

	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (Notification) TableName() string {
	return "billing.notifications"
}

// Sink delivers notifications without acknowledgement. Implementations must
// not block the caller on delivery.
type Sink interface {
	Notify(ctx context.Context, n *Notification)
}

type Repository interface {
	Create(ctx context.Context, n *Notification) error
}
