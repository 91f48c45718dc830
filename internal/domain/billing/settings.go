package billing

import (
	"time"

	"gorm.io/datatypes"
)

const AutobillingSettingKey = "autobilling"

// Setting is a named JSON document of runtime configuration.
type Setting struct {
	Key       string         `gorm:"column:key;type:varchar(100);primaryKey"`
	Value     datatypes.JSON `gorm:"column:value;type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (Setting) TableName() string {
	return "billing.settings"
}
