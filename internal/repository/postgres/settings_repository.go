package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medbill/internal/domain/billing"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) LoadAutobilling(ctx context.Context) (billing.AutobillingConfig, bool, error) {
	var s billing.Setting
	err := r.db.WithContext(ctx).First(&s, "key = ?", billing.AutobillingSettingKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.AutobillingConfig{}, false, nil
	}
	if err != nil {
		return billing.AutobillingConfig{}, false, fmt.Errorf("loading autobilling settings: %w", err)
	}

	var cfg billing.AutobillingConfig
	if err := json.Unmarshal(s.Value, &cfg); err != nil {
		return billing.AutobillingConfig{}, false, fmt.Errorf("decoding autobilling settings: %w", err)
	}
	return cfg, true, nil
}

func (r *SettingsRepository) SaveAutobilling(ctx context.Context, cfg billing.AutobillingConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding autobilling settings: %w", err)
	}

	s := billing.Setting{Key: billing.AutobillingSettingKey, Value: datatypes.JSON(raw)}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&s).Error
	if err != nil {
		return fmt.Errorf("saving autobilling settings: %w", err)
	}
	return nil
}
