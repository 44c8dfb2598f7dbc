package storage

import (
	"context"
	"fmt"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

var _ job.SettingsRepoInterface = (*SettingsRepository)(nil)

// Load returns every persisted setting keyed by name.
func (r *SettingsRepository) Load(ctx context.Context) (map[string]string, error) {
	var rows []models.Setting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Name] = row.Value
	}
	return values, nil
}

// Settings rebuilds the settings record from the persisted values, falling
// back to defaults for keys that were never set.
func (r *SettingsRepository) Settings(ctx context.Context) (config.Settings, error) {
	values, err := r.Load(ctx)
	if err != nil {
		return config.Settings{}, err
	}

	s, err := config.FromValues(values)
	if err != nil {
		return config.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// Save upserts one setting.
func (r *SettingsRepository) Save(ctx context.Context, key, value string) error {
	row := models.Setting{Name: key, Value: value, UpdatedAt: models.Now()}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}
