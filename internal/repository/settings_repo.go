package repository

import (
	"context"
	"fmt"

	"github.com/timmy/vcheck/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository handles per-client check settings.
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetOrCreate returns the client's settings, inserting defaults first when
// the client has none. This read has a write side effect.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - defaults: row to insert when absent; its ClientID selects the client.
//
// Returns:
//   - *domain.VideoCheckSettings: the stored settings.
//   - error: non-nil if the insert or lookup fails.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, defaults domain.VideoCheckSettings) (*domain.VideoCheckSettings, error) {
	db := r.db.WithContext(ctx)

	// DO NOTHING keeps concurrent first reads from failing on the primary key.
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
		return nil, fmt.Errorf("failed to materialize check settings: %w", err)
	}

	var settings domain.VideoCheckSettings
	if err := db.First(&settings, "client_id = ?", defaults.ClientID).Error; err != nil {
		return nil, fmt.Errorf("failed to load check settings: %w", err)
	}
	return &settings, nil
}

// Get retrieves settings without creating them.
func (r *SettingsRepository) Get(ctx context.Context, clientID string) (*domain.VideoCheckSettings, error) {
	var settings domain.VideoCheckSettings
	if err := r.db.WithContext(ctx).First(&settings, "client_id = ?", clientID).Error; err != nil {
		return nil, notFound(err, "check settings", clientID)
	}
	return &settings, nil
}

// UpdateFields applies a partial update to an existing settings row.
func (r *SettingsRepository) UpdateFields(ctx context.Context, clientID string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.VideoCheckSettings{}).
		Where("client_id = ?", clientID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update check settings: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("check settings %s: %w", clientID, domain.ErrNotFound)
	}
	return nil
}
