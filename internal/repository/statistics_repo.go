package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/vcheck/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatisticsRepository handles the per-client learning statistics rollup.
type StatisticsRepository struct {
	db *gorm.DB
}

// NewStatisticsRepository creates a new StatisticsRepository.
func NewStatisticsRepository(db *gorm.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Get returns the client's statistics, or nil when none exist.
func (r *StatisticsRepository) Get(ctx context.Context, clientID string) (*domain.LearningStatistics, error) {
	var stats domain.LearningStatistics
	err := r.db.WithContext(ctx).First(&stats, "client_id = ?", clientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load learning statistics: %w", err)
	}
	return &stats, nil
}

// Upsert replaces the client's row wholesale.
func (r *StatisticsRepository) Upsert(ctx context.Context, stats *domain.LearningStatistics) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		UpdateAll: true,
	}).Create(stats).Error
}

// Delete removes the client's row; a missing row is not an error.
func (r *StatisticsRepository) Delete(ctx context.Context, clientID string) error {
	return r.db.WithContext(ctx).Delete(&domain.LearningStatistics{}, "client_id = ?", clientID).Error
}
