package repository

import (
	"context"
	"fmt"

	"github.com/timmy/vcheck/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyzedVideo pairs a video with its analysis for statistics rollups.
type AnalyzedVideo struct {
	Video    domain.LearningVideo
	Analysis domain.VideoAnalysis
}

// VideoRepository exposes the video and analysis records the engine reads.
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts a video record.
func (r *VideoRepository) Create(ctx context.Context, video *domain.LearningVideo) error {
	return r.db.WithContext(ctx).Create(video).Error
}

// GetByID retrieves a video by its ID.
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*domain.LearningVideo, error) {
	var video domain.LearningVideo
	if err := r.db.WithContext(ctx).First(&video, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "video", id)
	}
	return &video, nil
}

// GetAnalysis retrieves the analysis of a video.
func (r *VideoRepository) GetAnalysis(ctx context.Context, videoID string) (*domain.VideoAnalysis, error) {
	var analysis domain.VideoAnalysis
	if err := r.db.WithContext(ctx).First(&analysis, "video_id = ?", videoID).Error; err != nil {
		return nil, notFound(err, "video analysis", videoID)
	}
	return &analysis, nil
}

// UpsertAnalysis stores the analysis of a video, replacing any previous one.
func (r *VideoRepository) UpsertAnalysis(ctx context.Context, analysis *domain.VideoAnalysis) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cut_frequency", "pace", "telop_style", "color_scheme",
			"bgm", "structure", "raw_analysis", "updated_at",
		}),
	}).Create(analysis).Error
}

// ListAnalyzed returns every video of the client that has an analysis.
func (r *VideoRepository) ListAnalyzed(ctx context.Context, clientID string) ([]AnalyzedVideo, error) {
	var videos []domain.LearningVideo
	if err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Where("EXISTS (SELECT 1 FROM video_analyses a WHERE a.video_id = learning_videos.id)").
		Order("created_at ASC").
		Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("failed to list analyzed videos: %w", err)
	}
	if len(videos) == 0 {
		return nil, nil
	}

	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	var analyses []domain.VideoAnalysis
	if err := r.db.WithContext(ctx).Where("video_id IN ?", ids).Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}
	byVideo := make(map[string]domain.VideoAnalysis, len(analyses))
	for _, a := range analyses {
		byVideo[a.VideoID] = a
	}

	pairs := make([]AnalyzedVideo, 0, len(videos))
	for _, v := range videos {
		if a, ok := byVideo[v.ID]; ok {
			pairs = append(pairs, AnalyzedVideo{Video: v, Analysis: a})
		}
	}
	return pairs, nil
}

// Delete removes a video with its analysis and check results in one
// transaction, so a crash cannot leave orphaned matches behind.
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", id).Delete(&domain.VideoCheckResult{}).Error; err != nil {
			return fmt.Errorf("failed to delete check results: %w", err)
		}
		if err := tx.Where("video_id = ?", id).Delete(&domain.VideoAnalysis{}).Error; err != nil {
			return fmt.Errorf("failed to delete video analysis: %w", err)
		}
		res := tx.Delete(&domain.LearningVideo{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete video: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("video %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}
