package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/repository"
)

// StatisticsService maintains the per-client learning statistics rollup.
type StatisticsService struct {
	videos *repository.VideoRepository
	stats  *repository.StatisticsRepository
	now    func() time.Time
}

// NewStatisticsService creates a new statistics service.
func NewStatisticsService(videos *repository.VideoRepository, stats *repository.StatisticsRepository) *StatisticsService {
	return &StatisticsService{videos: videos, stats: stats, now: time.Now}
}

// Recalculate recomputes the client's rollup from every analyzed video and
// replaces the stored row. With no analyzed videos left the row is deleted
// and nil is returned.
func (s *StatisticsService) Recalculate(ctx context.Context, clientID string) (*domain.LearningStatistics, error) {
	ctx = logger.SetClientID(ctx, clientID)

	pairs, err := s.videos.ListAnalyzed(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		if err := s.stats.Delete(ctx, clientID); err != nil {
			return nil, fmt.Errorf("failed to delete learning statistics: %w", err)
		}
		logger.CtxInfo(ctx, "No analyzed videos left, learning statistics removed")
		return nil, nil
	}

	stats := aggregate(clientID, pairs)
	stats.LastUpdated = s.now()
	if err := s.stats.Upsert(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to store learning statistics: %w", err)
	}

	logger.With(logger.Fields{logger.FieldClientID: clientID}).
		WithCount(stats.TotalVideosAnalyzed).
		Debug(ctx, "Learning statistics recalculated")
	return stats, nil
}

// Get returns the stored rollup, or nil when the client has none.
func (s *StatisticsService) Get(ctx context.Context, clientID string) (*domain.LearningStatistics, error) {
	return s.stats.Get(ctx, clientID)
}

// aggregate is a pure function of the analyzed video set. Missing cut
// frequencies count as zero; the best video is the first with the most views.
func aggregate(clientID string, pairs []repository.AnalyzedVideo) *domain.LearningStatistics {
	stats := &domain.LearningStatistics{
		ClientID:            clientID,
		TotalVideosAnalyzed: len(pairs),
	}

	var cutSum float64
	var bestViews int64 = -1
	for _, p := range pairs {
		m := p.Video.PerformanceMetrics
		stats.TotalViews += m.Views
		stats.TotalLikes += m.Likes
		stats.TotalSaves += m.Saves
		if p.Analysis.CutFrequency != nil {
			cutSum += *p.Analysis.CutFrequency
		}
		if m.Views > bestViews {
			bestViews = m.Views
			stats.BestVideoID = p.Video.ID
		}
	}
	stats.AverageCutFrequency = cutSum / float64(len(pairs))
	return stats
}
