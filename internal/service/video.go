package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/repository"
	"github.com/timmy/vcheck/internal/storage"
)

// VideoService owns the video lifecycle events that feed the engine: video
// registration, analysis completion and deletion. Every event that changes
// the analyzed set recomputes the client's statistics.
type VideoService struct {
	repo    *repository.VideoRepository
	stats   *StatisticsService
	storage storage.ObjectStorage
}

// NewVideoService creates a video service. objectStorage may be nil, in
// which case stored files are left in place on delete.
func NewVideoService(repo *repository.VideoRepository, stats *StatisticsService, objectStorage storage.ObjectStorage) *VideoService {
	return &VideoService{repo: repo, stats: stats, storage: objectStorage}
}

// RegisterVideoInput is the metadata of an already uploaded or linked video.
type RegisterVideoInput struct {
	ClientID           string                    `json:"client_id"`
	Title              string                    `json:"title"`
	SourceType         string                    `json:"source_type"`
	VideoURL           string                    `json:"video_url,omitempty"`
	StorageKey         string                    `json:"storage_key,omitempty"`
	DurationSeconds    *float64                  `json:"duration_seconds,omitempty"`
	PerformanceMetrics domain.PerformanceMetrics `json:"performance_metrics"`
}

// SaveAnalysisInput is the analysis record of a video.
type SaveAnalysisInput struct {
	CutFrequency *float64           `json:"cut_frequency,omitempty"`
	Pace         string             `json:"pace,omitempty"`
	TelopStyle   domain.TelopStyle  `json:"telop_style"`
	ColorScheme  domain.ColorScheme `json:"color_scheme"`
	BGM          domain.BGM         `json:"bgm"`
	Structure    domain.Structure   `json:"structure"`
	RawAnalysis  domain.RawAnalysis `json:"raw_analysis"`
}

// Register stores video metadata.
func (s *VideoService) Register(ctx context.Context, in RegisterVideoInput) (*domain.LearningVideo, error) {
	verr := domain.NewValidationError()
	if strings.TrimSpace(in.ClientID) == "" {
		verr.Add("client_id", "is required")
	}
	if in.DurationSeconds != nil && *in.DurationSeconds < 0 {
		verr.Add("duration_seconds", "must not be negative")
	}
	sourceType := strings.TrimSpace(in.SourceType)
	switch sourceType {
	case "":
		sourceType = "upload"
	case "upload", "youtube":
	default:
		verr.Add("source_type", "must be upload or youtube")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	video := &domain.LearningVideo{
		ID:                 uuid.New().String(),
		ClientID:           strings.TrimSpace(in.ClientID),
		Title:              strings.TrimSpace(in.Title),
		SourceType:         sourceType,
		VideoURL:           in.VideoURL,
		StorageKey:         in.StorageKey,
		DurationSeconds:    in.DurationSeconds,
		PerformanceMetrics: in.PerformanceMetrics,
	}
	if err := s.repo.Create(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// SaveAnalysis stores the analysis of a video, replacing any earlier one,
// then recomputes the client's statistics.
func (s *VideoService) SaveAnalysis(ctx context.Context, videoID string, in SaveAnalysisInput) (*domain.VideoAnalysis, error) {
	if in.CutFrequency != nil && *in.CutFrequency < 0 {
		verr := domain.NewValidationError()
		verr.Add("cut_frequency", "must not be negative")
		return nil, verr
	}

	video, err := s.repo.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetClientID(logger.SetVideoID(ctx, videoID), video.ClientID)

	analysis := &domain.VideoAnalysis{
		ID:           uuid.New().String(),
		VideoID:      video.ID,
		CutFrequency: in.CutFrequency,
		Pace:         strings.TrimSpace(in.Pace),
		TelopStyle:   in.TelopStyle,
		ColorScheme:  in.ColorScheme,
		BGM:          in.BGM,
		Structure:    in.Structure,
		RawAnalysis:  in.RawAnalysis,
		UpdatedAt:    time.Now(),
	}
	if err := s.repo.UpsertAnalysis(ctx, analysis); err != nil {
		return nil, err
	}

	s.recalculate(ctx, video.ClientID)
	return s.repo.GetAnalysis(ctx, videoID)
}

// DeleteVideo removes a video with its analysis and matches, then its stored
// file, then recomputes the client's statistics. File removal is best-effort.
func (s *VideoService) DeleteVideo(ctx context.Context, videoID string) error {
	video, err := s.repo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	ctx = logger.SetClientID(logger.SetVideoID(ctx, videoID), video.ClientID)

	if err := s.repo.Delete(ctx, videoID); err != nil {
		return err
	}

	if s.storage != nil && video.StorageKey != "" {
		if err := s.storage.Delete(ctx, video.StorageKey); err != nil {
			logger.FromContext(ctx).WithField("storage_key", video.StorageKey).WithError(err).
				Warn("Failed to delete video file, leaving it orphaned")
		}
	}

	s.recalculate(ctx, video.ClientID)
	logger.CtxInfo(ctx, "Video deleted")
	return nil
}

// recalculate refreshes statistics after a committed change. The change
// stands even if the rollup fails; the next event or an explicit
// recalculation repairs it.
func (s *VideoService) recalculate(ctx context.Context, clientID string) {
	if _, err := s.stats.Recalculate(ctx, clientID); err != nil {
		logger.CtxError(ctx, "Failed to recalculate learning statistics for client %s: %v", clientID, err)
	}
}
