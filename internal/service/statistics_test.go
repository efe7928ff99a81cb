package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/repository"
)

func TestAggregate(t *testing.T) {
	cut1, cut2 := 2.0, 4.0
	pairs := []repository.AnalyzedVideo{
		{
			Video:    domain.LearningVideo{ID: "a", PerformanceMetrics: domain.PerformanceMetrics{Views: 100, Likes: 10, Saves: 1}},
			Analysis: domain.VideoAnalysis{CutFrequency: &cut1},
		},
		{
			Video:    domain.LearningVideo{ID: "b", PerformanceMetrics: domain.PerformanceMetrics{Views: 300, Likes: 30, Saves: 3}},
			Analysis: domain.VideoAnalysis{CutFrequency: &cut2},
		},
		{
			Video:    domain.LearningVideo{ID: "c", PerformanceMetrics: domain.PerformanceMetrics{Views: 300}},
			Analysis: domain.VideoAnalysis{},
		},
	}

	stats := aggregate("client-x", pairs)
	assert.Equal(t, 3, stats.TotalVideosAnalyzed)
	assert.InDelta(t, 2.0, stats.AverageCutFrequency, 1e-9)
	assert.Equal(t, int64(700), stats.TotalViews)
	assert.Equal(t, int64(40), stats.TotalLikes)
	assert.Equal(t, int64(4), stats.TotalSaves)
	assert.Equal(t, "b", stats.BestVideoID, "first video with the most views wins ties")
}

func TestStatistics_FollowVideoLifecycle(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	stats, err := e.statistics.Get(ctx, "client-x")
	require.NoError(t, err)
	assert.Nil(t, stats)

	// registering without analysis does not count
	bare := e.seedVideo(t, "client-x", "bare", 999, nil)
	_, err = e.statistics.Recalculate(ctx, "client-x")
	require.NoError(t, err)
	stats, err = e.statistics.Get(ctx, "client-x")
	require.NoError(t, err)
	assert.Nil(t, stats)

	first := e.seedVideo(t, "client-x", "first", 100, weakIntroAnalysis())
	stats, err = e.statistics.Get(ctx, "client-x")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.TotalVideosAnalyzed)
	assert.InDelta(t, 2.5, stats.AverageCutFrequency, 1e-9)
	assert.Equal(t, first.ID, stats.BestVideoID)

	cut := 4.5
	second := e.seedVideo(t, "client-x", "second", 500, &SaveAnalysisInput{CutFrequency: &cut})
	stats, err = e.statistics.Get(ctx, "client-x")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVideosAnalyzed)
	assert.InDelta(t, 3.5, stats.AverageCutFrequency, 1e-9)
	assert.Equal(t, int64(600), stats.TotalViews)
	assert.Equal(t, second.ID, stats.BestVideoID)

	require.NoError(t, e.videos.DeleteVideo(ctx, second.ID))
	stats, err = e.statistics.Get(ctx, "client-x")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVideosAnalyzed)

	require.NoError(t, e.videos.DeleteVideo(ctx, bare.ID))
	require.NoError(t, e.videos.DeleteVideo(ctx, first.ID))

	// the row is removed, not zeroed
	var count int64
	require.NoError(t, e.db.Model(&domain.LearningStatistics{}).Where("client_id = ?", "client-x").Count(&count).Error)
	assert.Zero(t, count)
}

func TestStatistics_ClientsAreIsolated(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	only := e.seedVideo(t, "client-x", "x", 10, weakIntroAnalysis())
	e.seedVideo(t, "client-y", "y", 10, weakIntroAnalysis())

	require.NoError(t, e.videos.DeleteVideo(ctx, only.ID))

	x, err := e.statistics.Get(ctx, "client-x")
	require.NoError(t, err)
	assert.Nil(t, x)
	y, err := e.statistics.Get(ctx, "client-y")
	require.NoError(t, err)
	require.NotNil(t, y)
	assert.Equal(t, 1, y.TotalVideosAnalyzed)
}

func TestDeleteVideo_CascadesAnalysisMatchesAndFile(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	tmpl, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())
	_, err = e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)

	require.NoError(t, e.videos.DeleteVideo(ctx, video.ID))

	_, err = e.videoRepo.GetAnalysis(ctx, video.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	count, err := e.results.CountByTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, []string{"videos/v1.mp4"}, e.storage.deleted)

	// the template itself and its counter survive
	got, err := e.feedback.Get(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MatchCount)

	assert.ErrorIs(t, e.videos.DeleteVideo(ctx, video.ID), domain.ErrNotFound)
}

func TestDeleteVideo_StorageFailureIsNotFatal(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	e.storage.err = errors.New("bucket unreachable")
	ctx := context.Background()

	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())
	require.NoError(t, e.videos.DeleteVideo(ctx, video.ID))

	_, err := e.videoRepo.GetByID(ctx, video.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveAnalysis_ReplacesPreviousAnalysis(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	cut := 6.0
	hasBGM := true
	saved, err := e.videos.SaveAnalysis(ctx, video.ID, SaveAnalysisInput{
		CutFrequency: &cut,
		Pace:         "ゆっくり",
		BGM:          domain.BGM{HasBGM: &hasBGM, Genre: "lo-fi"},
	})
	require.NoError(t, err)
	require.NotNil(t, saved.CutFrequency)
	assert.Equal(t, 6.0, *saved.CutFrequency)
	assert.Equal(t, "ゆっくり", saved.Pace)
	require.NotNil(t, saved.BGM.HasBGM)
	assert.True(t, *saved.BGM.HasBGM)
	assert.Nil(t, saved.Structure.Intro)

	stats, err := e.statistics.Get(ctx, "client-x")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVideosAnalyzed)
	assert.InDelta(t, 6.0, stats.AverageCutFrequency, 1e-9)

	_, err = e.videos.SaveAnalysis(ctx, "missing", SaveAnalysisInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	negative := -1.0
	_, err = e.videos.SaveAnalysis(ctx, video.ID, SaveAnalysisInput{CutFrequency: &negative})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
