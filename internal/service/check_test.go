package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/vcheck/internal/domain"
)

func setThreshold(t *testing.T, e *engine, clientID string, threshold float64) {
	t.Helper()
	_, err := e.settings.Update(context.Background(), clientID, UpdateSettingsInput{SimilarityThreshold: &threshold})
	require.NoError(t, err)
}

func matchIDs(matches []MatchView) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.TemplateID
	}
	return ids
}

func TestCheckVideo_WeakIntroMatchesColorTemplate(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック", "テロップ", "BGM"))
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	e.checks.now = fixedClock(now)

	res, err := e.feedback.Register(ctx, RegisterFeedbackInput{
		ClientID:     "client-x",
		FeedbackText: "冒頭のフックが弱い",
		Category:     "色味",
		Phase:        "編集",
		Importance:   "高",
	})
	require.NoError(t, err)
	setThreshold(t, e, "client-x", 0.5)

	video := e.seedVideo(t, "client-x", "weak-intro", 100, weakIntroAnalysis())

	result, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, "weak-intro", result.VideoTitle)
	require.Len(t, result.Matches, 1)

	m := result.Matches[0]
	assert.Equal(t, res.ID, m.TemplateID)
	assert.Contains(t, []domain.SimilarityRank{domain.RankA, domain.RankB, domain.RankC}, m.SimilarityRank)
	assert.Equal(t, 1, m.MatchCount)
	assert.Equal(t, domain.ImportanceHigh, m.Importance)
	assert.InDelta(t, m.SimilarityScore*1.5, m.WeightedScore, 1e-9)
	assert.Equal(t, "色味カテゴリの過去指摘と類似しています: \"冒頭のフックが弱い...\"", m.MatchSummaryText)

	tmpl, err := e.feedback.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.MatchCount)
	require.NotNil(t, tmpl.LastPointedAt)
	assert.True(t, tmpl.LastPointedAt.Equal(now))

	stored, err := e.checks.ListMatches(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, m.MatchID, stored[0].ID)
	assert.Equal(t, "system", stored[0].CreatedBy)
	assert.Equal(t, "冒頭のフックが弱い", stored[0].FeedbackText)
	assert.Equal(t, "weak-intro", stored[0].VideoTitle)
	assert.Nil(t, stored[0].UserJudgement)
}

func TestCheckVideo_DisabledPersistsNothing(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	_, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	disabled := false
	_, err = e.settings.Update(ctx, "client-x", UpdateSettingsInput{AutoCheckEnabled: &disabled})
	require.NoError(t, err)
	calls := e.embedder.callCount()

	_, err = e.checks.CheckVideo(ctx, video.ID)
	assert.ErrorIs(t, err, domain.ErrCheckDisabled)
	assert.Equal(t, calls, e.embedder.callCount(), "no oracle call on a precondition failure")

	var count int64
	require.NoError(t, e.db.Model(&domain.VideoCheckResult{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckVideo_Preconditions(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	_, err := e.checks.CheckVideo(ctx, "missing-video")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bare := e.seedVideo(t, "client-x", "no-analysis", 0, nil)
	_, err = e.checks.CheckVideo(ctx, bare.ID)
	assert.ErrorIs(t, err, domain.ErrAnalysisMissing)
	assert.Zero(t, e.embedder.callCount())
}

func TestCheckVideo_NoTemplatesSkipsOracle(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())
	result, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
	assert.Zero(t, e.embedder.callCount())

	settings, err := e.settings.Get(ctx, "client-x")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSimilarityThreshold, settings.SimilarityThreshold)
	assert.True(t, settings.AutoCheckEnabled)
}

func TestCheckVideo_OracleFailureAbortsRun(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	res, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	e.embedder.fail(oracleDown())
	_, err = e.checks.CheckVideo(ctx, video.ID)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	var count int64
	require.NoError(t, e.db.Model(&domain.VideoCheckResult{}).Count(&count).Error)
	assert.Zero(t, count)

	tmpl, err := e.feedback.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Zero(t, tmpl.MatchCount)
}

func TestCheckVideo_DimensionMismatchAborts(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	res, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	// a vector from an older model generation
	require.NoError(t, e.templates.UpdateFields(ctx, res.ID, map[string]interface{}{
		"embedding": domain.Vector{1, 0, 0, 0, 0},
	}))
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	_, err = e.checks.CheckVideo(ctx, video.ID)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	var count int64
	require.NoError(t, e.db.Model(&domain.VideoCheckResult{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckVideo_SortsByImportanceThenScore(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック", "カット"))
	ctx := context.Background()
	setThreshold(t, e, "client-x", 0.3)

	input := func(text, importance string) RegisterFeedbackInput {
		in := registerInput("client-x", text)
		in.Importance = importance
		return in
	}
	// check text contains both keywords; single-keyword templates score lower
	low, err := e.feedback.Register(ctx, input("フックとカット", "低"))
	require.NoError(t, err)
	highPartial, err := e.feedback.Register(ctx, input("フックだけ", "高"))
	require.NoError(t, err)
	highFull, err := e.feedback.Register(ctx, input("フックとカットの両方", "高"))
	require.NoError(t, err)
	medium, err := e.feedback.Register(ctx, input("カットだけ", "中"))
	require.NoError(t, err)

	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())
	result, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{highFull.ID, highPartial.ID, medium.ID, low.ID}, matchIDs(result.Matches))
	assert.Greater(t, result.Matches[0].SimilarityScore, result.Matches[1].SimilarityScore)
}

func TestCheckVideo_ThresholdFilters(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック", "テロップ"))
	ctx := context.Background()

	_, err := e.feedback.Register(ctx, registerInput("client-x", "テロップが小さい"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	// default threshold 0.7; orthogonal apart from the bias axis
	result, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestCheckVideo_Idempotent(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック", "テロップ"))
	ctx := context.Background()
	setThreshold(t, e, "client-x", 0.5)

	hook, err := e.feedback.Register(ctx, registerInput("client-x", "フックが弱い"))
	require.NoError(t, err)
	_, err = e.feedback.Register(ctx, registerInput("client-x", "テロップが小さい"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	first, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	second, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, matchIDs(first.Matches), matchIDs(second.Matches))
	assert.Equal(t, []string{hook.ID}, matchIDs(second.Matches))
	for i := range first.Matches {
		assert.Equal(t, first.Matches[i].SimilarityRank, second.Matches[i].SimilarityRank)
	}
	assert.Equal(t, 2, second.Matches[0].MatchCount)
	require.Len(t, e.embedder.texts, 4)
	assert.Equal(t, e.embedder.texts[2], e.embedder.texts[3], "same analysis renders the same check text")
}

func TestCheckVideo_ArchivedTemplateExcludedButHistoryKept(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	res, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	first, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, first.Matches, 1)

	require.NoError(t, e.feedback.Archive(ctx, res.ID, "editor"))

	second, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Empty(t, second.Matches)

	stored, err := e.checks.ListMatches(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, first.Matches[0].MatchID, stored[0].ID)
}

func TestDeleteTemplate_CascadesMatches(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()

	res, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())
	_, err = e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)

	require.NoError(t, e.feedback.Delete(ctx, res.ID))

	count, err := e.results.CountByTemplate(ctx, res.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = e.feedback.Get(ctx, res.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, e.feedback.Delete(ctx, res.ID), domain.ErrNotFound)
}

func TestRecordJudgement(t *testing.T) {
	e := newEngine(t, newKeywordEmbedder("フック"))
	ctx := context.Background()
	judgedAt := time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)
	e.checks.now = fixedClock(judgedAt)

	_, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())
	result, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	matchID := result.Matches[0].MatchID

	err = e.checks.RecordJudgement(ctx, matchID, RecordJudgementInput{Judgement: "maybe"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = e.checks.RecordJudgement(ctx, "missing", RecordJudgementInput{Judgement: "true_positive"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, e.checks.RecordJudgement(ctx, matchID, RecordJudgementInput{
		Judgement: "false_positive",
		Comment:   strPtr("意図的な演出"),
	}))

	stored, err := e.results.GetByID(ctx, matchID)
	require.NoError(t, err)
	require.NotNil(t, stored.UserJudgement)
	assert.Equal(t, domain.JudgementFalsePositive, *stored.UserJudgement)
	require.NotNil(t, stored.UserJudgementBy)
	assert.Equal(t, "unknown", *stored.UserJudgementBy)
	require.NotNil(t, stored.UserComment)
	assert.Equal(t, "意図的な演出", *stored.UserComment)
	require.NotNil(t, stored.UserJudgementAt)
	assert.True(t, stored.UserJudgementAt.Equal(judgedAt))
}

func TestCheckVideo_TemplateDeletedDuringEmbedIsNotRecorded(t *testing.T) {
	embedder := newKeywordEmbedder("フック")
	e := newEngine(t, embedder)
	ctx := context.Background()

	doomed, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックが弱い"))
	require.NoError(t, err)
	kept, err := e.feedback.Register(ctx, registerInput("client-x", "冒頭のフックをもっと強く"))
	require.NoError(t, err)
	setThreshold(t, e, "client-x", 0.5)
	video := e.seedVideo(t, "client-x", "v1", 10, weakIntroAnalysis())

	embedder.onEmbed = func(ctx context.Context) {
		require.NoError(t, e.feedback.Delete(ctx, doomed.ID))
	}

	result, err := e.checks.CheckVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, matchIDs(result.Matches))

	count, err := e.results.CountByTemplate(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	stored, err := e.checks.ListMatches(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, kept.ID, stored[0].TemplateID)

	tmpl, err := e.feedback.Get(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.MatchCount)
}
