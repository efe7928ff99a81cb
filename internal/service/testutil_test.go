package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// every pooled connection would get its own empty in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, repository.Migrate(db))
	return db
}

// keywordEmbedder maps text onto one axis per keyword it contains plus a
// constant bias axis, so related texts score high and nothing is zero.
type keywordEmbedder struct {
	keywords []string
	err      error
	// onEmbed runs before Embed returns, simulating work done while the
	// oracle call is in flight.
	onEmbed func(ctx context.Context)

	mu    sync.Mutex
	calls int
	texts []string
}

func newKeywordEmbedder(keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{keywords: keywords}
}

func (k *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(k.keywords)+1)
	for i, kw := range k.keywords {
		if strings.Contains(text, kw) {
			v[i] = 1
		}
	}
	v[len(k.keywords)] = 0.1
	return v
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k.mu.Lock()
	k.calls++
	k.texts = append(k.texts, text)
	hook := k.onEmbed
	k.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	if k.err != nil {
		return nil, k.err
	}
	return k.vector(text), nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	k.mu.Lock()
	k.calls++
	k.texts = append(k.texts, texts...)
	k.mu.Unlock()
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = k.vector(text)
	}
	return out, nil
}

func (k *keywordEmbedder) Model() string   { return "keyword-test" }
func (k *keywordEmbedder) Dimensions() int { return len(k.keywords) + 1 }

func (k *keywordEmbedder) callCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls
}

func (k *keywordEmbedder) fail(err error) {
	k.mu.Lock()
	k.err = err
	k.mu.Unlock()
}

func oracleDown() error {
	return &domain.EmbeddingUnavailableError{Provider: "test", StatusCode: 503, Body: "overloaded"}
}

// engine bundles every service over one database.
type engine struct {
	db         *gorm.DB
	embedder   *keywordEmbedder
	templates  *repository.FeedbackTemplateRepository
	results    *repository.CheckResultRepository
	videoRepo  *repository.VideoRepository
	statsRepo  *repository.StatisticsRepository
	feedback   *FeedbackService
	settings   *SettingsService
	checks     *CheckService
	statistics *StatisticsService
	videos     *VideoService
	storage    *fakeStorage
}

func newEngine(t *testing.T, embedder *keywordEmbedder) *engine {
	t.Helper()
	db := setupTestDB(t)

	e := &engine{
		db:        db,
		embedder:  embedder,
		templates: repository.NewFeedbackTemplateRepository(db),
		results:   repository.NewCheckResultRepository(db),
		videoRepo: repository.NewVideoRepository(db),
		statsRepo: repository.NewStatisticsRepository(db),
		storage:   &fakeStorage{},
	}
	e.feedback = NewFeedbackService(e.templates, embedder, nil)
	e.settings = NewSettingsService(repository.NewSettingsRepository(db), domain.DefaultSimilarityThreshold)
	e.checks = NewCheckService(e.videoRepo, e.templates, e.results, e.settings, embedder)
	e.statistics = NewStatisticsService(e.videoRepo, e.statsRepo)
	e.videos = NewVideoService(e.videoRepo, e.statistics, e.storage)
	return e
}

func (e *engine) seedVideo(t *testing.T, clientID, title string, views int64, analysis *SaveAnalysisInput) *domain.LearningVideo {
	t.Helper()
	ctx := context.Background()
	duration := 30.0
	video, err := e.videos.Register(ctx, RegisterVideoInput{
		ClientID:           clientID,
		Title:              title,
		StorageKey:         "videos/" + title + ".mp4",
		DurationSeconds:    &duration,
		PerformanceMetrics: domain.PerformanceMetrics{Views: views, Likes: views / 10, Saves: views / 100},
	})
	require.NoError(t, err)
	if analysis != nil {
		_, err = e.videos.SaveAnalysis(ctx, video.ID, *analysis)
		require.NoError(t, err)
	}
	return video
}

func weakIntroAnalysis() *SaveAnalysisInput {
	cut := 2.5
	return &SaveAnalysisInput{
		CutFrequency: &cut,
		Structure: domain.Structure{
			Intro: &domain.IntroSegment{Start: 0, End: 4, HookStrength: "弱い"},
		},
	}
}

type fakeStorage struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
