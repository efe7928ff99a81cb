package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/metrics"
	"github.com/timmy/vcheck/internal/repository"
)

const unknownJudge = "unknown"

// CheckService runs a video against a client's past corrections.
type CheckService struct {
	videos    *repository.VideoRepository
	templates *repository.FeedbackTemplateRepository
	results   *repository.CheckResultRepository
	settings  *SettingsService
	embedding EmbeddingProvider
	now       func() time.Time
}

// NewCheckService creates a new check service.
func NewCheckService(
	videos *repository.VideoRepository,
	templates *repository.FeedbackTemplateRepository,
	results *repository.CheckResultRepository,
	settings *SettingsService,
	embedding EmbeddingProvider,
) *CheckService {
	return &CheckService{
		videos:    videos,
		templates: templates,
		results:   results,
		settings:  settings,
		embedding: embedding,
		now:       time.Now,
	}
}

// MatchView is a recorded match with the template data needed for display.
type MatchView struct {
	MatchID          string                `json:"match_id"`
	TemplateID       string                `json:"template_id"`
	FeedbackText     string                `json:"feedback_text"`
	Category         domain.Category       `json:"category"`
	Phase            domain.Phase          `json:"phase"`
	Importance       domain.Importance     `json:"importance"`
	SimilarityScore  float64               `json:"similarity_score"`
	SimilarityRank   domain.SimilarityRank `json:"similarity_rank"`
	WeightedScore    float64               `json:"weighted_score"`
	MatchCount       int                   `json:"match_count"`
	FirstPointedAt   time.Time             `json:"first_pointed_at"`
	LastPointedAt    *time.Time            `json:"last_pointed_at,omitempty"`
	MatchSummaryText string                `json:"match_summary_text"`
}

// CheckResult is the outcome of one check run.
type CheckResult struct {
	VideoID    string      `json:"video_id"`
	ClientID   string      `json:"client_id"`
	VideoTitle string      `json:"video_title"`
	Threshold  float64     `json:"threshold"`
	Matches    []MatchView `json:"matches"`
}

// CheckVideo compares a video's check text with every active template of its
// client and records the matches at or above the client threshold.
//
// Preconditions are checked before the oracle is called: the video must
// exist, have an analysis, and belong to a client with auto check enabled.
// A client without embedded templates gets an empty result. An oracle or
// scoring failure aborts the run with nothing persisted.
func (s *CheckService) CheckVideo(ctx context.Context, videoID string) (*CheckResult, error) {
	ctx = logger.SetVideoID(ctx, videoID)
	start := time.Now()

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetClientID(ctx, video.ClientID)

	analysis, err := s.videos.GetAnalysis(ctx, videoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("video %s: %w", videoID, domain.ErrAnalysisMissing)
		}
		return nil, err
	}

	settings, err := s.settings.Get(ctx, video.ClientID)
	if err != nil {
		return nil, err
	}
	if !settings.AutoCheckEnabled {
		metrics.IncCheckRun(metrics.CheckStatusDisabled)
		return nil, fmt.Errorf("client %s: %w", video.ClientID, domain.ErrCheckDisabled)
	}

	result := &CheckResult{
		VideoID:    video.ID,
		ClientID:   video.ClientID,
		VideoTitle: video.Title,
		Threshold:  settings.SimilarityThreshold,
		Matches:    []MatchView{},
	}

	// one snapshot per run; concurrent edits may or may not be seen
	templates, err := s.templates.ListActiveWithEmbedding(ctx, video.ClientID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		metrics.IncCheckRun(metrics.CheckStatusNoTemplate)
		logger.CtxInfo(ctx, "No active templates with embeddings, nothing to compare")
		return result, nil
	}

	vector, err := s.embedding.Embed(ctx, BuildCheckText(video, analysis))
	if err != nil {
		metrics.IncCheckRun(metrics.CheckStatusFailed)
		logger.FromContext(ctx).WithError(err).Error("Check run aborted: check text embedding failed")
		return nil, fmt.Errorf("failed to embed check text: %w", err)
	}

	now := s.now()
	var rows []domain.VideoCheckResult
	for i := range templates {
		t := &templates[i]
		score, err := CosineSimilarity(vector, t.Embedding)
		if err != nil {
			metrics.IncCheckRun(metrics.CheckStatusFailed)
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		if score < settings.SimilarityThreshold {
			continue
		}

		rank := SimilarityRank(score)
		row := domain.VideoCheckResult{
			ID:               uuid.New().String(),
			ClientID:         video.ClientID,
			VideoID:          video.ID,
			TemplateID:       t.ID,
			SimilarityScore:  score,
			SimilarityRank:   rank,
			MatchSummaryText: summarizeMatch(t),
			CreatedBy:        defaultActor,
			CreatedAt:        now,
		}
		rows = append(rows, row)

		pointedAt := now
		result.Matches = append(result.Matches, MatchView{
			MatchID:          row.ID,
			TemplateID:       t.ID,
			FeedbackText:     t.FeedbackText,
			Category:         t.Category,
			Phase:            t.Phase,
			Importance:       t.Importance,
			SimilarityScore:  score,
			SimilarityRank:   rank,
			WeightedScore:    score * ImportanceWeight(t.Importance),
			MatchCount:       t.MatchCount + 1,
			FirstPointedAt:   t.FirstPointedAt,
			LastPointedAt:    &pointedAt,
			MatchSummaryText: row.MatchSummaryText,
		})
	}

	recorded, err := s.results.RecordMatches(ctx, rows, now)
	if err != nil {
		metrics.IncCheckRun(metrics.CheckStatusFailed)
		return nil, err
	}
	if len(recorded) < len(rows) {
		result.Matches = keepRecorded(result.Matches, recorded)
		logger.CtxWarn(ctx, "Dropped %d match(es) for templates deleted during the run", len(rows)-len(recorded))
	}
	rows = recorded

	sortMatches(result.Matches)

	status := metrics.CheckStatusNoMatch
	if len(rows) > 0 {
		status = metrics.CheckStatusMatched
	}
	metrics.IncCheckRun(status)
	for _, m := range result.Matches {
		metrics.IncCheckMatch(string(m.SimilarityRank))
	}

	logger.With(logger.Fields{
		logger.FieldVideoID:  video.ID,
		logger.FieldClientID: video.ClientID,
		"templates":          len(templates),
	}).WithStatus(status).WithCount(len(rows)).WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Check run finished")

	return result, nil
}

// keepRecorded filters views down to the matches that were persisted.
func keepRecorded(views []MatchView, recorded []domain.VideoCheckResult) []MatchView {
	ids := make(map[string]struct{}, len(recorded))
	for _, r := range recorded {
		ids[r.ID] = struct{}{}
	}
	kept := views[:0]
	for _, v := range views {
		if _, ok := ids[v.MatchID]; ok {
			kept = append(kept, v)
		}
	}
	return kept
}

// sortMatches orders by importance, then score, both descending.
func sortMatches(matches []MatchView) {
	sort.SliceStable(matches, func(i, j int) bool {
		oi, oj := matches[i].Importance.Order(), matches[j].Importance.Order()
		if oi != oj {
			return oi > oj
		}
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
}

// ListMatches returns every match recorded for a video, highest score first.
func (s *CheckService) ListMatches(ctx context.Context, videoID string) ([]repository.MatchRow, error) {
	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		return nil, err
	}
	rows, err := s.results.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.MatchRow{}
	}
	return rows, nil
}

// RecordJudgementInput is a human verdict on a match.
type RecordJudgementInput struct {
	Judgement string  `json:"judgement"`
	Actor     string  `json:"actor,omitempty"`
	Comment   *string `json:"comment,omitempty"`
}

// RecordJudgement stores a verdict on a match. A missing actor is recorded
// as "unknown".
func (s *CheckService) RecordJudgement(ctx context.Context, matchID string, in RecordJudgementInput) error {
	judgement, ok := domain.ParseJudgement(in.Judgement)
	if !ok {
		verr := domain.NewValidationError()
		verr.Add("judgement", "must be true_positive or false_positive")
		return verr
	}

	if err := s.results.SetJudgement(ctx, matchID, judgement, actorOr(in.Actor, unknownJudge), trimmedOrNil(in.Comment), s.now()); err != nil {
		return err
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldMatchID: matchID,
		"judgement":         judgement,
	}).Info("Match judged")
	return nil
}
