package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/vcheck/internal/domain"
	"gorm.io/gorm"
)

// MatchRow is a check result joined with the template it matched.
type MatchRow struct {
	domain.VideoCheckResult
	FeedbackText   string            `json:"feedback_text"`
	Category       domain.Category   `json:"category"`
	Phase          domain.Phase      `json:"phase"`
	Importance     domain.Importance `json:"importance"`
	Memo           *string           `json:"memo,omitempty"`
	MatchCount     int               `json:"match_count"`
	FirstPointedAt time.Time         `json:"first_pointed_at"`
	LastPointedAt  *time.Time        `json:"last_pointed_at,omitempty"`
	VideoTitle     string            `json:"video_title"`
}

// CheckResultRepository handles persisted check matches.
type CheckResultRepository struct {
	db *gorm.DB
}

// NewCheckResultRepository creates a new CheckResultRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *CheckResultRepository: repository instance bound to db.
func NewCheckResultRepository(db *gorm.DB) *CheckResultRepository {
	return &CheckResultRepository{db: db}
}

// RecordMatches persists the matches of one check run and bumps the counters
// of the matched templates in a single transaction. A match whose template
// no longer exists is skipped rather than stored as an orphan.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - results: match rows to insert.
//   - pointedAt: timestamp written to each template's last_pointed_at.
//
// Returns:
//   - []domain.VideoCheckResult: the rows that were actually stored.
//   - error: non-nil if any insert or counter update fails.
func (r *CheckResultRepository) RecordMatches(ctx context.Context, results []domain.VideoCheckResult, pointedAt time.Time) ([]domain.VideoCheckResult, error) {
	if len(results) == 0 {
		return nil, nil
	}
	var recorded []domain.VideoCheckResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recorded = recorded[:0]
		for i := range results {
			res := results[i]
			upd := tx.Model(&domain.FeedbackTemplate{}).
				Where("id = ?", res.TemplateID).
				UpdateColumns(map[string]interface{}{
					"match_count":     gorm.Expr("match_count + ?", 1),
					"last_pointed_at": pointedAt,
				})
			if upd.Error != nil {
				return fmt.Errorf("failed to update match counter for template %s: %w", res.TemplateID, upd.Error)
			}
			if upd.RowsAffected == 0 {
				// template deleted after the run took its snapshot
				continue
			}
			if err := tx.Create(&res).Error; err != nil {
				return fmt.Errorf("failed to insert check result for template %s: %w", res.TemplateID, err)
			}
			recorded = append(recorded, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// GetByID retrieves a match by its ID.
func (r *CheckResultRepository) GetByID(ctx context.Context, id string) (*domain.VideoCheckResult, error) {
	var res domain.VideoCheckResult
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "check result", id)
	}
	return &res, nil
}

// ListByVideo returns every match recorded for a video, joined with template
// fields, highest score first.
func (r *CheckResultRepository) ListByVideo(ctx context.Context, videoID string) ([]MatchRow, error) {
	var rows []MatchRow
	err := r.db.WithContext(ctx).
		Table("video_check_results AS r").
		Select(`r.*, t.feedback_text, t.category, t.phase, t.importance, t.memo,
			t.match_count, t.first_pointed_at, t.last_pointed_at, v.title AS video_title`).
		Joins("JOIN feedback_templates t ON t.id = r.template_id").
		Joins("LEFT JOIN learning_videos v ON v.id = r.video_id").
		Where("r.video_id = ?", videoID).
		Order("r.similarity_score DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list check results: %w", err)
	}
	return rows, nil
}

// CountByTemplate counts the matches recorded against a template.
func (r *CheckResultRepository) CountByTemplate(ctx context.Context, templateID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.VideoCheckResult{}).
		Where("template_id = ?", templateID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SetJudgement stores a human verdict on a match.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: match ID.
//   - judgement: verdict to store.
//   - actor: who judged.
//   - comment: optional free text.
//   - at: judgement timestamp.
//
// Returns:
//   - error: wraps domain.ErrNotFound when the match does not exist.
func (r *CheckResultRepository) SetJudgement(ctx context.Context, id string, judgement domain.Judgement, actor string, comment *string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.VideoCheckResult{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"user_judgement":    judgement,
			"user_judgement_by": actor,
			"user_judgement_at": at,
			"user_comment":      comment,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to record judgement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("check result %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
