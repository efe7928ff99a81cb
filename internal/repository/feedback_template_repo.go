package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/vcheck/internal/domain"
	"gorm.io/gorm"
)

// FeedbackFilter narrows a template listing. Empty fields are ignored.
type FeedbackFilter struct {
	ClientID   string
	Status     domain.TemplateStatus
	Category   domain.Category
	Importance domain.Importance
	Keyword    string
}

// FeedbackTemplateRepository handles feedback template persistence.
type FeedbackTemplateRepository struct {
	db *gorm.DB
}

// NewFeedbackTemplateRepository creates a new FeedbackTemplateRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *FeedbackTemplateRepository: repository instance bound to db.
func NewFeedbackTemplateRepository(db *gorm.DB) *FeedbackTemplateRepository {
	return &FeedbackTemplateRepository{db: db}
}

// Create inserts a new template.
func (r *FeedbackTemplateRepository) Create(ctx context.Context, t *domain.FeedbackTemplate) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// GetByID retrieves a template by its ID.
// Returns an error wrapping domain.ErrNotFound when absent.
func (r *FeedbackTemplateRepository) GetByID(ctx context.Context, id string) (*domain.FeedbackTemplate, error) {
	var t domain.FeedbackTemplate
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "feedback template", id)
	}
	return &t, nil
}

// UpdateFields applies a partial update as one single-row statement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: template ID.
//   - fields: column name to value; a nil embedding clears the column.
//
// Returns:
//   - error: wraps domain.ErrNotFound when no row matched.
func (r *FeedbackTemplateRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.FeedbackTemplate{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update feedback template: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("feedback template %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns templates matching filter, most recently created first.
func (r *FeedbackTemplateRepository) List(ctx context.Context, filter FeedbackFilter) ([]domain.FeedbackTemplate, error) {
	query := r.db.WithContext(ctx).Model(&domain.FeedbackTemplate{})
	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Importance != "" {
		query = query.Where("importance = ?", filter.Importance)
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		pattern := "%" + escapeLike(strings.ToLower(kw)) + "%"
		query = query.Where(
			`(LOWER(feedback_text) LIKE ? ESCAPE '\' OR LOWER(COALESCE(memo, '')) LIKE ? ESCAPE '\')`,
			pattern, pattern,
		)
	}

	var templates []domain.FeedbackTemplate
	if err := query.Order("created_at DESC").Order("id DESC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list feedback templates: %w", err)
	}
	return templates, nil
}

// ListActiveWithEmbedding returns the check snapshot for a client: every
// active template that has an embedding.
func (r *FeedbackTemplateRepository) ListActiveWithEmbedding(ctx context.Context, clientID string) ([]domain.FeedbackTemplate, error) {
	var templates []domain.FeedbackTemplate
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND status = ? AND embedding IS NOT NULL", clientID, domain.TemplateStatusActive).
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to load active templates: %w", err)
	}
	return templates, nil
}

// ListMissingEmbedding returns templates whose embedding is absent.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - clientID: restricts to one client; empty means all clients.
//   - limit: maximum number of rows; <= 0 means no limit.
//
// Returns:
//   - []domain.FeedbackTemplate: templates oldest first.
//   - error: non-nil if the query fails.
func (r *FeedbackTemplateRepository) ListMissingEmbedding(ctx context.Context, clientID string, limit int) ([]domain.FeedbackTemplate, error) {
	query := r.db.WithContext(ctx).Where("embedding IS NULL")
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var templates []domain.FeedbackTemplate
	if err := query.Order("created_at ASC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates without embedding: %w", err)
	}
	return templates, nil
}

// Delete removes a template together with every check result that references
// it, in one transaction.
func (r *FeedbackTemplateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&domain.VideoCheckResult{}).Error; err != nil {
			return fmt.Errorf("failed to delete check results: %w", err)
		}
		res := tx.Delete(&domain.FeedbackTemplate{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete feedback template: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("feedback template %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListByIDs returns the templates with the given IDs in no particular order.
// Unknown IDs are skipped.
func (r *FeedbackTemplateRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.FeedbackTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var templates []domain.FeedbackTemplate
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to load feedback templates: %w", err)
	}
	return templates, nil
}
