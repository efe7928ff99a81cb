package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/repository"
)

const (
	defaultActor        = "system"
	defaultSimilarTopK  = 5
	maxSimilarTopK      = 50
	regenerateBatchSize = 100
)

// TemplateIndex is an optional nearest-neighbour mirror of template
// embeddings. The relational store stays authoritative; index failures are
// logged and never fail a template mutation.
type TemplateIndex interface {
	Upsert(ctx context.Context, vector []float32, payload repository.TemplatePayload) error
	Search(ctx context.Context, vector []float32, clientID, excludeID string, topK int) ([]repository.TemplateHit, error)
	Delete(ctx context.Context, templateID string) error
}

// FeedbackService manages feedback templates and their embeddings.
type FeedbackService struct {
	repo      *repository.FeedbackTemplateRepository
	embedding EmbeddingProvider
	index     TemplateIndex
	now       func() time.Time
}

// NewFeedbackService creates a new feedback service. index may be nil.
func NewFeedbackService(repo *repository.FeedbackTemplateRepository, embedding EmbeddingProvider, index TemplateIndex) *FeedbackService {
	return &FeedbackService{
		repo:      repo,
		embedding: embedding,
		index:     index,
		now:       time.Now,
	}
}

// RegisterFeedbackInput carries a new correction note.
type RegisterFeedbackInput struct {
	ClientID     string  `json:"client_id"`
	VideoID      *string `json:"video_id,omitempty"`
	FeedbackText string  `json:"feedback_text"`
	Category     string  `json:"category"`
	Phase        string  `json:"phase"`
	Importance   string  `json:"importance"`
	Memo         *string `json:"memo,omitempty"`
	CreatedBy    string  `json:"created_by,omitempty"`
}

// RegisterFeedbackResult reports the stored template and whether it can match yet.
type RegisterFeedbackResult struct {
	ID           string `json:"id"`
	HasEmbedding bool   `json:"has_embedding"`
}

// UpdateFeedbackInput is a partial update; nil fields are left unchanged.
// An empty Memo clears it.
type UpdateFeedbackInput struct {
	FeedbackText *string `json:"feedback_text,omitempty"`
	Category     *string `json:"category,omitempty"`
	Phase        *string `json:"phase,omitempty"`
	Importance   *string `json:"importance,omitempty"`
	Memo         *string `json:"memo,omitempty"`
	Status       *string `json:"status,omitempty"`
}

// ListFeedbackInput filters a listing. Empty fields are ignored.
type ListFeedbackInput struct {
	ClientID   string
	Status     string
	Category   string
	Importance string
	Keyword    string
}

// RegenerateResult summarizes an embedding backfill.
type RegenerateResult struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// SimilarTemplate is a nearest-neighbour hit resolved against the store.
type SimilarTemplate struct {
	Template domain.FeedbackTemplate `json:"template"`
	Score    float64                 `json:"score"`
}

// Register validates and stores a template. An embedding failure is logged
// and the template is stored without a vector rather than lost.
func (s *FeedbackService) Register(ctx context.Context, in RegisterFeedbackInput) (*RegisterFeedbackResult, error) {
	verr := domain.NewValidationError()
	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		verr.Add("client_id", "is required")
	}
	text := strings.TrimSpace(in.FeedbackText)
	if text == "" {
		verr.Add("feedback_text", "is required")
	}
	category := parseCategoryField(verr, in.Category, true)
	phase := parsePhaseField(verr, in.Phase, true)
	importance := parseImportanceField(verr, in.Importance, true)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	ctx = logger.SetClientID(ctx, clientID)
	now := s.now()
	t := &domain.FeedbackTemplate{
		ID:             uuid.New().String(),
		ClientID:       clientID,
		VideoID:        trimmedOrNil(in.VideoID),
		FeedbackText:   text,
		Category:       category,
		Phase:          phase,
		Importance:     importance,
		Memo:           trimmedOrNil(in.Memo),
		Status:         domain.TemplateStatusActive,
		Embedding:      s.embedTemplate(ctx, text),
		FirstPointedAt: now,
		CreatedBy:      actorOr(in.CreatedBy, defaultActor),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create feedback template: %w", err)
	}

	s.syncIndex(ctx, t)
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldTemplateID: t.ID,
		"has_embedding":        t.HasEmbedding(),
	}).Info("Feedback template registered")

	return &RegisterFeedbackResult{ID: t.ID, HasEmbedding: t.HasEmbedding()}, nil
}

// Update applies a partial update. A changed text regenerates the embedding;
// when regeneration fails the old vector is cleared so the template never
// matches on text it no longer contains.
func (s *FeedbackService) Update(ctx context.Context, id string, in UpdateFeedbackInput, actor string) (*domain.FeedbackTemplate, error) {
	verr := domain.NewValidationError()
	fields := make(map[string]interface{})

	if in.FeedbackText != nil {
		text := strings.TrimSpace(*in.FeedbackText)
		if text == "" {
			verr.Add("feedback_text", "must not be empty")
		} else {
			fields["feedback_text"] = text
		}
	}
	if in.Category != nil {
		fields["category"] = parseCategoryField(verr, *in.Category, true)
	}
	if in.Phase != nil {
		fields["phase"] = parsePhaseField(verr, *in.Phase, true)
	}
	if in.Importance != nil {
		fields["importance"] = parseImportanceField(verr, *in.Importance, true)
	}
	if in.Status != nil {
		status, ok := domain.ParseTemplateStatus(*in.Status)
		if !ok {
			verr.Add("status", "must be active or archived")
		}
		fields["status"] = status
	}
	if in.Memo != nil {
		fields["memo"] = trimmedOrNil(in.Memo)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetTemplateID(logger.SetClientID(ctx, current.ClientID), id)

	if text, ok := fields["feedback_text"].(string); ok && text != current.FeedbackText {
		// nil clears the column when the oracle is down
		fields["embedding"] = s.embedTemplate(ctx, text)
	}
	fields["updated_by"] = actorOr(actor, defaultActor)
	fields["updated_at"] = s.now()

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.syncIndex(ctx, updated)
	return updated, nil
}

// Archive excludes a template from future checks. Recorded matches stay.
func (s *FeedbackService) Archive(ctx context.Context, id string, actor string) error {
	if err := s.repo.UpdateFields(ctx, id, map[string]interface{}{
		"status":     domain.TemplateStatusArchived,
		"updated_by": actorOr(actor, defaultActor),
		"updated_at": s.now(),
	}); err != nil {
		return err
	}
	s.removeFromIndex(ctx, id)
	logger.CtxInfo(logger.SetTemplateID(ctx, id), "Feedback template archived")
	return nil
}

// Delete removes a template together with its matches.
func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeFromIndex(ctx, id)
	logger.CtxInfo(logger.SetTemplateID(ctx, id), "Feedback template deleted")
	return nil
}

// Get returns one template.
func (s *FeedbackService) Get(ctx context.Context, id string) (*domain.FeedbackTemplate, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns templates matching the filter, newest first.
func (s *FeedbackService) List(ctx context.Context, in ListFeedbackInput) ([]domain.FeedbackTemplate, error) {
	verr := domain.NewValidationError()
	filter := repository.FeedbackFilter{
		ClientID:   strings.TrimSpace(in.ClientID),
		Category:   parseCategoryField(verr, in.Category, false),
		Importance: parseImportanceField(verr, in.Importance, false),
		Keyword:    in.Keyword,
	}
	if in.Status != "" {
		status, ok := domain.ParseTemplateStatus(in.Status)
		if !ok {
			verr.Add("status", "must be active or archived")
		}
		filter.Status = status
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	templates, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []domain.FeedbackTemplate{}
	}
	return templates, nil
}

// RegenerateEmbeddings backfills templates stored without an embedding.
// Batches go to the oracle in order; the first failing batch stops the run
// and is returned together with the counts so far.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - clientID: restricts the backfill to one client; empty means all.
//   - limit: maximum number of templates to process; <= 0 means all.
//
// Returns:
//   - *RegenerateResult: counts of scanned, embedded and failed templates.
//   - error: the oracle or storage failure that stopped the run.
func (s *FeedbackService) RegenerateEmbeddings(ctx context.Context, clientID string, limit int) (*RegenerateResult, error) {
	pending, err := s.repo.ListMissingEmbedding(ctx, clientID, limit)
	if err != nil {
		return nil, err
	}

	result := &RegenerateResult{Scanned: len(pending)}
	start := time.Now()
	for offset := 0; offset < len(pending); offset += regenerateBatchSize {
		end := offset + regenerateBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[offset:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].FeedbackText
		}
		vectors, err := s.embedding.EmbedBatch(ctx, texts)
		if err != nil {
			result.Failed += len(pending) - offset
			return result, fmt.Errorf("failed to embed batch at offset %d: %w", offset, err)
		}

		for i := range batch {
			batch[i].Embedding = vectors[i]
			if err := s.repo.UpdateFields(ctx, batch[i].ID, map[string]interface{}{
				"embedding": batch[i].Embedding,
			}); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					// deleted while the batch was in flight
					result.Failed++
					continue
				}
				result.Failed += len(pending) - offset - i
				return result, err
			}
			result.Embedded++
			s.syncIndex(ctx, &batch[i])
		}
	}

	logger.With(logger.Fields{
		logger.FieldClientID: clientID,
		"embedded":           result.Embedded,
		"failed":             result.Failed,
	}).WithCount(result.Scanned).WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Embedding backfill finished")
	return result, nil
}

// FindSimilar returns the stored templates of the same client nearest to the
// given one, using the template index.
func (s *FeedbackService) FindSimilar(ctx context.Context, id string, topK int) ([]SimilarTemplate, error) {
	if s.index == nil {
		return nil, domain.ErrIndexDisabled
	}
	if topK <= 0 {
		topK = defaultSimilarTopK
	}
	if topK > maxSimilarTopK {
		topK = maxSimilarTopK
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.HasEmbedding() {
		verr := domain.NewValidationError()
		verr.Add("embedding", "template has no embedding yet, regenerate it first")
		return nil, verr
	}

	hits, err := s.index.Search(ctx, t.Embedding, t.ClientID, t.ID, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search template index: %w", err)
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.TemplateID
	}
	found, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.FeedbackTemplate, len(found))
	for _, f := range found {
		byID[f.ID] = f
	}

	similar := make([]SimilarTemplate, 0, len(hits))
	for _, h := range hits {
		// the index can lag behind deletes
		if ft, ok := byID[h.TemplateID]; ok {
			similar = append(similar, SimilarTemplate{Template: ft, Score: float64(h.Score)})
		}
	}
	return similar, nil
}

// embedTemplate returns the embedding of text, or nil after logging the
// upstream failure.
func (s *FeedbackService) embedTemplate(ctx context.Context, text string) domain.Vector {
	vector, err := s.embedding.Embed(ctx, text)
	if err != nil {
		fields := logger.Fields{"model": s.embedding.Model()}
		var upstream *domain.EmbeddingUnavailableError
		if errors.As(err, &upstream) {
			fields[logger.FieldStatus] = upstream.StatusCode
			fields["transient"] = upstream.Transient()
		}
		logger.FromContext(ctx).WithFields(fields).WithError(err).
			Warn("Embedding generation failed, template stored without embedding")
		return nil
	}
	return vector
}

// syncIndex mirrors the template into the index: active templates with an
// embedding are upserted, everything else removed.
func (s *FeedbackService) syncIndex(ctx context.Context, t *domain.FeedbackTemplate) {
	if s.index == nil {
		return
	}
	if t.Status != domain.TemplateStatusActive || !t.HasEmbedding() {
		s.removeFromIndex(ctx, t.ID)
		return
	}
	err := s.index.Upsert(ctx, t.Embedding, repository.TemplatePayload{
		TemplateID: t.ID,
		ClientID:   t.ClientID,
		Category:   string(t.Category),
		Importance: string(t.Importance),
	})
	if err != nil {
		logger.FromContext(ctx).WithField(logger.FieldTemplateID, t.ID).WithError(err).
			Warn("Failed to mirror template into vector index")
	}
}

func (s *FeedbackService) removeFromIndex(ctx context.Context, id string) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(ctx, id); err != nil {
		logger.FromContext(ctx).WithField(logger.FieldTemplateID, id).WithError(err).
			Warn("Failed to remove template from vector index")
	}
}

func parseCategoryField(verr *domain.ValidationError, raw string, required bool) domain.Category {
	if strings.TrimSpace(raw) == "" {
		if required {
			verr.Add("category", "is required")
		}
		return ""
	}
	c, ok := domain.ParseCategory(raw)
	if !ok {
		verr.Add("category", fmt.Sprintf("unknown category %q", raw))
	}
	return c
}

func parsePhaseField(verr *domain.ValidationError, raw string, required bool) domain.Phase {
	if strings.TrimSpace(raw) == "" {
		if required {
			verr.Add("phase", "is required")
		}
		return ""
	}
	p, ok := domain.ParsePhase(raw)
	if !ok {
		verr.Add("phase", fmt.Sprintf("unknown phase %q", raw))
	}
	return p
}

func parseImportanceField(verr *domain.ValidationError, raw string, required bool) domain.Importance {
	if strings.TrimSpace(raw) == "" {
		if required {
			verr.Add("importance", "is required")
		}
		return ""
	}
	i, ok := domain.ParseImportance(raw)
	if !ok {
		verr.Add("importance", fmt.Sprintf("unknown importance %q", raw))
	}
	return i
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func actorOr(actor, fallback string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return fallback
}
