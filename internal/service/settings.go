package service

import (
	"context"
	"strings"
	"time"

	"github.com/timmy/vcheck/internal/domain"
	"github.com/timmy/vcheck/internal/repository"
)

// SettingsService manages per-client check settings.
type SettingsService struct {
	repo             *repository.SettingsRepository
	defaultThreshold float64
}

// NewSettingsService creates a settings service. defaultThreshold seeds
// settings rows materialized on first read.
func NewSettingsService(repo *repository.SettingsRepository, defaultThreshold float64) *SettingsService {
	if defaultThreshold < 0 || defaultThreshold > 1 {
		defaultThreshold = domain.DefaultSimilarityThreshold
	}
	return &SettingsService{repo: repo, defaultThreshold: defaultThreshold}
}

// UpdateSettingsInput is a partial update; nil fields are left unchanged.
type UpdateSettingsInput struct {
	SimilarityThreshold      *float64 `json:"similarity_threshold,omitempty"`
	AutoCheckEnabled         *bool    `json:"auto_check_enabled,omitempty"`
	NotifyOnMatch            *bool    `json:"notify_on_match,omitempty"`
	NotifyHighImportanceOnly *bool    `json:"notify_high_importance_only,omitempty"`
}

// Get returns the client's settings, creating the default row on first
// read. This is a side-effecting read.
func (s *SettingsService) Get(ctx context.Context, clientID string) (*domain.VideoCheckSettings, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		verr := domain.NewValidationError()
		verr.Add("client_id", "is required")
		return nil, verr
	}
	return s.repo.GetOrCreate(ctx, domain.DefaultCheckSettings(clientID, s.defaultThreshold))
}

// Update applies a partial update, materializing the row first if needed.
func (s *SettingsService) Update(ctx context.Context, clientID string, in UpdateSettingsInput) (*domain.VideoCheckSettings, error) {
	if t := in.SimilarityThreshold; t != nil && (*t < 0 || *t > 1) {
		verr := domain.NewValidationError()
		verr.Add("similarity_threshold", "must be between 0 and 1")
		return nil, verr
	}

	current, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if in.SimilarityThreshold != nil {
		fields["similarity_threshold"] = *in.SimilarityThreshold
	}
	if in.AutoCheckEnabled != nil {
		fields["auto_check_enabled"] = *in.AutoCheckEnabled
	}
	if in.NotifyOnMatch != nil {
		fields["notify_on_match"] = *in.NotifyOnMatch
	}
	if in.NotifyHighImportanceOnly != nil {
		fields["notify_high_importance_only"] = *in.NotifyHighImportanceOnly
	}
	if len(fields) == 0 {
		return current, nil
	}
	fields["updated_at"] = time.Now()

	if err := s.repo.UpdateFields(ctx, current.ClientID, fields); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, current.ClientID)
}
