package domain

import (
	"strings"
	"time"
)

// SimilarityRank is the A-D severity bucket derived from a similarity score.
type SimilarityRank string

const (
	RankA SimilarityRank = "A"
	RankB SimilarityRank = "B"
	RankC SimilarityRank = "C"
	RankD SimilarityRank = "D"
)

// Judgement is a human verdict on a recorded match.
type Judgement string

const (
	JudgementTruePositive  Judgement = "true_positive"
	JudgementFalsePositive Judgement = "false_positive"
)

// ParseJudgement validates a judgement value.
func ParseJudgement(s string) (Judgement, bool) {
	switch j := Judgement(strings.TrimSpace(s)); j {
	case JudgementTruePositive, JudgementFalsePositive:
		return j, true
	}
	return "", false
}

// VideoCheckResult records that a video's check text scored at or above the
// client threshold against a template. SimilarityScore never changes after
// creation.
type VideoCheckResult struct {
	ID               string         `gorm:"type:text;primaryKey" json:"id"`
	ClientID         string         `gorm:"type:text;not null;index" json:"client_id"`
	VideoID          string         `gorm:"type:text;not null;index" json:"video_id"`
	TemplateID       string         `gorm:"type:text;not null;index" json:"template_id"`
	SimilarityScore  float64        `gorm:"not null" json:"similarity_score"`
	SimilarityRank   SimilarityRank `gorm:"type:text;not null" json:"similarity_rank"`
	MatchSummaryText string         `gorm:"type:text" json:"match_summary_text"`
	UserJudgement    *Judgement     `gorm:"type:text" json:"user_judgement,omitempty"`
	UserJudgementBy  *string        `gorm:"type:text" json:"user_judgement_by,omitempty"`
	UserJudgementAt  *time.Time     `json:"user_judgement_at,omitempty"`
	UserComment      *string        `gorm:"type:text" json:"user_comment,omitempty"`
	CreatedBy        string         `gorm:"type:text;not null;default:system" json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
}

// TableName returns the database table name for VideoCheckResult.
func (VideoCheckResult) TableName() string {
	return "video_check_results"
}

// Default check settings applied when a client has no settings row.
const (
	DefaultSimilarityThreshold = 0.7
)

// VideoCheckSettings is the per-client check configuration. Exactly one row
// exists per client once it has been read.
type VideoCheckSettings struct {
	ClientID                 string    `gorm:"type:text;primaryKey" json:"client_id"`
	SimilarityThreshold      float64   `gorm:"not null" json:"similarity_threshold"`
	AutoCheckEnabled         bool      `gorm:"not null" json:"auto_check_enabled"`
	NotifyOnMatch            bool      `gorm:"not null" json:"notify_on_match"`
	NotifyHighImportanceOnly bool      `gorm:"not null" json:"notify_high_importance_only"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TableName returns the database table name for VideoCheckSettings.
func (VideoCheckSettings) TableName() string {
	return "video_check_settings"
}

// DefaultCheckSettings returns the settings a client gets on first read.
func DefaultCheckSettings(clientID string, threshold float64) VideoCheckSettings {
	return VideoCheckSettings{
		ClientID:            clientID,
		SimilarityThreshold: threshold,
		AutoCheckEnabled:    true,
		NotifyOnMatch:       true,
	}
}
