package domain

import (
	"strings"
	"time"
)

// Category is the closed set of correction topics a template can belong to.
type Category string

const (
	CategoryStructure Category = "構成"
	CategoryTempo     Category = "テンポ"
	CategoryTelop     Category = "テロップ"
	CategoryColor     Category = "色味"
	CategoryVolume    Category = "音量"
	CategoryFraming   Category = "画角"
	CategoryWording   Category = "言葉遣い"
	CategorySpeech    Category = "話し方"
	CategoryOther     Category = "その他"
)

// Phase is the production phase a correction applies to.
type Phase string

const (
	PhaseShoot  Phase = "撮影"
	PhaseEdit   Phase = "編集"
	PhaseScript Phase = "台本"
	PhaseOther  Phase = "その他"
)

// Importance ranks how severe a past correction was.
type Importance string

const (
	ImportanceHigh   Importance = "高"
	ImportanceMedium Importance = "中"
	ImportanceLow    Importance = "低"
)

// TemplateStatus controls whether a template participates in checks.
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusArchived TemplateStatus = "archived"
)

var categoryAliases = map[string]Category{
	"structure": CategoryStructure,
	"tempo":     CategoryTempo,
	"telop":     CategoryTelop,
	"color":     CategoryColor,
	"volume":    CategoryVolume,
	"framing":   CategoryFraming,
	"wording":   CategoryWording,
	"speech":    CategorySpeech,
	"other":     CategoryOther,
}

var phaseAliases = map[string]Phase{
	"shoot":  PhaseShoot,
	"edit":   PhaseEdit,
	"script": PhaseScript,
	"other":  PhaseOther,
}

var importanceAliases = map[string]Importance{
	"high":   ImportanceHigh,
	"medium": ImportanceMedium,
	"low":    ImportanceLow,
}

// ParseCategory accepts the stored value or its English alias.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range categoryAliases {
		if string(c) == s {
			return c, true
		}
	}
	c, ok := categoryAliases[strings.ToLower(s)]
	return c, ok
}

// ParsePhase accepts the stored value or its English alias.
func ParsePhase(s string) (Phase, bool) {
	s = strings.TrimSpace(s)
	for _, p := range phaseAliases {
		if string(p) == s {
			return p, true
		}
	}
	p, ok := phaseAliases[strings.ToLower(s)]
	return p, ok
}

// ParseImportance accepts the stored value or its English alias.
func ParseImportance(s string) (Importance, bool) {
	s = strings.TrimSpace(s)
	for _, i := range importanceAliases {
		if string(i) == s {
			return i, true
		}
	}
	i, ok := importanceAliases[strings.ToLower(s)]
	return i, ok
}

// ParseTemplateStatus validates a status value.
func ParseTemplateStatus(s string) (TemplateStatus, bool) {
	switch TemplateStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TemplateStatusActive:
		return TemplateStatusActive, true
	case TemplateStatusArchived:
		return TemplateStatusArchived, true
	}
	return "", false
}

// Order ranks importance for sorting: high > medium > low > unknown.
func (i Importance) Order() int {
	switch i {
	case ImportanceHigh:
		return 3
	case ImportanceMedium:
		return 2
	case ImportanceLow:
		return 1
	default:
		return 0
	}
}

// FeedbackTemplate is a stored past correction note used as a comparison
// target for future videos. Embedding is nil when generation failed; such a
// template never matches until its embedding is regenerated.
type FeedbackTemplate struct {
	ID             string         `gorm:"type:text;primaryKey" json:"id"`
	ClientID       string         `gorm:"type:text;not null;index:idx_feedback_templates_client_status" json:"client_id"`
	VideoID        *string        `gorm:"type:text;index" json:"video_id,omitempty"`
	FeedbackText   string         `gorm:"type:text;not null" json:"feedback_text"`
	Category       Category       `gorm:"type:text;not null;index" json:"category"`
	Phase          Phase          `gorm:"type:text;not null" json:"phase"`
	Importance     Importance     `gorm:"type:text;not null" json:"importance"`
	Memo           *string        `gorm:"type:text" json:"memo,omitempty"`
	Status         TemplateStatus `gorm:"type:text;not null;default:active;index:idx_feedback_templates_client_status" json:"status"`
	Embedding      Vector         `gorm:"type:text" json:"-"`
	MatchCount     int            `gorm:"not null;default:0" json:"match_count"`
	FirstPointedAt time.Time      `json:"first_pointed_at"`
	LastPointedAt  *time.Time     `json:"last_pointed_at,omitempty"`
	CreatedBy      string         `gorm:"type:text" json:"created_by"`
	UpdatedBy      string         `gorm:"type:text" json:"updated_by,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for FeedbackTemplate.
func (FeedbackTemplate) TableName() string {
	return "feedback_templates"
}

// HasEmbedding reports whether the template can take part in a check run.
func (t *FeedbackTemplate) HasEmbedding() bool {
	return len(t.Embedding) > 0
}
