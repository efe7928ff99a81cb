package domain

import (
	"database/sql/driver"
	"time"
)

// PerformanceMetrics are the engagement numbers recorded for a video.
type PerformanceMetrics struct {
	Views    int64 `json:"views,omitempty"`
	Likes    int64 `json:"likes,omitempty"`
	Saves    int64 `json:"saves,omitempty"`
	Comments int64 `json:"comments,omitempty"`
}

func (m PerformanceMetrics) Value() (driver.Value, error) { return jsonValue(m) }
func (m *PerformanceMetrics) Scan(value interface{}) error { return jsonScan(value, m) }

// LearningVideo is a client's reference video. Only the fields the matching
// engine and the statistics aggregator read are modeled here.
type LearningVideo struct {
	ID                 string             `gorm:"type:text;primaryKey" json:"id"`
	ClientID           string             `gorm:"type:text;not null;index" json:"client_id"`
	Title              string             `gorm:"type:text" json:"title"`
	SourceType         string             `gorm:"type:text" json:"source_type"` // upload, youtube
	VideoURL           string             `gorm:"type:text" json:"video_url,omitempty"`
	StorageKey         string             `gorm:"type:text" json:"storage_key,omitempty"`
	DurationSeconds    *float64           `json:"duration_seconds,omitempty"`
	PerformanceMetrics PerformanceMetrics `gorm:"type:text" json:"performance_metrics"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TableName returns the database table name for LearningVideo.
func (LearningVideo) TableName() string {
	return "learning_videos"
}

// TelopStyle describes on-screen caption styling.
type TelopStyle struct {
	Type     string `json:"type,omitempty"`
	FontSize string `json:"font_size,omitempty"`
}

func (t TelopStyle) Value() (driver.Value, error) { return jsonValue(t) }
func (t *TelopStyle) Scan(value interface{}) error { return jsonScan(value, t) }

// ColorScheme summarizes the grading of a video.
type ColorScheme struct {
	DominantColors []string `json:"dominant_colors,omitempty"`
	Temperature    string   `json:"temperature,omitempty"`
	Brightness     *float64 `json:"brightness,omitempty"`
	Saturation     *float64 `json:"saturation,omitempty"`
}

func (c ColorScheme) Value() (driver.Value, error) { return jsonValue(c) }
func (c *ColorScheme) Scan(value interface{}) error { return jsonScan(value, c) }

// BGM describes background music. HasBGM is nil when it was not detected either way.
type BGM struct {
	HasBGM *bool  `json:"has_bgm,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

func (b BGM) Value() (driver.Value, error) { return jsonValue(b) }
func (b *BGM) Scan(value interface{}) error { return jsonScan(value, b) }

// IntroSegment is the opening hook of a video, in seconds.
type IntroSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	HookStrength string  `json:"hook_strength,omitempty"`
}

// Structure is the detected narrative flow of a video.
type Structure struct {
	Intro       *IntroSegment `json:"intro,omitempty"`
	CTAPosition string        `json:"cta_position,omitempty"`
}

func (s Structure) Value() (driver.Value, error) { return jsonValue(s) }
func (s *Structure) Scan(value interface{}) error { return jsonScan(value, s) }

// RawAnalysis holds the free-form lists of the upstream analysis payload.
type RawAnalysis struct {
	Weaknesses []string `json:"weaknesses,omitempty"`
	ShotTypes  []string `json:"shot_types,omitempty"`
}

func (r RawAnalysis) Value() (driver.Value, error) { return jsonValue(r) }
func (r *RawAnalysis) Scan(value interface{}) error { return jsonScan(value, r) }

// VideoAnalysis is the analysis record of one video. Each JSON column is a
// typed struct, decoded once when the row is loaded.
type VideoAnalysis struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	VideoID      string      `gorm:"type:text;not null;uniqueIndex" json:"video_id"`
	CutFrequency *float64    `json:"cut_frequency,omitempty"`
	Pace         string      `gorm:"type:text" json:"pace,omitempty"`
	TelopStyle   TelopStyle  `gorm:"type:text" json:"telop_style"`
	ColorScheme  ColorScheme `gorm:"type:text" json:"color_scheme"`
	BGM          BGM         `gorm:"column:bgm;type:text" json:"bgm"`
	Structure    Structure   `gorm:"type:text" json:"structure"`
	RawAnalysis  RawAnalysis `gorm:"type:text" json:"raw_analysis"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for VideoAnalysis.
func (VideoAnalysis) TableName() string {
	return "video_analyses"
}
