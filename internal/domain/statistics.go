package domain

import "time"

// LearningStatistics is a per-client rollup over all analyzed videos. It is
// always replaced wholesale by recomputation, never edited in place.
type LearningStatistics struct {
	ClientID            string    `gorm:"type:text;primaryKey" json:"client_id"`
	TotalVideosAnalyzed int       `gorm:"not null" json:"total_videos_analyzed"`
	AverageCutFrequency float64   `gorm:"not null" json:"average_cut_frequency"`
	TotalViews          int64     `gorm:"not null" json:"total_views"`
	TotalLikes          int64     `gorm:"not null" json:"total_likes"`
	TotalSaves          int64     `gorm:"not null" json:"total_saves"`
	BestVideoID         string    `gorm:"type:text" json:"best_video_id,omitempty"`
	LastUpdated         time.Time `json:"last_updated"`
}

// TableName returns the database table name for LearningStatistics.
func (LearningStatistics) TableName() string {
	return "learning_statistics"
}
