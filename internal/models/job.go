package models

import (
	"time"

	"gorm.io/gorm"
)

// PublishJob is the audit row for one publish attempt of one post on one
// platform, success or failure. It backs the publish-history endpoint and
// the all-platforms-failed lifecycle check.
type PublishJob struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PostID      string         `gorm:"size:36;not null;index" json:"post_id"`
	ChannelID   string         `gorm:"size:36;index" json:"channel_id"`
	Platform    string         `gorm:"size:100;not null;index" json:"platform"`
	Status      string         `gorm:"size:50;default:'pending'" json:"status"`
	Error       string         `gorm:"type:text" json:"error"`
	Retryable   bool           `gorm:"default:false" json:"retryable"`
	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)
