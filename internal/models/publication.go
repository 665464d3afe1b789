package models

import (
	"time"
)

// Confidence grades how trustworthy an automated remote-status
// determination is.
type Confidence string

const (
	ConfidenceUnknown Confidence = "unknown"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

// PublicationState tracks one platform submission through repost and
// deletion. Rows are append-only: a repost inserts a new active row and
// flips the prior one to superseded, nothing is ever removed.
type PublicationState string

const (
	PublicationStateActive     PublicationState = "active"
	PublicationStateSuperseded PublicationState = "superseded"
	PublicationStateDeleted    PublicationState = "deleted"
)

// PlatformPublication records one post's submission outcome on one
// platform. RemoteID is immutable once set; a repost supersedes the row
// instead of rewriting it so the audit trail survives.
type PlatformPublication struct {
	ID             string           `gorm:"primaryKey;size:36" json:"id"`
	PostID         string           `gorm:"size:36;not null;index" json:"post_id"`
	Platform       string           `gorm:"size:100;not null;index" json:"platform"`
	RemoteID       string           `gorm:"size:255" json:"remote_id"`
	RemoteURL      string           `gorm:"size:2048" json:"remote_url"`
	PublishedAt    *time.Time       `json:"published_at"`
	LastVerifiedAt *time.Time       `json:"last_verified_at"`
	Confidence     Confidence       `gorm:"size:20;default:'unknown'" json:"confidence"`
	State          PublicationState `gorm:"size:20;default:'active'" json:"state"`
	SupersededBy   string           `gorm:"size:36" json:"superseded_by"`
	StatusVerified bool             `gorm:"default:false" json:"status_verified"`
	LastError      string           `gorm:"type:text" json:"last_error"`
	Retryable      bool             `gorm:"default:false" json:"retryable"`
	Notes          string           `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Active reports whether this row is the live publication for its platform.
func (p *PlatformPublication) Active() bool {
	return p.State == PublicationStateActive
}
