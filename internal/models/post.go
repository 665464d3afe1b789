package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PostStatus is the lifecycle status of a post across every platform it
// targets. Transitions are owned by the publish pipeline and the status
// reconciler; nothing else writes this field.
type PostStatus string

const (
	PostStatusDraft             PostStatus = "draft"
	PostStatusScheduled         PostStatus = "scheduled"
	PostStatusPublishing        PostStatus = "publishing"
	PostStatusPublished         PostStatus = "published"
	PostStatusFailed            PostStatus = "failed"
	PostStatusDeletedOnPlatform PostStatus = "deleted_on_platform"
)

// MediaType classifies a media attachment.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeGIF   MediaType = "gif"
	MediaTypeVideo MediaType = "video"
)

// MediaAttachment describes one piece of media attached to a post. The
// bytes themselves live wherever URL points; the engine only moves
// references around.
type MediaAttachment struct {
	Type      MediaType `json:"type"`
	URL       string    `json:"url"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
}

// MediaAttachments is stored as a jsonb column, order preserved.
type MediaAttachments []MediaAttachment

// Scan implements the sql.Scanner interface
func (m *MediaAttachments) Scan(value interface{}) error {
	if value == nil {
		*m = MediaAttachments{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into MediaAttachments", value)
	}
}

// Value implements the driver.Valuer interface
func (m MediaAttachments) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	return json.Marshal(m)
}

type Post struct {
	ID              string           `gorm:"primaryKey;size:36" json:"id"`
	AuthorID        string           `gorm:"size:36;index" json:"author_id"`
	Title           string           `gorm:"size:500" json:"title"`
	Content         string           `gorm:"type:text" json:"content"`
	Link            string           `gorm:"size:2048" json:"link"`
	Hashtags        StringArray      `gorm:"type:text[]" json:"hashtags"`
	Mentions        StringArray      `gorm:"type:text[]" json:"mentions"`
	Media           MediaAttachments `gorm:"type:jsonb" json:"media"`
	TargetPlatforms StringArray      `gorm:"type:text[]" json:"target_platforms"`
	Status          PostStatus       `gorm:"size:50;default:'draft'" json:"status"`
	ScheduledFor    *time.Time       `json:"scheduled_for"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"deleted_at"`

	Publications []PlatformPublication `gorm:"foreignKey:PostID" json:"publications"`
}
