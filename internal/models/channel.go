package models

import (
	"time"

	"gorm.io/gorm"
)

// ConnectionStatus tracks whether a channel currently holds usable
// credentials. Connected implies a non-expired access token.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionExpired      ConnectionStatus = "expired"
)

// Channel is one connected account on one platform: the OAuth token bundle
// plus a snapshot of the platform's content constraints taken at connect
// time.
type Channel struct {
	ID               string           `gorm:"primaryKey;size:36" json:"id"`
	Platform         string           `gorm:"size:100;not null;index" json:"platform"`
	Handle           string           `gorm:"size:255" json:"handle"`
	ConnectionStatus ConnectionStatus `gorm:"size:20;default:'disconnected'" json:"connection_status"`

	AccessToken  string      `gorm:"type:text" json:"-"`
	RefreshToken string      `gorm:"type:text" json:"-"`
	TokenExpiry  *time.Time  `json:"token_expiry"`
	Scopes       StringArray `gorm:"type:text[]" json:"scopes"`

	CharacterLimit      int         `json:"character_limit"`
	MediaLimit          int         `json:"media_limit"`
	SupportedMediaTypes StringArray `gorm:"type:text[]" json:"supported_media_types"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// TokenExpired reports whether the access token has passed its expiry.
// A missing expiry counts as expired so we never hand out credentials we
// cannot vouch for.
func (c *Channel) TokenExpired(now time.Time) bool {
	if c.AccessToken == "" {
		return true
	}
	return c.TokenExpiry == nil || !now.Before(*c.TokenExpiry)
}
