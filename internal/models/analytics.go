package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MetricMap holds normalized engagement metrics keyed by the common metric
// vocabulary (impressions, reach, likes, shares, comments, clicks, saves,
// engagement_rate). Stored as jsonb.
type MetricMap map[string]float64

// Scan implements the sql.Scanner interface
func (m *MetricMap) Scan(value interface{}) error {
	if value == nil {
		*m = MetricMap{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into MetricMap", value)
	}
}

// Value implements the driver.Valuer interface
func (m MetricMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return json.Marshal(m)
}

// AnalyticsTask is one deferred metrics-collection request scheduled at
// publish time and drained by the collector. Scheduling failures never fail
// a publish.
type AnalyticsTask struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PostID    string     `gorm:"size:36;not null;index" json:"post_id"`
	ChannelID string     `gorm:"size:36" json:"channel_id"`
	Platform  string     `gorm:"size:100;not null" json:"platform"`
	RemoteID  string     `gorm:"size:255" json:"remote_id"`
	Status    string     `gorm:"size:50;default:'pending';index" json:"status"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
	LastError string     `gorm:"type:text" json:"last_error"`
	RunAfter  *time.Time `json:"run_after"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// AnalyticsSnapshot is one point-in-time metrics reading for a publication.
type AnalyticsSnapshot struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      string    `gorm:"size:36;not null;index" json:"post_id"`
	Platform    string    `gorm:"size:100;not null;index" json:"platform"`
	RemoteID    string    `gorm:"size:255" json:"remote_id"`
	Metrics     MetricMap `gorm:"type:jsonb" json:"metrics"`
	CollectedAt time.Time `gorm:"not null" json:"collected_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
