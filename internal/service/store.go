package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/postpilot-io/postpilot/internal/models"
)

// Store is the gorm-backed persistence collaborator. Publications are
// append-only at this layer: rows are created or updated in place, never
// deleted, so the repost and deletion history survives for audit.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) LoadPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("Publications").First(&post, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("post %s not found: %w", id, err)
	}
	return &post, nil
}

func (s *Store) SavePost(ctx context.Context, post *models.Post) error {
	// Publications are persisted through AppendPublication and
	// UpdatePublication; saving them here would duplicate rows.
	return s.db.WithContext(ctx).Omit("Publications").Save(post).Error
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	return s.db.WithContext(ctx).Omit("Publications").Create(post).Error
}

func (s *Store) LoadChannel(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	if err := s.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("channel %s not found: %w", id, err)
	}
	return &ch, nil
}

func (s *Store) SaveChannel(ctx context.Context, ch *models.Channel) error {
	return s.db.WithContext(ctx).Save(ch).Error
}

func (s *Store) CreateChannel(ctx context.Context, ch *models.Channel) error {
	return s.db.WithContext(ctx).Create(ch).Error
}

func (s *Store) FindChannelByPlatform(ctx context.Context, platform string) (*models.Channel, error) {
	var ch models.Channel
	err := s.db.WithContext(ctx).
		Where("platform = ? AND connection_status = ?", platform, models.ConnectionConnected).
		Order("updated_at DESC").
		First(&ch).Error
	if err != nil {
		return nil, fmt.Errorf("no connected channel for platform %s: %w", platform, err)
	}
	return &ch, nil
}

func (s *Store) ListChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

func (s *Store) AppendPublication(ctx context.Context, pub *models.PlatformPublication) error {
	return s.db.WithContext(ctx).Create(pub).Error
}

func (s *Store) UpdatePublication(ctx context.Context, pub *models.PlatformPublication) error {
	return s.db.WithContext(ctx).Save(pub).Error
}

func (s *Store) RecordJob(ctx context.Context, job *models.PublishJob) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *Store) ListJobs(ctx context.Context, postID string) ([]models.PublishJob, error) {
	var jobs []models.PublishJob
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list publish jobs for post %s: %w", postID, err)
	}
	return jobs, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error {
	return s.db.WithContext(ctx).Create(snap).Error
}

// StalePublications lists active publications on a platform that have not
// been verified recently. The scheduler feeds these to the reconciler.
func (s *Store) StalePublications(ctx context.Context, platform string, limit int) ([]models.PlatformPublication, error) {
	var pubs []models.PlatformPublication
	err := s.db.WithContext(ctx).
		Where("platform = ? AND state = ?", platform, models.PublicationStateActive).
		Order("last_verified_at ASC NULLS FIRST").
		Limit(limit).
		Find(&pubs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale publications: %w", err)
	}
	return pubs, nil
}
