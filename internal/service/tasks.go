package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postpilot-io/postpilot/internal/models"
)

// DeferredTasks is the deferred-task collaborator: a database-backed queue
// of analytics-collection requests drained by the collector.
type DeferredTasks struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewDeferredTasks(db *gorm.DB, logger *zap.Logger) *DeferredTasks {
	return &DeferredTasks{db: db, logger: logger}
}

// ScheduleAnalyticsCollection enqueues a metrics pull for a fresh
// publication. Metrics need time to accrue, so the task only becomes
// runnable after a short delay.
func (t *DeferredTasks) ScheduleAnalyticsCollection(ctx context.Context, postID, channelID, platform, remoteID string) error {
	runAfter := time.Now().Add(15 * time.Minute)
	task := &models.AnalyticsTask{
		PostID:    postID,
		ChannelID: channelID,
		Platform:  platform,
		RemoteID:  remoteID,
		Status:    models.TaskStatusPending,
		RunAfter:  &runAfter,
	}
	if err := t.db.WithContext(ctx).Create(task).Error; err != nil {
		return err
	}

	t.logger.Debug("Analytics collection scheduled",
		zap.String("post_id", postID),
		zap.String("platform", platform))
	return nil
}

// Due returns runnable pending tasks.
func (t *DeferredTasks) Due(ctx context.Context, limit int) ([]models.AnalyticsTask, error) {
	var tasks []models.AnalyticsTask
	err := t.db.WithContext(ctx).
		Where("status = ? AND (run_after IS NULL OR run_after <= ?)", models.TaskStatusPending, time.Now()).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

func (t *DeferredTasks) Update(ctx context.Context, task *models.AnalyticsTask) error {
	return t.db.WithContext(ctx).Save(task).Error
}
