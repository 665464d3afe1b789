package service

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/pipeline"
	"github.com/postpilot-io/postpilot/internal/provider"
)

const (
	collectorBatchSize = 25
	maxTaskAttempts    = 5
)

// AnalyticsCollector drains deferred analytics tasks, pulling engagement
// metrics from the provider and storing one snapshot per run. Transient
// provider failures are retried in-process with exponential backoff;
// terminal ones fail the task immediately.
type AnalyticsCollector struct {
	registry pipeline.Resolver
	store    *Store
	tasks    *DeferredTasks
	logger   *zap.Logger
	retry    retrypolicy.RetryPolicy[models.MetricMap]
}

func NewAnalyticsCollector(reg pipeline.Resolver, store *Store, tasks *DeferredTasks, logger *zap.Logger) *AnalyticsCollector {
	retry := retrypolicy.NewBuilder[models.MetricMap]().
		HandleIf(func(_ models.MetricMap, err error) bool {
			se, ok := provider.AsStatusError(err)
			return ok && se.Retryable()
		}).
		WithBackoff(2*time.Second, 30*time.Second).
		WithMaxRetries(2).
		Build()

	return &AnalyticsCollector{
		registry: reg,
		store:    store,
		tasks:    tasks,
		logger:   logger,
		retry:    retry,
	}
}

// Collect processes one batch of due tasks.
func (c *AnalyticsCollector) Collect(ctx context.Context) error {
	due, err := c.tasks.Due(ctx, collectorBatchSize)
	if err != nil {
		return err
	}

	for i := range due {
		task := &due[i]
		c.collectOne(ctx, task)
	}
	return nil
}

func (c *AnalyticsCollector) collectOne(ctx context.Context, task *models.AnalyticsTask) {
	task.Attempts++

	metrics, err := c.fetch(ctx, task)
	if err != nil {
		task.LastError = err.Error()
		se, ok := provider.AsStatusError(err)
		retryable := ok && se.Retryable()

		if !retryable || task.Attempts >= maxTaskAttempts {
			task.Status = models.TaskStatusFailed
		} else {
			// Push the task out; backoff grows with the attempt count.
			runAfter := time.Now().Add(time.Duration(task.Attempts) * 30 * time.Minute)
			task.RunAfter = &runAfter
		}

		c.logger.Warn("Analytics collection failed",
			zap.String("post_id", task.PostID),
			zap.String("platform", task.Platform),
			zap.Int("attempts", task.Attempts),
			zap.Bool("retryable", retryable),
			zap.Error(err))

		c.updateTask(ctx, task)
		return
	}

	snap := &models.AnalyticsSnapshot{
		PostID:      task.PostID,
		Platform:    task.Platform,
		RemoteID:    task.RemoteID,
		Metrics:     metrics,
		CollectedAt: time.Now().UTC(),
	}
	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		c.logger.Error("Failed to save analytics snapshot",
			zap.String("post_id", task.PostID),
			zap.Error(err))
		c.updateTask(ctx, task)
		return
	}

	task.Status = models.TaskStatusCompleted
	task.LastError = ""
	c.updateTask(ctx, task)

	c.logger.Info("Analytics snapshot collected",
		zap.String("post_id", task.PostID),
		zap.String("platform", task.Platform),
		zap.Int("metric_count", len(metrics)))
}

func (c *AnalyticsCollector) fetch(ctx context.Context, task *models.AnalyticsTask) (models.MetricMap, error) {
	adapter, err := c.registry.Resolve(task.Platform)
	if err != nil {
		return nil, err
	}
	ch, err := c.store.LoadChannel(ctx, task.ChannelID)
	if err != nil {
		return nil, err
	}

	return failsafe.With(c.retry).Get(func() (models.MetricMap, error) {
		return adapter.FetchAnalytics(ctx, task.RemoteID, ch)
	})
}

func (c *AnalyticsCollector) updateTask(ctx context.Context, task *models.AnalyticsTask) {
	if err := c.tasks.Update(ctx, task); err != nil {
		c.logger.Error("Failed to update analytics task",
			zap.Uint("task_id", task.ID),
			zap.Error(err))
	}
}
