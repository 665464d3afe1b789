// Package pipeline orchestrates validate → submit → record for one
// (post, channel) pair and owns the publish side of the post lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postpilot-io/postpilot/internal/lifecycle"
	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/internal/tokenstore"
)

// Resolver yields the provider for a platform name. Satisfied by the
// registry.
type Resolver interface {
	Resolve(platform string) (provider.Provider, error)
}

// Store is the persistence collaborator. Document-store semantics; the
// engine validates what it needs and stores the rest as-is.
type Store interface {
	LoadPost(ctx context.Context, id string) (*models.Post, error)
	SavePost(ctx context.Context, post *models.Post) error
	LoadChannel(ctx context.Context, id string) (*models.Channel, error)
	SaveChannel(ctx context.Context, ch *models.Channel) error
	FindChannelByPlatform(ctx context.Context, platform string) (*models.Channel, error)
	AppendPublication(ctx context.Context, pub *models.PlatformPublication) error
	UpdatePublication(ctx context.Context, pub *models.PlatformPublication) error
	RecordJob(ctx context.Context, job *models.PublishJob) error
	ListJobs(ctx context.Context, postID string) ([]models.PublishJob, error)
}

// Tasks is the deferred-task collaborator. Fire and forget: its failure
// must never fail a publish.
type Tasks interface {
	ScheduleAnalyticsCollection(ctx context.Context, postID, channelID, platform, remoteID string) error
}

// Notifier is the best-effort outcome notification collaborator.
type Notifier interface {
	NotifyPublishOutcome(ctx context.Context, post *models.Post, platform string, success bool, message string)
}

type Pipeline struct {
	registry Resolver
	tokens   *tokenstore.Store
	store    Store
	tasks    Tasks
	notifier Notifier
	logger   *zap.Logger
}

func New(reg Resolver, tokens *tokenstore.Store, store Store, tasks Tasks, notifier Notifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		registry: reg,
		tokens:   tokens,
		store:    store,
		tasks:    tasks,
		notifier: notifier,
		logger:   logger,
	}
}

// Publish runs the full pipeline for one (post, channel) pair.
func (p *Pipeline) Publish(ctx context.Context, postID, channelID string) (*models.PlatformPublication, error) {
	return p.run(ctx, postID, channelID, false)
}

// Repost re-publishes an already-published post to a platform, appending a
// new publication record and superseding the prior one. This is the
// compensating action for platforms that forbid edits; the prior remote id
// is never removed from history.
func (p *Pipeline) Repost(ctx context.Context, postID, channelID string) (*models.PlatformPublication, error) {
	return p.run(ctx, postID, channelID, true)
}

func (p *Pipeline) run(ctx context.Context, postID, channelID string, repost bool) (*models.PlatformPublication, error) {
	post, err := p.store.LoadPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", postID, err)
	}
	ch, err := p.store.LoadChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}

	if len(post.TargetPlatforms) == 0 {
		return nil, &ValidationError{Platform: ch.Platform, Violations: []string{"post has no target platforms"}}
	}
	if !post.TargetPlatforms.Contains(ch.Platform) {
		return nil, &ValidationError{Platform: ch.Platform,
			Violations: []string{fmt.Sprintf("platform %s is not a target of this post", ch.Platform)}}
	}

	adapter, err := p.registry.Resolve(ch.Platform)
	if err != nil {
		return nil, err
	}

	// Validation is pure and happens before any network or lifecycle
	// effect.
	if violations := adapter.Validate(post); len(violations) > 0 {
		return nil, &ValidationError{Platform: ch.Platform, Violations: violations}
	}

	if _, err := p.tokens.Get(ctx, channelID); err != nil {
		return nil, fmt.Errorf("%w for channel %s: %v", ErrAuthenticationRequired, channelID, err)
	}

	var prior *models.PlatformPublication
	if repost {
		prior = activePublication(post, ch.Platform)
		if prior == nil {
			return nil, &ValidationError{Platform: ch.Platform,
				Violations: []string{"repost requires an existing publication for this platform"}}
		}
	}

	if err := lifecycle.Transition(post, models.PostStatusPublishing); err != nil {
		return nil, err
	}
	if err := p.store.SavePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to save post %s: %w", postID, err)
	}

	res, err := adapter.Publish(ctx, post, ch)
	if err != nil {
		res = provider.ResultFromError(err)
	}

	if !res.Success {
		return nil, p.recordFailure(ctx, post, ch, res)
	}
	return p.recordSuccess(ctx, post, ch, res, prior)
}

// recordSuccess persists the publication before anything else: the remote
// post already exists and cannot be rolled back, so losing the local
// record would orphan it.
func (p *Pipeline) recordSuccess(ctx context.Context, post *models.Post, ch *models.Channel, res *provider.Result, prior *models.PlatformPublication) (*models.PlatformPublication, error) {
	publishedAt := res.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now().UTC()
	}

	pub := &models.PlatformPublication{
		ID:          uuid.NewString(),
		PostID:      post.ID,
		Platform:    ch.Platform,
		RemoteID:    res.RemoteID,
		RemoteURL:   res.URL,
		PublishedAt: &publishedAt,
		Confidence:  models.ConfidenceHigh,
		State:       models.PublicationStateActive,
	}
	if err := p.store.AppendPublication(ctx, pub); err != nil {
		return nil, fmt.Errorf("publish succeeded remotely but the record could not be saved (remote id %s): %w", res.RemoteID, err)
	}

	if prior != nil {
		prior.State = models.PublicationStateSuperseded
		prior.SupersededBy = pub.ID
		if err := p.store.UpdatePublication(ctx, prior); err != nil {
			p.logger.Error("Failed to mark prior publication superseded",
				zap.String("publication_id", prior.ID),
				zap.Error(err))
		}
	}

	post.Publications = append(post.Publications, *pub)
	post.Status = lifecycle.Compute(post, true)
	if err := p.store.SavePost(ctx, post); err != nil {
		p.logger.Error("Failed to save post after publish",
			zap.String("post_id", post.ID),
			zap.Error(err))
	}

	now := publishedAt
	p.recordJob(ctx, &models.PublishJob{
		PostID:      post.ID,
		ChannelID:   ch.ID,
		Platform:    ch.Platform,
		Status:      models.JobStatusCompleted,
		PublishedAt: &now,
	})

	// Deferred analytics collection is best effort.
	if err := p.tasks.ScheduleAnalyticsCollection(ctx, post.ID, ch.ID, ch.Platform, res.RemoteID); err != nil {
		p.logger.Warn("Failed to schedule analytics collection",
			zap.String("post_id", post.ID),
			zap.String("platform", ch.Platform),
			zap.Error(err))
	}
	p.notifier.NotifyPublishOutcome(ctx, post, ch.Platform, true, "")

	p.logger.Info("Publish completed",
		zap.String("post_id", post.ID),
		zap.String("platform", ch.Platform),
		zap.String("remote_id", res.RemoteID))

	return pub, nil
}

func (p *Pipeline) recordFailure(ctx context.Context, post *models.Post, ch *models.Channel, res *provider.Result) error {
	p.recordJob(ctx, &models.PublishJob{
		PostID:    post.ID,
		ChannelID: ch.ID,
		Platform:  ch.Platform,
		Status:    models.JobStatusFailed,
		Error:     res.ErrorMsg,
		Retryable: res.Retryable,
	})

	switch {
	case activeCount(post) > 0:
		// A repost attempt failed but the post is still live elsewhere.
		post.Status = models.PostStatusPublished
	case p.allTargetsFailed(ctx, post):
		post.Status = models.PostStatusFailed
	default:
		// Other targets have not been attempted yet; publishing stands
		// until they are, so the external scheduler can keep going.
	}
	if err := p.store.SavePost(ctx, post); err != nil {
		p.logger.Error("Failed to save post after publish failure",
			zap.String("post_id", post.ID),
			zap.Error(err))
	}

	p.notifier.NotifyPublishOutcome(ctx, post, ch.Platform, false, res.ErrorMsg)

	p.logger.Warn("Publish failed",
		zap.String("post_id", post.ID),
		zap.String("platform", ch.Platform),
		zap.Bool("retryable", res.Retryable),
		zap.String("error", res.ErrorMsg))

	return &PublishError{Platform: ch.Platform, Message: res.ErrorMsg, Retryable: res.Retryable}
}

func (p *Pipeline) recordJob(ctx context.Context, job *models.PublishJob) {
	if err := p.store.RecordJob(ctx, job); err != nil {
		p.logger.Error("Failed to record publish job",
			zap.String("post_id", job.PostID),
			zap.String("platform", job.Platform),
			zap.Error(err))
	}
}

// allTargetsFailed reports whether every targeted platform has at least one
// failed attempt and none has a live publication.
func (p *Pipeline) allTargetsFailed(ctx context.Context, post *models.Post) bool {
	if activeCount(post) > 0 {
		return false
	}

	jobs, err := p.store.ListJobs(ctx, post.ID)
	if err != nil {
		p.logger.Error("Failed to list publish jobs",
			zap.String("post_id", post.ID),
			zap.Error(err))
		return false
	}

	failed := make(map[string]bool)
	for _, job := range jobs {
		if job.Status == models.JobStatusFailed {
			failed[job.Platform] = true
		}
	}
	for _, platform := range post.TargetPlatforms {
		if !failed[platform] {
			return false
		}
	}
	return true
}

func activeCount(post *models.Post) int {
	n := 0
	for i := range post.Publications {
		if post.Publications[i].Active() {
			n++
		}
	}
	return n
}

func activePublication(post *models.Post, platform string) *models.PlatformPublication {
	for i := range post.Publications {
		pub := &post.Publications[i]
		if pub.Platform == platform && pub.Active() {
			return pub
		}
	}
	return nil
}
